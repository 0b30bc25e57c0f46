package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// ProviderProfile overrides the model parameters for a named batch profile.
type ProviderProfile struct {
	ID          string  `toml:"id"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

// Provider contains the translation provider connection settings.
type Provider struct {
	BaseURL           string            `toml:"base_url"`
	Model             string            `toml:"model"`
	Temperature       float64           `toml:"temperature"`
	TimeoutSeconds    int               `toml:"timeout_seconds"`
	RequestsPerMinute int               `toml:"requests_per_minute"`
	TargetLanguage    string            `toml:"target_language"`
	MimeType          string            `toml:"mime_type"`
	SystemPrompt      string            `toml:"system_prompt"`
	APIKeys           []string          `toml:"api_keys"`
	Profiles          []ProviderProfile `toml:"profiles"`
}

// Batch holds the default batch settings applied to new jobs.
type Batch struct {
	MaxVideoDuration     int    `toml:"max_video_duration"`
	MaxConcurrentBatches int    `toml:"max_concurrent_batches"`
	BatchOffset          int    `toml:"batch_offset"`
	PresubDuration       int    `toml:"presub_duration"`
	PresubConfigID       string `toml:"presub_config_id"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	QueueJobs      bool   `toml:"queue_jobs"`
	DirectJobs     bool   `toml:"direct_jobs"`
	BatchCompleted bool   `toml:"batch_completed"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
	Always         bool   `toml:"always"`
}

// API contains configuration for the HTTP API consumed by UI clients.
type API struct {
	Enabled        bool     `toml:"enabled"`
	Bind           string   `toml:"bind"`
	Token          string   `toml:"token"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Broker contains configuration for the optional AMQP intake.
type Broker struct {
	Enabled      bool   `toml:"enabled"`
	URL          string `toml:"url"`
	CommandQueue string `toml:"command_queue"`
	EventsQueue  string `toml:"events_queue"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for subtrans.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Provider: translation provider endpoint, model, keys, and profiles
//   - Batch: default batch planning and concurrency settings
//   - Notifications: ntfy push notification settings
//   - API: HTTP API for UI clients
//   - Broker: AMQP command intake and event output
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Provider      Provider      `toml:"provider"`
	Batch         Batch         `toml:"batch"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Broker        Broker        `toml:"broker"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadEnvFiles(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadEnvFiles reads optional .env files next to the config file and in the
// working directory. Variables already present in the environment win.
func loadEnvFiles(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("subtrans.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "subtrans.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "subtrans.sock")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "subtrans.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "subtrans.pid")
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// Profile returns the provider profile registered under id.
func (c *Config) Profile(id string) (ProviderProfile, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ProviderProfile{}, false
	}
	for _, profile := range c.Provider.Profiles {
		if profile.ID == id {
			return profile, true
		}
	}
	return ProviderProfile{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
