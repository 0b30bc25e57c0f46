package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	c.normalizeAPI()
	c.normalizeBroker()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProvider() {
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultProviderBaseURL
	}
	c.Provider.Model = strings.TrimSpace(c.Provider.Model)
	if c.Provider.Model == "" {
		c.Provider.Model = defaultProviderModel
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeoutSeconds
	}
	if c.Provider.RequestsPerMinute < 0 {
		c.Provider.RequestsPerMinute = 0
	}
	c.Provider.TargetLanguage = strings.TrimSpace(c.Provider.TargetLanguage)
	if c.Provider.TargetLanguage == "" {
		c.Provider.TargetLanguage = defaultTargetLanguage
	}
	c.Provider.MimeType = strings.TrimSpace(c.Provider.MimeType)
	if c.Provider.MimeType == "" {
		c.Provider.MimeType = defaultMimeType
	}
	c.Provider.SystemPrompt = strings.TrimSpace(c.Provider.SystemPrompt)

	if len(c.Provider.APIKeys) == 0 {
		if value, ok := os.LookupEnv("SUBTRANS_API_KEYS"); ok {
			c.Provider.APIKeys = strings.Split(value, ",")
		} else if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Provider.APIKeys = []string{value}
		}
	}
	c.Provider.APIKeys = cleanList(c.Provider.APIKeys)

	for i := range c.Provider.Profiles {
		profile := &c.Provider.Profiles[i]
		profile.ID = strings.TrimSpace(profile.ID)
		profile.Model = strings.TrimSpace(profile.Model)
		if profile.Model == "" {
			profile.Model = c.Provider.Model
		}
	}
	c.Batch.PresubConfigID = strings.TrimSpace(c.Batch.PresubConfigID)
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("SUBTRANS_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	c.API.AllowedOrigins = cleanList(c.API.AllowedOrigins)
}

func (c *Config) normalizeBroker() {
	c.Broker.URL = strings.TrimSpace(c.Broker.URL)
	if c.Broker.URL == "" {
		if value, ok := os.LookupEnv("SUBTRANS_AMQP_URL"); ok {
			c.Broker.URL = strings.TrimSpace(value)
		}
	}
	c.Broker.CommandQueue = strings.TrimSpace(c.Broker.CommandQueue)
	if c.Broker.CommandQueue == "" {
		c.Broker.CommandQueue = defaultCommandQueue
	}
	c.Broker.EventsQueue = strings.TrimSpace(c.Broker.EventsQueue)
	if c.Broker.EventsQueue == "" {
		c.Broker.EventsQueue = defaultEventsQueue
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
