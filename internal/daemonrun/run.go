package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"subtrans/internal/broker"
	"subtrans/internal/config"
	"subtrans/internal/daemon"
	"subtrans/internal/httpapi"
	"subtrans/internal/ipc"
	"subtrans/internal/logging"
	"subtrans/internal/media/ffprobe"
	"subtrans/internal/preflight"
	"subtrans/internal/services/gemini"
	"subtrans/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the subtrans daemon and blocks until the process is signalled
// or cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "subtrans.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldCorrelationID, uuid.NewString()))

	logPreflight(logger, cfg)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg, logger)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	provider := gemini.NewClient(gemini.Config{
		BaseURL:        cfg.Provider.BaseURL,
		TimeoutSeconds: cfg.Provider.TimeoutSeconds,
	})
	d, err := daemon.New(cfg, st, provider, logger,
		daemon.WithProber(ffprobe.Prober{Binary: cfg.FFprobeBinary()}))
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if cfg.API.Enabled {
		apiServer, err := httpapi.New(cfg, d, logger)
		if err != nil {
			return fmt.Errorf("create api server: %w", err)
		}
		if err := apiServer.Start(signalCtx); err != nil {
			return err
		}
		defer apiServer.Stop()
	}

	if cfg.Broker.Enabled {
		bridge, err := broker.New(cfg.Broker, d, logger)
		if err != nil {
			return fmt.Errorf("create broker bridge: %w", err)
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = bridge.Run(signalCtx)
		}()
		defer func() { <-done }()
	}

	logger.Info("subtrans daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", cfg.SocketPath()),
		logging.String("database", cfg.DatabasePath()),
		logging.Bool("api_enabled", cfg.API.Enabled),
		logging.Bool("broker_enabled", cfg.Broker.Enabled),
	)

	<-signalCtx.Done()
	logger.Info("subtrans daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logPreflight(logger *slog.Logger, cfg *config.Config) {
	results := preflight.LocalChecks(cfg)
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		impact := "daemon may not process jobs"
		if result.Optional {
			impact = "jobs without an explicit duration cannot be planned"
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run subtrans doctor for a full readiness report"),
			logging.String(logging.FieldImpact, impact),
		)
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Int("configured_keys", len(cfg.Provider.APIKeys)),
		logging.String("model", cfg.Provider.Model),
		logging.Int("preflight_failures", len(preflight.Failed(results))),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
