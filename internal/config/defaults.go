package config

const (
	defaultConfigPath             = "~/.config/subtrans/config.toml"
	defaultDataDir                = "~/.local/share/subtrans"
	defaultLogDir                 = "~/.local/share/subtrans/logs"
	defaultProviderBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultProviderModel          = "gemini-2.5-flash"
	defaultProviderTemperature    = 0.3
	defaultProviderTimeoutSeconds = 600
	defaultTargetLanguage         = "en"
	defaultMimeType               = "video/*"
	defaultMaxVideoDuration       = 900
	defaultMaxConcurrentBatches   = 2
	defaultBatchOffset            = 60
	defaultPresubDuration         = 120
	defaultAPIBind                = "127.0.0.1:7488"
	defaultCommandQueue           = "subtrans.enqueue.cmd"
	defaultEventsQueue            = "subtrans.job.events"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Provider: Provider{
			BaseURL:        defaultProviderBaseURL,
			Model:          defaultProviderModel,
			Temperature:    defaultProviderTemperature,
			TimeoutSeconds: defaultProviderTimeoutSeconds,
			TargetLanguage: defaultTargetLanguage,
			MimeType:       defaultMimeType,
		},
		Batch: Batch{
			MaxVideoDuration:     defaultMaxVideoDuration,
			MaxConcurrentBatches: defaultMaxConcurrentBatches,
			BatchOffset:          defaultBatchOffset,
			PresubDuration:       defaultPresubDuration,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			QueueJobs:      true,
			DirectJobs:     true,
			BatchCompleted: false,
			JobCompleted:   true,
			JobFailed:      true,
		},
		API: API{
			Enabled:        true,
			Bind:           defaultAPIBind,
			AllowedOrigins: []string{"*"},
		},
		Broker: Broker{
			CommandQueue: defaultCommandQueue,
			EventsQueue:  defaultEventsQueue,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
