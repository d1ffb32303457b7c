package config

const (
	defaultStateDir             = "~/.local/share/recsync/state"
	defaultLogDir               = "~/.local/share/recsync/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultRequestTimeout       = 30
	defaultTickInterval         = 5
	defaultMaxBatch             = 20
	defaultFailureBackoff       = 60
	defaultUpdateCheckPeriod    = 120
	defaultUpdatePeriod         = 600
	defaultKeepAlivePeriod      = 300
	defaultSessionLifetime      = 3600
	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			RequestTimeout: defaultRequestTimeout,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Engine: Engine{
			TickInterval:      defaultTickInterval,
			MaxBatch:          defaultMaxBatch,
			FailureBackoff:    defaultFailureBackoff,
			UpdateCheckPeriod: defaultUpdateCheckPeriod,
			UpdatePeriod:      defaultUpdatePeriod,
			KeepAlivePeriod:   defaultKeepAlivePeriod,
			SessionLifetime:   defaultSessionLifetime,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
