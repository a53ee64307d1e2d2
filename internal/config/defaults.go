package config

const (
	defaultDataDir              = "~/.local/share/quizline"
	defaultLogDir               = "~/.local/share/quizline/logs"
	defaultLedgerBackend        = "csv"
	defaultLedgerCSVName        = "publish_queue.csv"
	defaultLedgerSQLiteName     = "publish_queue.db"
	defaultLedgerLockTimeout    = 30
	defaultLowWatermark         = 5
	defaultTarget               = 10
	defaultApprovalBackend      = "telegram"
	defaultApprovalTimeout      = 3600
	defaultTelegramAPIBaseURL   = "https://api.telegram.org"
	defaultTelegramPollTimeout  = 30
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultProposeSeconds       = 3600
	defaultEnqueueSeconds       = 3600
	defaultPublishSeconds       = 1800
	defaultBufferCheckSeconds   = 900
	defaultAnalyticsSeconds     = 86400
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Ledger: Ledger{
			Backend:            defaultLedgerBackend,
			LockTimeoutSeconds: defaultLedgerLockTimeout,
		},
		Buffer: Buffer{
			LowWatermark: defaultLowWatermark,
			Target:       defaultTarget,
		},
		Approval: Approval{
			Backend:        defaultApprovalBackend,
			TimeoutSeconds: defaultApprovalTimeout,
		},
		Telegram: Telegram{
			APIBaseURL:         defaultTelegramAPIBaseURL,
			PollTimeoutSeconds: defaultTelegramPollTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Errors:         true,
			Refill:         true,
			Published:      true,
		},
		Schedule: Schedule{
			ProposeSeconds:     defaultProposeSeconds,
			EnqueueSeconds:     defaultEnqueueSeconds,
			PublishSeconds:     defaultPublishSeconds,
			BufferCheckSeconds: defaultBufferCheckSeconds,
			AnalyticsSeconds:   defaultAnalyticsSeconds,
			WatchLedger:        true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
