package config

const (
	DefaultStorePath       = "./email_tasks.json"
	DefaultInvalidLog      = "./invalid_emails.log"
	DefaultLogPath         = "./email_automation.log"
	DefaultAuditPath       = "./email_audit.jsonl"
	DefaultShutdownTimeout = "10s"
)

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    LoggingFile{Enabled: true, Path: DefaultLogPath},
		},
		Scheduler: SchedulerConfig{
			Overlap:         "skip",
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Store: StoreConfig{Path: DefaultStorePath, Watch: true},
		Mail:  MailConfig{Host: "smtp.gmail.com", Port: 587, DialTimeout: "15s"},
		Audit: AuditConfig{Driver: "file", Path: DefaultAuditPath},
		Alerts: AlertsConfig{Telegram: TelegramAlerts{
			MinLevel:   "WARNING",
			RatePerSec: 1,
			QueueSize:  64,
		}},
		Debug:      DebugConfig{Pprof: PprofConfig{Address: "127.0.0.1:6060"}},
		InvalidLog: DefaultInvalidLog,
	}
}
