package config

// Config is the on-disk configuration (JSON or YAML). Every section is
// optional; omitted fields keep the values from Defaults.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Store     StoreConfig     `json:"store"`
	Mail      MailConfig      `json:"mail"`
	Audit     AuditConfig     `json:"audit"`
	Alerts    AlertsConfig    `json:"alerts"`
	Debug     DebugConfig     `json:"debug"`

	// InvalidLog receives rejected recipient addresses, one per line.
	InvalidLog string `json:"invalid_log"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls firing behavior.
//
// Overlap is "skip" (a firing is skipped while the previous one of the same
// task still runs) or "allow".
type SchedulerConfig struct {
	Timezone        string `json:"timezone,omitempty"`
	Overlap         string `json:"overlap"`
	FiringTimeout   string `json:"firing_timeout,omitempty"` // "0s" disables
	ShutdownTimeout string `json:"shutdown_timeout"`
}

type StoreConfig struct {
	Path string `json:"path"`
	// Watch reloads the schedule when the task file changes on disk (serve mode).
	Watch bool `json:"watch"`
}

// MailConfig configures SMTP delivery. Credentials come from SENDER_EMAIL and
// SENDER_PASSWORD, never from this file.
type MailConfig struct {
	Host        string  `json:"host"`
	Port        int     `json:"port"`
	From        string  `json:"from,omitempty"` // default: SENDER_EMAIL
	DialTimeout string  `json:"dial_timeout,omitempty"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"` // 0 disables
}

// AuditConfig selects the audit driver.
//
// Example:
//
//	"audit": { "driver": "mongo", "mongo_uri": "mongodb://localhost:27017/" }
type AuditConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite

	MongoURI        string `json:"mongo_uri,omitempty"`
	MongoDatabase   string `json:"mongo_database,omitempty"`
	MongoCollection string `json:"mongo_collection,omitempty"`
	ConnectTimeout  string `json:"connect_timeout,omitempty"`
}

type AlertsConfig struct {
	Telegram TelegramAlerts `json:"telegram"`
}

// TelegramAlerts forwards audit entries at or above MinLevel to a chat.
// Token falls back to TELEGRAM_TOKEN.
type TelegramAlerts struct {
	Enabled    bool    `json:"enabled"`
	Token      string  `json:"token,omitempty"`
	ChatID     int64   `json:"chat_id,omitempty"`
	ThreadID   int     `json:"thread_id,omitempty"`
	MinLevel   string  `json:"min_level,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	QueueSize  int     `json:"queue_size,omitempty"`
}

type DebugConfig struct {
	Pprof PprofConfig `json:"pprof"`
}

// PprofConfig controls the optional pprof HTTP listener (serve mode only).
type PprofConfig struct {
	Enabled              bool   `json:"enabled"`
	Address              string `json:"address"`
	BlockProfileRate     int    `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int    `json:"mutex_profile_fraction,omitempty"`
}
