package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate checks field syntax. It does not touch the network or open files.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Scheduler.Overlap)) {
	case "", "skip", "allow":
	default:
		errs = append(errs, fmt.Errorf("scheduler.overlap: must be skip or allow, got %q", cfg.Scheduler.Overlap))
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	for path, raw := range map[string]string{
		"scheduler.firing_timeout":   cfg.Scheduler.FiringTimeout,
		"scheduler.shutdown_timeout": cfg.Scheduler.ShutdownTimeout,
		"mail.dial_timeout":          cfg.Mail.DialTimeout,
		"audit.busy_timeout":         cfg.Audit.BusyTimeout,
		"audit.connect_timeout":      cfg.Audit.ConnectTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Mail.Port < 0 || cfg.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("mail.port: out of range: %d", cfg.Mail.Port))
	}
	if cfg.Mail.RatePerSec < 0 {
		errs = append(errs, errors.New("mail.rate_per_sec: must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Audit.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3", "mongo", "mongodb":
	default:
		errs = append(errs, fmt.Errorf("audit.driver: unknown driver %q", cfg.Audit.Driver))
	}

	if tg := cfg.Alerts.Telegram; tg.Enabled {
		if tg.ChatID == 0 {
			errs = append(errs, errors.New("alerts.telegram.chat_id: required when enabled"))
		}
		switch strings.ToUpper(strings.TrimSpace(tg.MinLevel)) {
		case "", "INFO", "WARNING", "ERROR":
		default:
			errs = append(errs, fmt.Errorf("alerts.telegram.min_level: unknown level %q", tg.MinLevel))
		}
	}
	if pp := cfg.Debug.Pprof; pp.Enabled {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(pp.Address)); err != nil {
			errs = append(errs, fmt.Errorf("debug.pprof.address: %w", err))
		}
	}
	return errors.Join(errs...)
}
