package config

import (
	"strings"

	logx "mailsched/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs plus
// safe fields for logging. Secrets (tokens) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Mail != newCfg.Mail {
		changed = append(changed, "mail")
		attrs = append(attrs, logx.Any("mail.rate_per_sec", newCfg.Mail.RatePerSec))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
	}
	if oldCfg.Store != newCfg.Store {
		changed = append(changed, "store")
	}
	if oldCfg.Audit != newCfg.Audit {
		changed = append(changed, "audit")
		attrs = append(attrs, logx.String("audit.driver", newCfg.Audit.Driver))
	}
	if oldCfg.Alerts != newCfg.Alerts {
		changed = append(changed, "alerts")
		attrs = append(attrs, logx.Bool("alerts.telegram", newCfg.Alerts.Telegram.Enabled))
	}
	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs, logx.Bool("debug.pprof", newCfg.Debug.Pprof.Enabled))
	}
	if strings.TrimSpace(oldCfg.InvalidLog) != strings.TrimSpace(newCfg.InvalidLog) {
		changed = append(changed, "invalid_log")
	}
	return changed, attrs
}

// LiveSections are applied on reload without a restart; other sections need
// one.
var LiveSections = map[string]bool{"logging": true, "mail": true, "debug": true}
