package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"mailsched/internal/alert"
	"mailsched/internal/audit"
	"mailsched/internal/config"
	"mailsched/internal/mailer"
	"mailsched/internal/observability/pprof"
	"mailsched/internal/scheduler"
	logx "mailsched/pkg/logx"
)

func mapLogConfig(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *Config) (scheduler.Config, time.Duration, error) {
	overlap, err := scheduler.ParseOverlap(cfg.Scheduler.Overlap)
	if err != nil {
		return scheduler.Config{}, 0, fmt.Errorf("scheduler.overlap: %w", err)
	}
	firing, err := parseDurationField("scheduler.firing_timeout", cfg.Scheduler.FiringTimeout)
	if err != nil {
		return scheduler.Config{}, 0, err
	}
	shutdown, err := parseDurationOrDefault("scheduler.shutdown_timeout", cfg.Scheduler.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return scheduler.Config{}, 0, err
	}
	return scheduler.Config{
		Timezone:      strings.TrimSpace(cfg.Scheduler.Timezone),
		Overlap:       overlap,
		FiringTimeout: firing,
	}, shutdown, nil
}

func mapSMTPConfig(cfg *Config, creds config.Credentials) (mailer.SMTPConfig, error) {
	dial, err := parseDurationField("mail.dial_timeout", cfg.Mail.DialTimeout)
	if err != nil {
		return mailer.SMTPConfig{}, err
	}
	return mailer.SMTPConfig{
		Host:        strings.TrimSpace(cfg.Mail.Host),
		Port:        cfg.Mail.Port,
		Username:    creds.Email,
		Password:    creds.Password,
		From:        strings.TrimSpace(cfg.Mail.From),
		DialTimeout: dial,
	}, nil
}

func mapAuditConfig(cfg *Config) (audit.Config, error) {
	a := cfg.Audit
	busy, err := parseDurationOrDefault("audit.busy_timeout", a.BusyTimeout, time.Second)
	if err != nil {
		return audit.Config{}, err
	}
	connect, err := parseDurationField("audit.connect_timeout", a.ConnectTimeout)
	if err != nil {
		return audit.Config{}, err
	}
	return audit.Config{
		Driver:          strings.TrimSpace(a.Driver),
		Path:            strings.TrimSpace(a.Path),
		BusyTimeout:     busy,
		MongoURI:        strings.TrimSpace(a.MongoURI),
		MongoDatabase:   strings.TrimSpace(a.MongoDatabase),
		MongoCollection: strings.TrimSpace(a.MongoCollection),
		ConnectTimeout:  connect,
	}, nil
}

// mapAlertConfig returns ok=false when Telegram alerts are disabled.
func mapAlertConfig(cfg *Config) (alert.Config, bool) {
	tg := cfg.Alerts.Telegram
	if !tg.Enabled {
		return alert.Config{}, false
	}
	token := strings.TrimSpace(tg.Token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(config.EnvTelegramToken))
	}
	return alert.Config{
		Token:      token,
		ChatID:     tg.ChatID,
		ThreadID:   tg.ThreadID,
		MinLevel:   audit.Level(strings.ToUpper(strings.TrimSpace(tg.MinLevel))),
		RatePerSec: tg.RatePerSec,
		QueueSize:  tg.QueueSize,
	}, true
}

func mapPprofConfig(cfg *Config) pprof.Config {
	pp := cfg.Debug.Pprof
	return pprof.Config{
		Enabled:              pp.Enabled,
		Address:              strings.TrimSpace(pp.Address),
		BlockProfileRate:     pp.BlockProfileRate,
		MutexProfileFraction: pp.MutexProfileFraction,
	}
}
