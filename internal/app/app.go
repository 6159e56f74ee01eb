// Package app wires the task store, scheduler, mailer and audit sinks into
// one-shot commands and the long-running serve mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"mailsched/internal/alert"
	"mailsched/internal/audit"
	"mailsched/internal/config"
	"mailsched/internal/controller"
	"mailsched/internal/mailer"
	"mailsched/internal/observability/pprof"
	"mailsched/internal/runner"
	"mailsched/internal/scheduler"
	"mailsched/internal/task"
	"mailsched/internal/taskstore"
	logx "mailsched/pkg/logx"
)

// ErrConfig marks failures loading configuration or opening backends.
var ErrConfig = errors.New("configuration error")

type Options struct {
	ConfigPath string
	EnvFiles   []string
	// Serve opens audit and alert sinks; one-shot commands skip them.
	Serve bool
	// LogOut receives console logs (default stdout).
	LogOut io.Writer
	// Sender replaces the SMTP sender (tests).
	Sender mailer.Sender
}

type App struct {
	opts Options

	cfgm *ConfigManager
	cfg  *Config

	logs *logx.Service
	log  logx.Logger

	store   *taskstore.Store
	sched   *scheduler.Service
	limited *mailer.Limited
	sink    audit.Sink
	runner  *runner.Runner
	ctrl    *controller.Controller

	shutdownTimeout time.Duration
	sup             *Supervisor
	pprof           *pprof.Server
}

func New(ctx context.Context, opts Options) (*App, error) {
	envFile, envErr := config.LoadEnv(opts.EnvFiles...)

	cfgm := NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	out := opts.LogOut
	if out == nil {
		out = logx.Stdout()
	}
	logSvc, log := logx.NewWithWriter(mapLogConfig(cfg), out)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	if envErr != nil {
		log.Warn("failed to read .env", logx.Err(envErr))
	} else if envFile != "" {
		log.Debug(".env loaded", logx.String("path", envFile))
	}

	a := &App{opts: opts, cfgm: cfgm, cfg: cfg, logs: logSvc, log: log}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	schedCfg, shutdown, err := mapSchedulerConfig(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	a.shutdownTimeout = shutdown
	a.sched = scheduler.New(schedCfg, a.log.With(logx.String("comp", "scheduler")))
	a.store = taskstore.New(cfg.Store.Path, a.log.With(logx.String("comp", "taskstore")))

	sender := a.opts.Sender
	if sender == nil {
		creds := config.CredentialsFromEnv()
		smtpCfg, err := mapSMTPConfig(cfg, creds)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		if a.opts.Serve && !creds.Complete() {
			a.log.Warn("SENDER_EMAIL or SENDER_PASSWORD not set; every send will fail until provided")
		}
		sender = mailer.NewSMTPSender(smtpCfg, a.log)
	}
	a.limited = mailer.NewLimited(sender, cfg.Mail.RatePerSec)

	a.sink = audit.Nop()
	if a.opts.Serve {
		sink, err := a.openSinks(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		a.sink = sink
	}

	a.runner = runner.New(a.limited, a.sink, runner.NewInvalidLog(cfg.InvalidLog), a.log)
	a.ctrl = controller.New(a.store, a.sched, a.runner.Job, a.log)
	return nil
}

func (a *App) openSinks(ctx context.Context) (audit.Sink, error) {
	acfg, err := mapAuditConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	primary, err := audit.Open(ctx, acfg, a.log)
	if err != nil {
		return nil, err
	}
	sinks := []audit.Sink{primary}

	if tcfg, ok := mapAlertConfig(a.cfg); ok {
		tg, err := alert.NewTelegram(tcfg, a.log)
		if err != nil {
			a.log.Error("telegram alerts disabled", logx.Err(err))
		} else {
			sinks = append(sinks, tg)
			a.log.Info("telegram alerts enabled", logx.Int64("chat_id", tcfg.ChatID), logx.String("min_level", string(tcfg.MinLevel)))
		}
	}
	return audit.NewMulti(a.log.With(logx.String("comp", "audit")), sinks...), nil
}

// Reconcile registers every stored task with the scheduler.
func (a *App) Reconcile(ctx context.Context) (int, error) {
	return a.ctrl.Rehydrate(ctx)
}

func (a *App) Add(ctx context.Context, def task.Definition) (string, error) {
	return a.ctrl.Add(ctx, def)
}

func (a *App) List(ctx context.Context) ([]controller.Summary, error) {
	return a.ctrl.List(ctx)
}

func (a *App) Remove(ctx context.Context, name string) (bool, error) {
	return a.ctrl.Remove(ctx, name)
}

// Jobs lists live jobs with their next firing time.
func (a *App) Jobs() []scheduler.JobInfo { return a.sched.Jobs() }

func (a *App) Logger() logx.Logger { return a.log }

// Close releases sinks and log files. Call after Serve returns.
func (a *App) Close() error {
	var errs []error
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
