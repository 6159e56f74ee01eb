package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mailsched/internal/config"
	"mailsched/internal/observability/pprof"
	rtsup "mailsched/internal/runtime/supervisor"
	logx "mailsched/pkg/logx"
	"mailsched/pkg/systemd"
)

// storeWatchRestarts bounds retries when the store directory cannot be
// watched; the schedule keeps running without live resync.
const storeWatchRestarts = 8

// Serve runs the scheduler until ctx is done, then shuts down within the
// configured shutdown timeout. Tasks must already be registered (Reconcile).
func (a *App) Serve(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log.With(logx.String("comp", "supervisor"))), WithCancelOnError(true))

	a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error {
		if _, _, err := mapSchedulerConfig(cfg); err != nil {
			return err
		}
		_, err := mapAuditConfig(cfg)
		return err
	})

	a.sched.Start(a.sup.Context())

	a.pprof = pprof.New(a.log)
	if err := a.pprof.Apply(a.sup.Context(), mapPprofConfig(a.cfg)); err != nil {
		a.log.Warn("pprof not started", logx.Err(err))
	}

	if a.cfg.Store.Watch {
		a.sup.GoRestart("store.watch", func(c context.Context) error {
			return a.store.Watch(c, func(c context.Context) {
				if _, err := a.ctrl.Sync(c); err != nil {
					a.log.Warn("task file sync failed", logx.Err(err))
				}
			})
		}, rtsup.WithRestartBackoff(500*time.Millisecond, 30*time.Second), rtsup.WithMaxRestarts(storeWatchRestarts))
	}

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	if wd := systemd.WatchdogInterval(); wd > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			t := time.NewTicker(wd / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					_, _ = systemd.Watchdog()
				}
			}
		})
	}

	jobs := a.sched.Jobs()
	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify READY failed", logx.Err(err))
	} else if sent {
		_, _ = systemd.Status(fmt.Sprintf("%d task(s) scheduled", len(jobs)))
	}
	a.log.Info("serving", logx.Int("tasks", len(jobs)), logx.String("store", a.store.Path()))
	for _, j := range jobs {
		a.log.Info("task scheduled", logx.String("task", j.Name), logx.Duration("every", j.Every), logx.Time("next", j.Next))
	}

	<-a.sup.Context().Done()
	reason := StopSignal
	if a.sup.Err() != nil {
		reason = StopFatalError
	}
	return a.stop(reason)
}

// stop runs the shutdown steps within the shutdown timeout. Step failures
// are logged; only a fatal supervisor error is returned, so an interrupted
// serve exits cleanly even when a firing outlives the timeout.
func (a *App) stop(reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	step := func(name string, fn func(context.Context) error) {
		start := time.Now()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		if took := time.Since(start); took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	}

	step("scheduler", a.sched.Shutdown)
	step("pprof", func(c context.Context) error {
		a.pprof.Stop(c)
		return nil
	})
	step("supervisor", func(c context.Context) error {
		err := a.sup.Stop(c)
		if errors.Is(err, context.DeadlineExceeded) {
			a.log.Warn("background loops still running", logx.Strings("names", a.sup.Running()))
		}
		return err
	})

	a.log.Info("stopped")
	if reason == StopFatalError {
		return a.sup.Err()
	}
	return nil
}

// reloadLoop applies config reloads. Logging, mail rate and pprof change live;
// everything else is reported as requiring a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}

			sections, attrs := config.SummarizeChange(last, next)
			last = next
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}

			a.logs.Apply(mapLogConfig(next))
			a.limited.SetRate(next.Mail.RatePerSec)
			if err := a.pprof.Apply(ctx, mapPprofConfig(next)); err != nil {
				a.log.Warn("pprof apply failed", logx.Err(err))
			}

			var restart []string
			for _, s := range sections {
				if !config.LiveSections[s] {
					restart = append(restart, s)
				}
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config applied", fields...)
			if len(restart) > 0 {
				a.log.Warn("config sections changed that need a restart", logx.Strings("sections", restart))
			}
		}
	}
}
