package scheduler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"mailsched/internal/task"
	logx "mailsched/pkg/logx"
)

var ErrStopped = errors.New("scheduler stopped")

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:  cfg,
		log:  log,
		jobs: map[string]*jobDef{},
	}
	s.loc = s.loadLocation()
	s.c = cron.New(cron.WithLocation(s.loc), cron.WithLogger(cronLogger{log: log}))
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	return s
}

// AddJob registers job to fire every interval x unit under name.
// An existing job with the same name is replaced.
func (s *Service) AddJob(name string, interval int, unit task.Unit, job Job) error {
	every, err := task.Every(interval, unit)
	if err != nil {
		return err
	}
	return s.AddEvery(name, every, job)
}

// AddEvery is AddJob with a precomputed period.
func (s *Service) AddEvery(name string, every time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("job name required")
	}
	if every <= 0 {
		return task.ErrInvalidInterval
	}
	if job == nil {
		return errors.New("job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	replaced := s.removeLocked(name)

	d := &jobDef{name: name, every: every, added: time.Now()}
	d.entryID = s.c.Schedule(intervalSchedule{every: every}, s.wrap(name, job))
	s.jobs[name] = d

	s.log.Debug("job registered",
		logx.String("task", name),
		logx.Duration("every", every),
		logx.Bool("replaced", replaced),
		logx.Bool("running", s.started),
	)
	return nil
}

// RemoveJob cancels the job registered under name. It reports false when no
// such job is live; that is not an error.
func (s *Service) RemoveJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(strings.TrimSpace(name))
	if removed {
		s.log.Debug("job removed", logx.String("task", name))
	}
	return removed
}

func (s *Service) removeLocked(name string) bool {
	d, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.c.Remove(d.entryID)
	delete(s.jobs, name)
	return true
}

// Has reports whether a job is registered under name.
func (s *Service) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Jobs returns the live jobs sorted by name.
func (s *Service) Jobs() []JobInfo {
	s.mu.Lock()
	defs := make([]jobDef, 0, len(s.jobs))
	for _, d := range s.jobs {
		defs = append(defs, *d)
	}
	c := s.c
	loc := s.loc
	s.mu.Unlock()

	out := make([]JobInfo, 0, len(defs))
	for _, d := range defs {
		it := JobInfo{Name: d.name, Every: d.every, Added: d.added}
		if e := c.Entry(d.entryID); e.Valid() {
			if !e.Next.IsZero() {
				it.Next = e.Next.In(loc)
			}
			if !e.Prev.IsZero() {
				it.Prev = e.Prev.In(loc)
			}
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins dispatching due jobs. It is idempotent. Running firings are
// cancelled once ctx is done; dispatch continues until Shutdown.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	context.AfterFunc(ctx, s.runCancel)
	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("tz", s.loc.String()),
		logx.String("overlap", s.cfg.Overlap.String()),
		logx.Int("jobs", len(s.jobs)),
	)
}

// Shutdown stops dispatch, cancels running firings and waits for them until
// ctx is done. The service cannot be restarted afterwards.
func (s *Service) Shutdown(ctx context.Context) error {
	start := time.Now()
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	c := s.c
	cancel := s.runCancel
	s.mu.Unlock()

	// Stop returns a context that is done once running jobs have returned.
	done := c.Stop()
	cancel()

	select {
	case <-done.Done():
		s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; firings still running", logx.Duration("took", time.Since(start)))
		return ctx.Err()
	}
}

// wrap builds the cron job for one task: panic recovery, optional overlap
// guard, run context and timeout.
func (s *Service) wrap(name string, job Job) cron.Job {
	wrappers := []cron.JobWrapper{cron.Recover(cronLogger{log: s.log.With(logx.String("task", name))})}
	if s.cfg.Overlap == OverlapSkipIfRunning {
		wrappers = append(wrappers, cron.SkipIfStillRunning(cronLogger{log: s.log.With(logx.String("task", name))}))
	}
	runCtx := s.runCtx
	timeout := s.cfg.FiringTimeout

	fire := cron.FuncJob(func() {
		if runCtx.Err() != nil {
			return
		}
		ctx := runCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(runCtx, timeout)
			defer cancel()
		}
		start := time.Now()
		job(ctx)
		dur := time.Since(start)
		if dur >= 750*time.Millisecond {
			s.log.Info("firing completed", logx.String("task", name), logx.Duration("dur", dur))
		} else {
			s.log.Debug("firing completed", logx.String("task", name), logx.Duration("dur", dur))
		}
	})
	return cron.NewChain(wrappers...).Then(fire)
}

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
