// Package supervisor runs the background loops of serve mode (file watchers,
// config reload, alert delivery) under one cancellable context.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	logx "mailsched/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	cancelOnErr bool

	wg      sync.WaitGroup
	mu      sync.Mutex
	err     error
	running map[string]int
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option { return func(s *Supervisor) { s.log = log } }

// WithCancelOnError cancels the shared context on the first failure.
func WithCancelOnError(on bool) Option { return func(s *Supervisor) { s.cancelOnErr = on } }

func New(parent context.Context, opts ...Option) *Supervisor {
	s := &Supervisor{running: map[string]int{}}
	s.ctx, s.cancel = context.WithCancel(parent)
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the context without waiting.
func (s *Supervisor) Cancel() { s.cancel() }

// Err is the first recorded failure.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Running lists loops that have not returned yet.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.running))
	for name := range s.running {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Go0 runs fn once. A panic is recovered and recorded as a failure.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	s.spawn(name, func() {
		if err := s.guard(func() error { fn(s.ctx); return nil }); err != nil {
			s.fail(fmt.Errorf("%s: %w", name, err))
		}
	})
}

// RestartOption tunes GoRestart.
type RestartOption func(*restartPolicy)

type restartPolicy struct {
	min, max    time.Duration
	maxRestarts int
}

// WithRestartBackoff sets the first and the largest delay between runs.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.min = min
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithMaxRestarts stops restarting after n consecutive failures. The loop is
// then abandoned with an error log; the supervisor keeps running.
func WithMaxRestarts(n int) RestartOption { return func(p *restartPolicy) { p.maxRestarts = n } }

// GoRestart runs fn until it returns nil or the context ends, restarting it
// with exponential backoff after errors and panics.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	p := restartPolicy{min: 250 * time.Millisecond, max: 30 * time.Second}
	for _, o := range opts {
		o(&p)
	}
	if p.max < p.min {
		p.max = p.min
	}

	s.spawn(name, func() {
		delay := p.min
		failures := 0
		for s.ctx.Err() == nil {
			began := time.Now()
			err := s.guard(func() error { return fn(s.ctx) })
			if err == nil || s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			// A run that stayed up a while counts as recovered.
			if time.Since(began) >= 30*time.Second {
				failures, delay = 0, p.min
			}
			failures++
			if p.maxRestarts > 0 && failures > p.maxRestarts {
				s.log.Error("loop abandoned", logx.String("name", name), logx.Int("failures", failures), logx.Err(err))
				return
			}
			s.log.Warn("loop failed; restarting", logx.String("name", name), logx.Duration("backoff", delay), logx.Err(err))
			if !s.sleep(delay) {
				return
			}
			delay = min(delay*2, p.max)
		}
	})
}

// Stop cancels the context and waits for every loop.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every loop has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) spawn(name string, body func()) {
	s.mu.Lock()
	s.running[name]++
	s.mu.Unlock()
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if s.running[name]--; s.running[name] <= 0 {
				delete(s.running, name)
			}
			s.mu.Unlock()
		}()
		s.log.Debug("loop started", logx.String("name", name))
		body()
		s.log.Debug("loop stopped", logx.String("name", name))
	}()
}

// guard converts a panic in fn into an error.
func (s *Supervisor) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic recovered", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (s *Supervisor) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Supervisor) fail(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	if s.cancelOnErr {
		s.cancel()
	}
}
