package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mailsched/internal/task"
	logx "mailsched/pkg/logx"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	s := New(cfg, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestFirstFiringNotBeforeInterval(t *testing.T) {
	s := newTestService(t, Config{})

	fired := make(chan time.Time, 1)
	registered := time.Now()
	require.NoError(t, s.AddJob("task_1", 1, task.Seconds, func(context.Context) {
		select {
		case fired <- time.Now():
		default:
		}
	}))

	select {
	case at := <-fired:
		require.GreaterOrEqual(t, at.Sub(registered), time.Second)
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestIntervalScheduleIsExact(t *testing.T) {
	t.Parallel()
	ref := time.Date(2026, 1, 2, 3, 4, 5, 700_000_000, time.UTC)
	next := intervalSchedule{every: 5 * time.Second}.Next(ref)
	require.Equal(t, ref.Add(5*time.Second), next)
}

func TestRemoveJobUnknownReportsNotRunning(t *testing.T) {
	s := newTestService(t, Config{})
	require.False(t, s.RemoveJob("task_404"))
}

func TestRemoveJobStopsFiring(t *testing.T) {
	s := newTestService(t, Config{})

	var calls atomic.Int32
	require.NoError(t, s.AddEvery("task_1", 300*time.Millisecond, func(context.Context) { calls.Add(1) }))
	require.True(t, s.Has("task_1"))
	require.True(t, s.RemoveJob("task_1"))
	require.False(t, s.Has("task_1"))

	time.Sleep(700 * time.Millisecond)
	require.Zero(t, calls.Load())
	require.Empty(t, s.Jobs())
}

func TestAddJobReplacesSameName(t *testing.T) {
	s := newTestService(t, Config{})
	noop := func(context.Context) {}
	require.NoError(t, s.AddEvery("task_1", time.Hour, noop))
	require.NoError(t, s.AddEvery("task_1", 2*time.Hour, noop))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, 2*time.Hour, jobs[0].Every)
	require.False(t, jobs[0].Next.IsZero())
}

func TestSlowJobDoesNotDelayOthers(t *testing.T) {
	s := newTestService(t, Config{})

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, s.AddEvery("slow", 200*time.Millisecond, func(ctx context.Context) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}))

	var fast atomic.Int32
	require.NoError(t, s.AddEvery("fast", 200*time.Millisecond, func(context.Context) { fast.Add(1) }))

	require.Eventually(t, func() bool { return fast.Load() >= 3 }, 3*time.Second, 20*time.Millisecond)
}

func TestPanickingJobIsContained(t *testing.T) {
	s := newTestService(t, Config{})

	require.NoError(t, s.AddEvery("bad", 150*time.Millisecond, func(context.Context) { panic("boom") }))
	var ok atomic.Int32
	require.NoError(t, s.AddEvery("good", 150*time.Millisecond, func(context.Context) { ok.Add(1) }))

	require.Eventually(t, func() bool { return ok.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestSkipIfRunningSerializesPerTask(t *testing.T) {
	s := newTestService(t, Config{Overlap: OverlapSkipIfRunning})

	var running, maxRunning, calls atomic.Int32
	require.NoError(t, s.AddEvery("task_1", 100*time.Millisecond, func(ctx context.Context) {
		calls.Add(1)
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		select {
		case <-time.After(350 * time.Millisecond):
		case <-ctx.Done():
		}
		running.Add(-1)
	}))

	time.Sleep(1200 * time.Millisecond)
	require.GreaterOrEqual(t, calls.Load(), int32(2))
	require.Equal(t, int32(1), maxRunning.Load())
}

func TestShutdownCancelsRunningFirings(t *testing.T) {
	s := New(Config{}, logx.Nop())
	s.Start(context.Background())

	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)
	require.NoError(t, s.AddEvery("task_1", 100*time.Millisecond, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		select {
		case cancelled <- struct{}{}:
		default:
		}
	}))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.Len(t, cancelled, 1)
	require.ErrorIs(t, s.AddEvery("late", time.Second, func(context.Context) {}), ErrStopped)
}

func TestParseOverlap(t *testing.T) {
	t.Parallel()
	p, err := ParseOverlap("")
	require.NoError(t, err)
	require.Equal(t, OverlapSkipIfRunning, p)
	p, err = ParseOverlap("ALLOW")
	require.NoError(t, err)
	require.Equal(t, OverlapAllow, p)
	_, err = ParseOverlap("queue")
	require.Error(t, err)
}
