package controller

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"mailsched/internal/task"
	"mailsched/internal/taskstore"
	logx "mailsched/pkg/logx"
)

type fakeSched struct {
	mu   sync.Mutex
	jobs map[string]int
	err  error
}

func newFakeSched() *fakeSched { return &fakeSched{jobs: map[string]int{}} }

func (f *fakeSched) AddJob(name string, interval int, unit task.Unit, job func(context.Context)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, err := task.Every(interval, unit); err != nil {
		return err
	}
	f.jobs[name] = interval
	return nil
}

func (f *fakeSched) RemoveJob(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	delete(f.jobs, name)
	return ok
}

func (f *fakeSched) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	return ok
}

func noopJobs(string, task.Definition) func(context.Context) { return func(context.Context) {} }

func setup(t *testing.T) (*Controller, *taskstore.Store, *fakeSched) {
	t.Helper()
	store := taskstore.New(filepath.Join(t.TempDir(), "email_tasks.json"), logx.Nop())
	sched := newFakeSched()
	return New(store, sched, noopJobs, logx.Nop()), store, sched
}

func sampleDef() task.Definition {
	return task.Definition{
		Interval:    10,
		Unit:        task.Minutes,
		EmailList:   "list.csv",
		MessageFile: "msg.txt",
		Subject:     "Hi",
	}
}

func TestAddPersistsThenSchedules(t *testing.T) {
	ctx := context.Background()
	c, store, sched := setup(t)

	name, err := c.Add(ctx, sampleDef())
	require.NoError(t, err)
	require.Equal(t, "task_1", name)
	require.True(t, sched.has("task_1"))

	tasks, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, tasks, "task_1")
	require.Equal(t, []string{}, tasks["task_1"].Attachments)
}

func TestAddDuplicateLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	c, store, sched := setup(t)

	_, err := c.Add(ctx, sampleDef())
	require.NoError(t, err)

	dup := sampleDef()
	dup.Attachments = []string{}
	_, err = c.Add(ctx, dup)
	require.ErrorIs(t, err, task.ErrDuplicate)

	tasks, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Len(t, sched.jobs, 1)

	other := sampleDef()
	other.Attachments = []string{"a.pdf"}
	name, err := c.Add(ctx, other)
	require.NoError(t, err)
	require.Equal(t, "task_2", name)
}

func TestAddRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	c, store, _ := setup(t)

	bad := sampleDef()
	bad.Unit = "weeks"
	_, err := c.Add(ctx, bad)
	require.ErrorIs(t, err, task.ErrInvalidUnit)

	bad = sampleDef()
	bad.Interval = 0
	_, err = c.Add(ctx, bad)
	require.ErrorIs(t, err, task.ErrInvalidInterval)

	tasks, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestAddKeepsRecordWhenSchedulingFails(t *testing.T) {
	ctx := context.Background()
	c, store, sched := setup(t)
	sched.err = errors.New("scheduler stopped")

	name, err := c.Add(ctx, sampleDef())
	require.Error(t, err)
	require.Equal(t, "task_1", name)

	tasks, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, tasks, "task_1")
}

func TestRemoveUnknownIsNotFound(t *testing.T) {
	ctx := context.Background()
	c, store, _ := setup(t)
	_, err := c.Add(ctx, sampleDef())
	require.NoError(t, err)

	_, err = c.Remove(ctx, "task_9")
	require.ErrorIs(t, err, task.ErrNotFound)

	tasks, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestRemoveClearsStoreScheduleAndList(t *testing.T) {
	ctx := context.Background()
	c, _, sched := setup(t)
	_, err := c.Add(ctx, sampleDef())
	require.NoError(t, err)

	wasRunning, err := c.Remove(ctx, "task_1")
	require.NoError(t, err)
	require.True(t, wasRunning)
	require.False(t, sched.has("task_1"))

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRemoveStoredButNotRunning(t *testing.T) {
	ctx := context.Background()
	c, store, _ := setup(t)
	require.NoError(t, store.Save(ctx, task.Set{"task_1": sampleDef()}))

	wasRunning, err := c.Remove(ctx, "task_1")
	require.NoError(t, err)
	require.False(t, wasRunning)
}

func TestListNaturalOrder(t *testing.T) {
	ctx := context.Background()
	c, store, _ := setup(t)

	set := task.Set{}
	for _, n := range []string{"task_10", "task_2", "task_1"} {
		d := sampleDef()
		d.Subject = n
		set[n] = d
	}
	require.NoError(t, store.Save(ctx, set))

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "task_1", list[0].Name)
	require.Equal(t, "task_2", list[1].Name)
	require.Equal(t, "task_10", list[2].Name)
	require.Equal(t, 10, list[0].Interval)
	require.Equal(t, task.Minutes, list[0].Unit)
}

func TestNameBumpsAfterRemoval(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setup(t)

	for i := 1; i <= 2; i++ {
		d := sampleDef()
		d.Interval = i
		_, err := c.Add(ctx, d)
		require.NoError(t, err)
	}
	_, err := c.Remove(ctx, "task_1")
	require.NoError(t, err)

	d := sampleDef()
	d.Interval = 3
	name, err := c.Add(ctx, d)
	require.NoError(t, err)
	require.Equal(t, "task_3", name)
}
