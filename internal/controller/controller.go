// Package controller implements the task commands: add, list and remove.
//
// Every mutation is persisted before the live schedule is touched, so a crash
// between the two steps is repaired by the next start's rehydration.
package controller

import (
	"context"
	"fmt"
	"sync"

	"mailsched/internal/task"
	logx "mailsched/pkg/logx"
)

// Store is the persistence the controller needs.
type Store interface {
	Load(ctx context.Context) (task.Set, error)
	Update(ctx context.Context, fn func(tasks task.Set) error) error
}

// Scheduler is the live job table.
type Scheduler interface {
	AddJob(name string, interval int, unit task.Unit, job func(ctx context.Context)) error
	RemoveJob(name string) bool
}

// JobFactory binds a definition to the work one firing performs.
type JobFactory func(name string, def task.Definition) func(ctx context.Context)

// Summary is one row of List.
type Summary struct {
	Name     string
	Interval int
	Unit     task.Unit
	Subject  string
}

type Controller struct {
	store Store
	sched Scheduler
	jobs  JobFactory
	log   logx.Logger

	mu   sync.Mutex
	live map[string]task.Definition
}

func New(store Store, sched Scheduler, jobs JobFactory, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		store: store,
		sched: sched,
		jobs:  jobs,
		log:   log.With(logx.String("comp", "controller")),
		live:  map[string]task.Definition{},
	}
}

// Add persists def under a fresh name and schedules it. A definition with the
// same content as an existing one is rejected with task.ErrDuplicate and
// nothing changes.
func (c *Controller) Add(ctx context.Context, def task.Definition) (string, error) {
	def = def.Normalized()
	if err := def.Validate(); err != nil {
		return "", err
	}

	var name string
	err := c.store.Update(ctx, func(tasks task.Set) error {
		if existing, ok := tasks.FindSame(def); ok {
			return fmt.Errorf("%w (%s)", task.ErrDuplicate, existing)
		}
		name = tasks.NextName()
		tasks[name] = def
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := c.schedule(name, def); err != nil {
		return name, fmt.Errorf("task %s saved but not scheduled: %w", name, err)
	}
	c.log.Info("task added",
		logx.String("task", name),
		logx.Int("interval", def.Interval),
		logx.String("unit", string(def.Unit)),
	)
	return name, nil
}

// List reads the store; it never touches the live schedule.
func (c *Controller) List(ctx context.Context) ([]Summary, error) {
	tasks, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(tasks))
	for _, name := range tasks.Names() {
		d := tasks[name]
		out = append(out, Summary{Name: name, Interval: d.Interval, Unit: d.Unit, Subject: d.Subject})
	}
	return out, nil
}

// Remove deletes name from the store, then from the schedule. wasRunning is
// false when the store held the task but no live job did.
func (c *Controller) Remove(ctx context.Context, name string) (wasRunning bool, err error) {
	err = c.store.Update(ctx, func(tasks task.Set) error {
		if _, ok := tasks[name]; !ok {
			return fmt.Errorf("%w: %s", task.ErrNotFound, name)
		}
		delete(tasks, name)
		return nil
	})
	if err != nil {
		return false, err
	}

	wasRunning = c.unschedule(name)
	if !wasRunning {
		c.log.Warn("task removed but was not running", logx.String("task", name))
	} else {
		c.log.Info("task removed", logx.String("task", name))
	}
	return wasRunning, nil
}

func (c *Controller) schedule(name string, def task.Definition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sched.AddJob(name, def.Interval, def.Unit, c.jobs(name, def)); err != nil {
		return err
	}
	c.live[name] = def
	return nil
}

func (c *Controller) unschedule(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, name)
	return c.sched.RemoveJob(name)
}
