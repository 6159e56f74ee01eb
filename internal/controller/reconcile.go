package controller

import (
	"context"

	"mailsched/internal/task"
	logx "mailsched/pkg/logx"
)

// Rehydrate registers every stored task. Definitions that fail validation are
// logged and skipped. It returns the number of scheduled tasks.
func (c *Controller) Rehydrate(ctx context.Context) (int, error) {
	tasks, err := c.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range tasks.Names() {
		def := tasks[name].Normalized()
		if err := def.Validate(); err != nil {
			c.log.Warn("skipping invalid stored task", logx.String("task", name), logx.Err(err))
			continue
		}
		if err := c.schedule(name, def); err != nil {
			c.log.Error("failed to schedule stored task", logx.String("task", name), logx.Err(err))
			continue
		}
		n++
	}
	c.log.Info("tasks rehydrated", logx.Int("scheduled", n), logx.Int("stored", len(tasks)))
	return n, nil
}

// SyncResult counts the changes applied by Sync.
type SyncResult struct {
	Added    []string
	Removed  []string
	Replaced []string
}

func (r SyncResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Replaced) == 0
}

// Sync aligns the live schedule with the store after an external edit, such
// as a one-shot add or remove from another process.
func (c *Controller) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	tasks, err := c.store.Load(ctx)
	if err != nil {
		return res, err
	}

	c.mu.Lock()
	live := make(map[string]task.Definition, len(c.live))
	for k, v := range c.live {
		live[k] = v
	}
	c.mu.Unlock()

	for name := range live {
		if _, ok := tasks[name]; !ok {
			c.unschedule(name)
			res.Removed = append(res.Removed, name)
		}
	}
	for _, name := range tasks.Names() {
		def := tasks[name].Normalized()
		prev, running := live[name]
		if running && prev.SameContent(def) {
			continue
		}
		if err := def.Validate(); err != nil {
			c.log.Warn("skipping invalid stored task", logx.String("task", name), logx.Err(err))
			if running {
				c.unschedule(name)
				res.Removed = append(res.Removed, name)
			}
			continue
		}
		if err := c.schedule(name, def); err != nil {
			c.log.Error("failed to schedule stored task", logx.String("task", name), logx.Err(err))
			continue
		}
		if running {
			res.Replaced = append(res.Replaced, name)
		} else {
			res.Added = append(res.Added, name)
		}
	}

	if !res.Empty() {
		c.log.Info("schedule synced with store",
			logx.Strings("added", res.Added),
			logx.Strings("removed", res.Removed),
			logx.Strings("replaced", res.Replaced),
		)
	}
	return res, nil
}
