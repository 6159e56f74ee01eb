// Package scheduler fires recurring jobs at fixed intervals.
//
// # Overview
//
// Jobs are registered under the task name they belong to (e.g. "task_3").
// Names are unique: registering a name again replaces the previous job, and
// RemoveJob cancels it. Triggering is driven by a robfig/cron runner; each
// firing runs in its own goroutine so a slow job never delays another one.
//
// # Timing
//
// A job registered at T first fires no earlier than T+interval (or
// Start+interval when registered before Start), then every interval after the
// previous firing time. The interval is exact: no rounding to whole seconds.
//
// # Overlap
//
// With OverlapSkipIfRunning (the default) a firing is skipped while the
// previous firing of the same job is still running. OverlapAllow lets
// firings of one job run concurrently.
//
// # Lifecycle
//
// Start begins dispatch. Shutdown stops dispatch, cancels the context handed
// to running firings and waits for them to return (bounded by its ctx).
package scheduler
