package taskstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "mailsched/pkg/logx"
)

const watchDebounce = 250 * time.Millisecond

// ErrWatcherClosed is returned by Watch when fsnotify closes its channels.
// Callers are expected to restart the watch.
var ErrWatcherClosed = errors.New("task file watcher closed")

// Watch calls onChange (debounced) whenever the task file is written,
// created, renamed over or removed. It watches the parent directory so the
// temp-file + rename writes done by Save are observed.
//
// Watch blocks until ctx is done (returns nil) or the watcher breaks.
func (s *Store) Watch(ctx context.Context, onChange func(ctx context.Context)) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	s.log.Debug("task file watcher started", logx.String("dir", dir), logx.String("file", file))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			onChange(ctx)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return ErrWatcherClosed
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.log.Debug("task file change detected", logx.String("op", ev.Op.String()))
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			if err == nil {
				continue
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.log.Warn("task file watch overflow; forcing resync", logx.Err(err))
				debounce()
				continue
			}
			s.log.Warn("task file watch error", logx.Err(err))
		}
	}
}
