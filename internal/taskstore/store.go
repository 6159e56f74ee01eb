// Package taskstore persists the task table as a single JSON document.
//
// Every read loads the whole file; every write replaces it atomically
// (temp file in the same directory + fsync + rename). An in-process mutex
// serializes read-modify-write cycles.
//
// Known limitation: there is no cross-process lock. Two processes writing the
// same file concurrently can lose an update.
package taskstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mailsched/internal/task"
	logx "mailsched/pkg/logx"
)

const DefaultPath = "./email_tasks.json"

type Store struct {
	path string
	log  logx.Logger

	mu sync.Mutex
}

func New(path string, log logx.Logger) *Store {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log}
}

func (s *Store) Path() string { return s.path }

// Load returns the persisted task table.
//
// A missing file or a file that does not decode to a JSON object yields an
// empty table and no error. Other read failures are returned.
func (s *Store) Load(ctx context.Context) (task.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Save replaces the persisted table with tasks.
func (s *Store) Save(ctx context.Context, tasks task.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, tasks)
}

// Update runs fn against the current table and saves the result if fn
// returns nil. Load, fn and Save run under one lock.
func (s *Store) Update(ctx context.Context, fn func(tasks task.Set) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if err := fn(tasks); err != nil {
		return err
	}
	return s.saveLocked(ctx, tasks)
}

func (s *Store) loadLocked(ctx context.Context) (task.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return task.Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return task.Set{}, nil
	}

	var tasks task.Set
	if err := json.Unmarshal(b, &tasks); err != nil || tasks == nil {
		s.log.Warn("task file unreadable; treating as empty", logx.String("path", s.path), logx.Err(err))
		return task.Set{}, nil
	}
	for name, d := range tasks {
		tasks[name] = d.Normalized()
	}
	return tasks, nil
}

func (s *Store) saveLocked(ctx context.Context, tasks task.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tasks == nil {
		tasks = task.Set{}
	}
	b, err := json.MarshalIndent(tasks.Clone(), "", "    ")
	if err != nil {
		return fmt.Errorf("encode task file: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return err
	}
	s.log.Debug("task file saved", logx.String("path", s.path), logx.Int("tasks", len(tasks)))
	return nil
}
