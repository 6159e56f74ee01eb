package runner

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const DefaultInvalidLogPath = "./invalid_emails.log"

// InvalidLog appends rejected addresses, one per line.
type InvalidLog struct {
	path string
	mu   sync.Mutex
}

func NewInvalidLog(path string) *InvalidLog {
	if strings.TrimSpace(path) == "" {
		path = DefaultInvalidLogPath
	}
	return &InvalidLog{path: path}
}

func (l *InvalidLog) Path() string { return l.path }

func (l *InvalidLog) Append(addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}
	var b strings.Builder
	for _, a := range addrs {
		b.WriteString(a)
		b.WriteByte('\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
