package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mailsched/internal/audit"
	logx "mailsched/pkg/logx"
)

type capture struct {
	mu   sync.Mutex
	msgs []string
}

func (c *capture) post(_ context.Context, text string) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, text)
	c.mu.Unlock()
	return nil
}

func (c *capture) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.msgs...)
}

func TestTelegramFiltersByLevel(t *testing.T) {
	c := &capture{}
	s := New(Config{RatePerSec: 100}, c.post, logx.Nop())
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, audit.Entry{TaskName: "task_1", Status: audit.StatusSent, Level: audit.LevelInfo}))
	require.NoError(t, s.Record(ctx, audit.Entry{
		TaskName: "task_1",
		Status:   audit.StatusFailed,
		Level:    audit.LevelError,
		Details:  map[string]any{"recipient": "ada@example.com"},
	}))
	require.NoError(t, s.Close())

	msgs := c.snapshot()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "[ERROR] task_1: Email failed")
	require.Contains(t, msgs[0], "recipient: ada@example.com")

	require.ErrorIs(t, s.Record(ctx, audit.Entry{Level: audit.LevelError}), audit.ErrClosed)
}

func TestTelegramDropsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	post := func(ctx context.Context, _ string) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}
	s := New(Config{QueueSize: 1, RatePerSec: 100}, post, logx.Nop())
	ctx := context.Background()
	e := audit.Entry{TaskName: "task_1", Status: "Error: boom", Level: audit.LevelError}

	// The worker takes the first entry and blocks; the second fills the queue.
	require.NoError(t, s.Record(ctx, e))
	require.Eventually(t, func() bool { return len(s.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Record(ctx, e))
	require.ErrorIs(t, s.Record(ctx, e), ErrQueueFull)

	close(block)
	require.NoError(t, s.Close())
}

func TestNewTelegramRequiresSettings(t *testing.T) {
	_, err := NewTelegram(Config{}, logx.Nop())
	require.Error(t, err)
	_, err = NewTelegram(Config{Token: "x"}, logx.Nop())
	require.Error(t, err)
}
