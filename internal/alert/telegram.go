// Package alert forwards audit entries at or above a threshold to Telegram.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"mailsched/internal/audit"
	rtsup "mailsched/internal/runtime/supervisor"
	logx "mailsched/pkg/logx"
)

var ErrQueueFull = errors.New("alert queue full")

type Config struct {
	Token      string
	ChatID     int64
	ThreadID   int
	MinLevel   audit.Level
	RatePerSec float64
	QueueSize  int
}

// PostFunc delivers one rendered alert.
type PostFunc func(ctx context.Context, text string) error

// Telegram is an audit.Sink that posts to a chat without blocking the caller.
// Entries are dropped when the queue is full.
type Telegram struct {
	cfg     Config
	log     logx.Logger
	post    PostFunc
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	queue  chan string
	sup    *rtsup.Supervisor
}

// NewTelegram connects a bot and starts the delivery worker.
func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	chat := &tele.Chat{ID: cfg.ChatID}
	opts := &tele.SendOptions{ThreadID: cfg.ThreadID, DisableWebPagePreview: true}
	post := func(_ context.Context, text string) error {
		_, err := b.Send(chat, text, opts)
		return err
	}
	return New(cfg, post, log), nil
}

// New starts a sink around an arbitrary PostFunc.
func New(cfg Config, post PostFunc, log logx.Logger) *Telegram {
	if cfg.MinLevel == "" {
		cfg.MinLevel = audit.LevelWarning
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "alert"))

	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	t := &Telegram{
		cfg:     cfg,
		log:     log,
		post:    post,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		queue:   make(chan string, cfg.QueueSize),
	}
	t.sup = rtsup.New(context.Background(), rtsup.WithLogger(log))
	q := t.queue
	t.sup.GoRestart("alert.worker", func(ctx context.Context) error {
		return t.worker(ctx, q)
	}, rtsup.WithRestartBackoff(time.Second, 30*time.Second))
	return t
}

func (t *Telegram) Record(ctx context.Context, e audit.Entry) error {
	_ = ctx
	if e.Level.Rank() < t.cfg.MinLevel.Rank() {
		return nil
	}
	text := Render(e)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return audit.ErrClosed
	}
	select {
	case t.queue <- text:
		return nil
	default:
		t.log.Warn("alert dropped; queue full", logx.String("task", e.TaskName), logx.String("status", e.Status))
		return ErrQueueFull
	}
}

// Close stops accepting entries and waits briefly for the queue to drain.
func (t *Telegram) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.sup.Wait(ctx); err != nil {
		t.sup.Cancel()
		return err
	}
	t.sup.Cancel()
	return nil
}

// worker returns nil once the queue is closed and drained.
func (t *Telegram) worker(ctx context.Context, q <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-q:
			if !ok {
				return nil
			}
			if err := t.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := t.post(ctx, text); err != nil {
				t.log.Warn("alert post failed", logx.Err(err))
			}
		}
	}
}

// Render formats an entry as a plain-text message.
func Render(e audit.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", e.Level, e.TaskName, e.Status)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %v", k, e.Details[k])
		}
	}
	if !e.At.IsZero() {
		fmt.Fprintf(&b, "\n%s", e.At.Format(time.RFC3339))
	}
	return b.String()
}
