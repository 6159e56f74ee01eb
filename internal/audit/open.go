package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "mailsched/pkg/logx"
)

// Open initializes the configured sink. An empty driver or "none" yields a
// no-op sink.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Sink, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "audit"), logx.String("driver", driver))

	switch driver {
	case "", "none":
		return Nop(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "mongo", "mongodb":
		return openMongo(ctx, cfg, log)
	default:
		return nil, errors.New("unknown audit driver: " + driver)
	}
}

func stamp(e *Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
}
