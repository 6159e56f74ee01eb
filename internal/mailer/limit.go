package mailer

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limited throttles an inner Sender. A rate of zero or less disables the
// limit. SetRate may be called while sends are in flight.
type Limited struct {
	next Sender
	lim  atomic.Pointer[rate.Limiter]
}

func NewLimited(next Sender, perSec float64) *Limited {
	l := &Limited{next: next}
	l.SetRate(perSec)
	return l
}

func (l *Limited) SetRate(perSec float64) {
	if perSec <= 0 {
		l.lim.Store(nil)
		return
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	l.lim.Store(rate.NewLimiter(rate.Limit(perSec), burst))
}

func (l *Limited) Send(ctx context.Context, msg Message) error {
	if lim := l.lim.Load(); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	return l.next.Send(ctx, msg)
}
