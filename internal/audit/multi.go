package audit

import (
	"context"
	"errors"

	logx "mailsched/pkg/logx"
)

// Multi fans entries out to every sink. A failing sink is logged and does not
// stop the others; the joined error is returned.
type Multi struct {
	sinks []Sink
	log   logx.Logger
}

func NewMulti(log logx.Logger, sinks ...Sink) *Multi {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Multi{log: log}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Record(ctx context.Context, e Entry) error {
	stamp(&e)
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, e); err != nil {
			m.log.Warn("audit record failed", logx.String("task", e.TaskName), logx.String("status", e.Status), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
