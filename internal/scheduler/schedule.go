package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	logx "mailsched/pkg/logx"
)

// intervalSchedule fires every d after the reference time, without the
// whole-second rounding cron.Every applies.
type intervalSchedule struct {
	every time.Duration
}

var _ cron.Schedule = intervalSchedule{}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.every)
}

// cronLogger routes robfig/cron's internal logging into logx.
// cron's Info calls are chatty (schedule/wake/run/skip), so they go to DEBUG.
type cronLogger struct {
	log logx.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, logx.Any("extra", kv[len(kv)-1]))
	}
	return out
}
