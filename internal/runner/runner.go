// Package runner executes one firing of a scheduled email task.
package runner

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailsched/internal/audit"
	"mailsched/internal/mailer"
	"mailsched/internal/recipients"
	"mailsched/internal/task"
	logx "mailsched/pkg/logx"
)

// Result summarizes one firing.
type Result struct {
	RunID   string
	Sent    int
	Failed  int
	Invalid []string
	Err     error
}

type Runner struct {
	sender  mailer.Sender
	sink    audit.Sink
	invalid *InvalidLog
	open    recipients.Opener
	log     logx.Logger
	now     func() time.Time
}

type Option func(*Runner)

// WithOpener overrides how recipient lists are resolved.
func WithOpener(open recipients.Opener) Option {
	return func(r *Runner) {
		if open != nil {
			r.open = open
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func New(sender mailer.Sender, sink audit.Sink, invalid *InvalidLog, log logx.Logger, opts ...Option) *Runner {
	if sink == nil {
		sink = audit.Nop()
	}
	if invalid == nil {
		invalid = NewInvalidLog("")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Runner{
		sender:  sender,
		sink:    sink,
		invalid: invalid,
		open:    recipients.Open,
		log:     log.With(logx.String("comp", "runner")),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Job returns a closure bound to a copy of def, suitable for the scheduler.
func (r *Runner) Job(name string, def task.Definition) func(ctx context.Context) {
	def = def.Normalized()
	return func(ctx context.Context) {
		_ = r.Fire(ctx, name, def)
	}
}

// Fire runs one firing. Failures are logged and audited; Result.Err carries
// a firing-level failure for callers that want it.
func (r *Runner) Fire(ctx context.Context, name string, def task.Definition) Result {
	res := Result{RunID: uuid.NewString()}
	log := r.log.With(logx.String("task", name), logx.String("run", res.RunID))
	start := r.now()
	log.Debug("firing started", logx.String("email_list", def.EmailList))

	if err := r.fire(ctx, log, name, def, &res); err != nil {
		res.Err = err
		log.Error("task failed", logx.Err(err))
		r.record(ctx, log, audit.Entry{
			TaskName: name,
			Details: map[string]any{
				"email_list":   def.EmailList,
				"message_file": def.MessageFile,
				"subject":      def.Subject,
				"attachments":  attachmentsOf(def),
			},
			Status: audit.StatusErrorPrefix + err.Error(),
			Level:  audit.LevelError,
		})
		return res
	}

	log.Info("firing finished",
		logx.Int("sent", res.Sent),
		logx.Int("failed", res.Failed),
		logx.Int("invalid", len(res.Invalid)),
		logx.Duration("dur", r.now().Sub(start)),
	)
	return res
}

func (r *Runner) fire(ctx context.Context, log logx.Logger, name string, def task.Definition, res *Result) error {
	src, err := r.open(def.EmailList)
	if err != nil {
		return err
	}
	rows, err := src.Rows(ctx)
	if err != nil {
		return err
	}
	tmpl, err := os.ReadFile(def.MessageFile)
	if err != nil {
		return err
	}
	if r.sender == nil {
		return errors.New("no mail sender configured")
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !IsValidEmail(row.Email) {
			res.Invalid = append(res.Invalid, row.Email)
			continue
		}

		msg := mailer.Message{
			To:          row.Email,
			Subject:     def.Subject,
			Body:        strings.ReplaceAll(string(tmpl), "{name}", row.Name),
			Attachments: def.Attachments,
		}
		details := map[string]any{"recipient": row.Email, "subject": def.Subject}
		if err := r.sender.Send(ctx, msg); err != nil {
			res.Failed++
			log.Error("failed to send email", logx.String("recipient", row.Email), logx.Err(err))
			details["error"] = err.Error()
			r.record(ctx, log, audit.Entry{TaskName: name, Details: details, Status: audit.StatusFailed, Level: audit.LevelError})
			continue
		}
		res.Sent++
		log.Info("email sent", logx.String("recipient", row.Email))
		r.record(ctx, log, audit.Entry{TaskName: name, Details: details, Status: audit.StatusSent, Level: audit.LevelInfo})
	}

	if len(res.Invalid) > 0 {
		if err := r.invalid.Append(res.Invalid); err != nil {
			log.Error("invalid address log write failed", logx.String("path", r.invalid.Path()), logx.Err(err))
		}
		log.Warn("invalid emails found", logx.String("emails", strings.Join(res.Invalid, ", ")))
		r.record(ctx, log, audit.Entry{
			TaskName: name,
			Details:  map[string]any{"invalid_emails": res.Invalid},
			Status:   audit.StatusInvalidEmails,
			Level:    audit.LevelWarning,
		})
	}
	return nil
}

// record stamps and writes an audit entry; failures never fail the firing.
func (r *Runner) record(ctx context.Context, log logx.Logger, e audit.Entry) {
	if e.At.IsZero() {
		e.At = r.now()
	}
	// Audit after cancellation still lands.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := r.sink.Record(ctx, e); err != nil {
		log.Warn("audit write failed", logx.String("status", e.Status), logx.Err(err))
	}
}

func attachmentsOf(def task.Definition) []string {
	if def.Attachments == nil {
		return []string{}
	}
	return def.Attachments
}
