package mailer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	gomail "github.com/wneessen/go-mail"

	logx "mailsched/pkg/logx"
)

// Build renders msg as a go-mail message: a UTF-8 plain-text body plus one
// part per attachment. Attachments that cannot be read are logged and left
// out; the rest of the message is still built.
func Build(from string, msg Message, now time.Time, log logx.Logger) (*gomail.Msg, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("from %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	for _, path := range msg.Attachments {
		st, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Error("attachment not found; skipped", logx.String("path", path), logx.String("recipient", msg.To))
			continue
		case err != nil:
			log.Error("attachment unreadable; skipped", logx.String("path", path), logx.String("recipient", msg.To), logx.Err(err))
			continue
		case st.IsDir():
			log.Error("attachment is a directory; skipped", logx.String("path", path), logx.String("recipient", msg.To))
			continue
		}
		m.AttachFile(path)
	}
	return m, nil
}
