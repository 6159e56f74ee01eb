// Package mailer delivers one message per recipient over SMTP.
package mailer

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredentials is returned for every send while SENDER_EMAIL or
	// SENDER_PASSWORD is unset.
	ErrMissingCredentials = errors.New("smtp credentials missing (SENDER_EMAIL, SENDER_PASSWORD)")
	ErrNoRecipient        = errors.New("message has no recipient")
)

// Message is a single outgoing email.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []string
}

// Sender abstracts delivery for DI and testing.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
