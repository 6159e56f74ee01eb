package mailer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	logx "mailsched/pkg/logx"
)

const (
	DefaultHost        = "smtp.gmail.com"
	DefaultPort        = 587
	defaultDialTimeout = 15 * time.Second
)

// SMTPConfig holds the transport settings. Username and Password are usually
// SENDER_EMAIL and SENDER_PASSWORD from the environment.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	DialTimeout time.Duration
}

// SMTPSender is the production Sender. Each send is its own session:
// STARTTLS when the server offers it, then PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
	log logx.Logger
	now func() time.Time
}

func NewSMTPSender(cfg SMTPConfig, log logx.Logger) *SMTPSender {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if strings.TrimSpace(cfg.From) == "" {
		cfg.From = cfg.Username
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SMTPSender{cfg: cfg, log: log.With(logx.String("comp", "smtp")), now: time.Now}
}

func (s *SMTPSender) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return ErrMissingCredentials
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	m, err := Build(s.cfg.From, msg, s.now(), s.log)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	c, err := gomail.NewClient(s.cfg.Host,
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.DialTimeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s: %w", s.Addr(), err)
	}
	return nil
}
