package email

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/deadline-tracker/internal/config"
)

// Sender delivers a rendered plain-text message to an address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates a gomail-backed sender.
func NewSMTPSender(cfg config.SMTPConfig) Sender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpSender) Send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// gomail has no context support; run the dial in a goroutine so the
	// caller's deadline still applies.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
