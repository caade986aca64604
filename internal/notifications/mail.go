package notifications

import (
	"context"
	"fmt"

	"github.com/0xPuncker/andon-notifier/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

type SMTPMailer struct {
	logger *logrus.Logger
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *logrus.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is not configured")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is not configured")
	}

	return &SMTPMailer{
		logger: logger,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("message %q has no recipients", msg.Subject)
	}

	email := gomail.NewMessage()
	email.SetHeader("From", m.from)
	email.SetHeader("To", msg.To...)
	email.SetHeader("Subject", msg.Subject)
	email.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		email.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := m.dialAndSend(ctx, email); err != nil {
		return fmt.Errorf("error sending email %q: %w", msg.Subject, err)
	}

	m.logger.WithFields(logrus.Fields{
		"subject":    msg.Subject,
		"recipients": len(msg.To),
	}).Debug("Email handed to SMTP relay")
	return nil
}

// dialAndSend returns as soon as ctx is done. gomail has no deadline of its own, so
// a relay that stops answering leaves the delivery goroutine blocked until the
// connection drops.
func (m *SMTPMailer) dialAndSend(ctx context.Context, email *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(email)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
