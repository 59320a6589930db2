package notify

import (
	"context"
	"fmt"

	"github.com/icewatch/ice-monitor/config"
	"gopkg.in/gomail.v2"
)

// Mailer delivers alerts over SMTP
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer creates a mailer from the mail configuration
func NewMailer(cfg config.MailConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail host cannot be empty")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail sender address cannot be empty")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}, nil
}

// Send delivers one HTML message. The context bounds the whole dial,
// auth and send exchange; a timed-out send reports an error so the
// caller never records it as delivered.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("recipient address cannot be empty")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail to %s: %v", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail send to %s aborted: %v", to, ctx.Err())
	}
}
