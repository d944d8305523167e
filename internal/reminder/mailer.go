package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/JarvisScienz/progress-tracker/internal/config"
)

// Email is a rendered HTML message for one recipient.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Mailer delivers emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPMailer sends mail through an SMTP relay. With TLS set it dials an
// implicit TLS connection, otherwise it upgrades with STARTTLS when the server
// offers it.
type SMTPMailer struct {
	cfg config.SMTPConfig
	now func() time.Time
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, now: time.Now}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	msg, err := m.buildMessage(email)
	if err != nil {
		return err
	}
	client, err := m.client()
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send to %s: %w", email.To, err)
	}
	return nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.TLS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return mail.NewClient(m.cfg.Host, opts...)
}

func (m *SMTPMailer) buildMessage(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.AddToFormat(email.ToName, email.To); err != nil {
		return nil, fmt.Errorf("add recipient %s: %w", email.To, err)
	}
	msg.Subject(email.Subject)
	msg.SetDateWithValue(m.now())
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)
	return msg, nil
}
