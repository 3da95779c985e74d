package services

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"veriboard/internal/config"
)

// MailTransport delivers one rendered message.
type MailTransport interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

type smtpTransport struct {
	name     string
	dialer   *gomail.Dialer
	from     string
	fromName string
}

func NewSMTPTransport(host string, port int, ssl bool, user, password, from, fromName string) MailTransport {
	d := gomail.NewDialer(host, port, user, password)
	d.SSL = ssl
	d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	return &smtpTransport{
		name:     fmt.Sprintf("smtp:%d", port),
		dialer:   d,
		from:     from,
		fromName: fromName,
	}
}

func (t *smtpTransport) Name() string { return t.name }

func (t *smtpTransport) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.from, t.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", t.name, ctx.Err())
	}
}

type sendGridTransport struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridTransport(apiKey, from, fromName string) MailTransport {
	return &sendGridTransport{client: sendgrid.NewSendClient(apiKey), from: from, fromName: fromName}
}

func (t *sendGridTransport) Name() string { return "sendgrid" }

func (t *sendGridTransport) Send(ctx context.Context, msg *Message) error {
	from := mail.NewEmail(t.fromName, t.from)
	to := mail.NewEmail("", msg.To)
	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := t.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// TransportsFromConfig builds the ordered chain: primary SMTP, alternate
// port/TLS candidates on the same host, then SendGrid.
func TransportsFromConfig(cfg config.EmailConfig) []MailTransport {
	var res []MailTransport
	if cfg.SMTPHost != "" {
		res = append(res, NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPSSL,
			cfg.SMTPUser, cfg.SMTPPassword, cfg.FromEmail, cfg.FromName))
		for _, alt := range cfg.Fallbacks {
			if alt.Port == cfg.SMTPPort && alt.SSL == cfg.SMTPSSL {
				continue
			}
			res = append(res, NewSMTPTransport(cfg.SMTPHost, alt.Port, alt.SSL,
				cfg.SMTPUser, cfg.SMTPPassword, cfg.FromEmail, cfg.FromName))
		}
	}
	if cfg.SendGridAPIKey != "" {
		res = append(res, NewSendGridTransport(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName))
	}
	return res
}
