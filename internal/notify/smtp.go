package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// Compile-time interface guard.
var _ Transport = (*SMTPTransport)(nil)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string //nolint:gosec // G101: config field name, not a credential
	Sender     string
	Recipients []string
	Timeout    time.Duration
}

// SMTPTransport sends each message over a fresh implicit-TLS connection,
// authenticating with SMTP AUTH PLAIN when a username is configured.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport validates cfg and creates a transport.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if len(cfg.Recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPTransport{cfg: cfg}, nil
}

// Send delivers msg to every configured recipient.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := t.buildMsg(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithSSL(),
		mail.WithTimeout(t.cfg.Timeout),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}

	client, err := mail.NewClient(t.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", t.cfg.Host, t.cfg.Port, err)
	}
	return nil
}

func (t *SMTPTransport) buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(t.cfg.Sender); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", t.cfg.Sender, err)
	}
	if err := m.To(t.cfg.Recipients...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(contentType(msg.Body), msg.Body)
	return m, nil
}

// contentType treats a body containing an <html> tag as HTML.
func contentType(body string) mail.ContentType {
	if strings.Contains(body, "<html>") {
		return mail.TypeTextHTML
	}
	return mail.TypeTextPlain
}
