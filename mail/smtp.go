package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig configures [SMTPNotifier]. Username and Password are optional;
// when Username is empty no authentication is attempted.
type SMTPConfig struct {
	Host     string `env:"AUTH_SMTP_HOST"`
	Port     int    `env:"AUTH_SMTP_PORT" envDefault:"587"`
	Username string `env:"AUTH_SMTP_USERNAME"`
	Password string `env:"AUTH_SMTP_PASSWORD"`
	From     string `env:"AUTH_SMTP_FROM"`
}

// SMTPNotifier delivers plain-text email over SMTP.
type SMTPNotifier struct {
	config SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier validates the config and returns a notifier.
func NewSMTPNotifier(config SMTPConfig) (*SMTPNotifier, error) {
	if config.Host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	if config.From == "" {
		return nil, errors.New("mail: from address is required")
	}
	if config.Port <= 0 {
		config.Port = 587
	}
	return &SMTPNotifier{config: config, send: smtp.SendMail}, nil
}

// Send delivers one message. The context is honored only for early
// cancellation; net/smtp itself does not take a context.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	msg := buildMessage(n.config.From, to, subject, body)

	if err := n.send(addr, auth, n.config.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
