package notify

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// MailerConfig configures the optional SMTP outcome mailer.
type MailerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// Mailer sends provisioning outcome emails to requesters. It is optional:
// a nil *Mailer is safe to call and does nothing.
type Mailer struct {
	cfg MailerConfig
	log *slog.Logger
}

// NewMailer creates a mailer, or nil when no SMTP host is configured.
func NewMailer(cfg MailerConfig, log *slog.Logger) *Mailer {
	if cfg.Host == "" {
		return nil
	}
	return &Mailer{cfg: cfg, log: log}
}

// Send delivers a plain-text email. Failures are logged and returned but
// never carry secret material; callers treat mail delivery as
// best-effort.
func (m *Mailer) Send(to, subject, body string) error {
	if m == nil {
		return nil
	}

	e := &email.Email{
		To:      []string{to},
		From:    fmt.Sprintf("%s <%s>", m.cfg.Sender, m.cfg.Username),
		Subject: subject,
		Text:    []byte(body),
	}

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := e.SendWithTLS(addr, auth, &tls.Config{ServerName: m.cfg.Host}); err != nil {
		m.log.Warn("Outcome mail delivery failed", "err", err, slog.String("to", to))
		return err
	}
	return nil
}
