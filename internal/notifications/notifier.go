// Package notifications delivers best-effort email to license owners.
// Callers treat send failures as logged-and-ignored; nothing in the license
// lifecycle depends on delivery.
package notifications

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/vantage-app/licensing-backend/pkg/config"
)

// Notifier sends owner-facing notices.
type Notifier interface {
	SendUnbindNotice(ctx context.Context, recipient, licenseCode string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers notices over plain SMTP.
type SMTPNotifier struct {
	cfg      config.SMTPConfig
	sendMail sendMailFunc
}

// NewSMTPNotifier builds an SMTP-backed notifier.
func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp configuration incomplete")
	}
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// SendUnbindNotice tells the license owner their device binding was released.
func (n *SMTPNotifier) SendUnbindNotice(ctx context.Context, recipient, licenseCode string) error {
	if recipient == "" {
		return fmt.Errorf("recipient required")
	}

	from := n.cfg.From
	if from == "" {
		from = n.cfg.Username
	}
	subject := "Your license was released from its device"
	body := fmt.Sprintf(
		"The device binding for license %s was removed.\r\n"+
			"The license is available again and can be activated on a new device.\r\n"+
			"If you did not request this, contact support.\r\n",
		licenseCode,
	)
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, recipient, subject, body,
	))

	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	addr := fmt.Sprintf("%s:%s", n.cfg.Host, n.cfg.Port)
	return n.sendMail(addr, auth, from, []string{recipient}, msg)
}

// NoopNotifier drops every notice. Used when SMTP is not configured.
type NoopNotifier struct{}

// NewNoopNotifier builds a notifier that silently discards notices.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

// SendUnbindNotice implements Notifier.
func (n *NoopNotifier) SendUnbindNotice(ctx context.Context, recipient, licenseCode string) error {
	return nil
}
