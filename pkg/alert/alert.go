// Package alert notifies operators when the engine cannot repair itself, for
// example when a refinement run exhausts its budget with critical violations
// remaining.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/soundprediction/strata/pkg/config"
)

// Alerter delivers an operator notification. Delivery is best-effort; callers
// log failures and move on.
type Alerter interface {
	Alert(subject, message string) error
}

// EmailAlerter sends notifications over SMTP.
type EmailAlerter struct {
	cfg config.AlertConfig
}

// NewEmailAlerter creates an alerter from the alert configuration. A disabled
// configuration yields an alerter whose Alert is a no-op.
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{cfg: cfg}
}

// Alert sends one plain-text email to every configured recipient.
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(a.cfg.To, ","))
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n", subject)
	fmt.Fprintf(&msg, "%s\r\n", message)

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	if err := smtp.SendMail(addr, auth, a.cfg.From, a.cfg.To, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// NoOpAlerter discards every alert. It stands in wherever an Alerter is
// required but notification is switched off.
type NoOpAlerter struct{}

// Alert implements Alerter.
func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}
