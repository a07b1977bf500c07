// Package mailer dispatches the weekly digest email over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/juba-labs/hornwatch/internal/config"
	"github.com/juba-labs/hornwatch/internal/digest"
	"github.com/juba-labs/hornwatch/internal/models"
)

// Mailer sends one digest to each subscribed recipient. Every recipient gets
// their own message with a personal unsubscribe token; one bad address never
// blocks the rest of the list.
type Mailer struct {
	smtp    config.SMTPConfig
	baseURL string
	unsubs  *models.UnsubscribeStore
}

// New creates a Mailer. When SMTP is unconfigured the mailer stays inert and
// SendDigest becomes a no-op.
func New(smtp config.SMTPConfig, baseURL string, unsubs *models.UnsubscribeStore) *Mailer {
	return &Mailer{smtp: smtp, baseURL: baseURL, unsubs: unsubs}
}

// Enabled reports whether the mailer may dial out.
func (m *Mailer) Enabled() bool {
	return m.smtp.Enabled()
}

// SendDigest renders and dispatches the digest to every recipient that has
// not opted out. Per-recipient failures log and continue.
func (m *Mailer) SendDigest(ctx context.Context, d *digest.Digest, recipients []string) {
	if !m.Enabled() {
		slog.Info("mailer: smtp not configured, skipping dispatch")
		return
	}
	if len(recipients) == 0 {
		slog.Info("mailer: no recipients configured, skipping dispatch")
		return
	}

	client, err := mail.NewClient(m.smtp.Host,
		mail.WithPort(m.smtp.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.smtp.User),
		mail.WithPassword(m.smtp.Pass),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		slog.Error("mailer: build client", "err", err)
		return
	}

	subject := Subject(d)
	textBody := digest.RenderText(d)

	sent := 0
	for _, rcpt := range recipients {
		if ctx.Err() != nil {
			slog.Warn("mailer: dispatch cancelled", "sent", sent, "total", len(recipients))
			return
		}

		out, err := m.unsubs.Contains(ctx, rcpt)
		if err != nil {
			slog.Error("mailer: check opt-out", "recipient", rcpt, "err", err)
			continue
		}
		if out {
			slog.Info("mailer: recipient opted out, skipping", "recipient", rcpt)
			continue
		}

		token := uuid.NewString()
		if err := m.unsubs.RecordToken(ctx, token, rcpt); err != nil {
			slog.Error("mailer: record token", "recipient", rcpt, "err", err)
			continue
		}

		unsubURL := m.baseURL + "/api/unsubscribe?token=" + token
		htmlBody, err := digest.RenderHTML(d, unsubURL)
		if err != nil {
			slog.Error("mailer: render html", "err", err)
			return
		}

		msg := mail.NewMsg()
		if err := msg.From(m.smtp.From); err != nil {
			slog.Error("mailer: set from", "from", m.smtp.From, "err", err)
			return
		}
		if err := msg.To(rcpt); err != nil {
			slog.Error("mailer: set recipient", "recipient", rcpt, "err", err)
			continue
		}
		msg.Subject(subject)
		msg.SetBodyString(mail.TypeTextPlain, textBody)
		msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

		if err := client.DialAndSendWithContext(ctx, msg); err != nil {
			slog.Error("mailer: send", "recipient", rcpt, "err", err)
			continue
		}
		sent++
	}

	slog.Info("mailer: digest dispatched", "sent", sent, "recipients", len(recipients))
}

// Subject builds the digest subject line. High-severity weeks say so up
// front, so the count is visible before the message is opened.
func Subject(d *digest.Digest) string {
	s := fmt.Sprintf("Horn Risk Delta — Week %d | %d events",
		d.WeekNumber, d.Topline.TotalThisWeek)
	if d.HighSeverityCount > 0 {
		s += fmt.Sprintf(", %d high-severity", d.HighSeverityCount)
	}
	return s
}
