package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer sends HTML email through the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *slog.Logger
}

var _ EmailSender = (*SendGridMailer)(nil)

// NewSendGridMailer returns a mailer. With an empty apiKey every send is a
// no-op that returns false.
func NewSendGridMailer(apiKey, fromEmail, fromName string, logger *slog.Logger) *SendGridMailer {
	m := &SendGridMailer{
		from:   mail.NewEmail(fromName, fromEmail),
		logger: logger.With(slog.String("provider", "sendgrid")),
	}
	if apiKey != "" {
		m.client = sendgrid.NewSendClient(apiKey)
	}
	return m
}

// Configured reports whether an API key was supplied.
func (m *SendGridMailer) Configured() bool {
	return m.client != nil
}

func (m *SendGridMailer) SendEmail(ctx context.Context, to, subject, body string) bool {
	if m.client == nil {
		m.logger.Debug("email skipped, sendgrid not configured")
		return false
	}

	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), "", body)
	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		m.logger.Error("sending email failed", slog.String("error", err.Error()))
		return false
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		m.logger.Error("sendgrid rejected email", slog.Int("status", resp.StatusCode))
		return false
	}
	return true
}
