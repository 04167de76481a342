package notify

import (
	"context"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the Twilio call used by TwilioTexter; tests replace it.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioTexter sends SMS through the Twilio Messages API.
type TwilioTexter struct {
	api    messageCreator
	from   string
	logger *slog.Logger
}

var _ SMSSender = (*TwilioTexter)(nil)

// NewTwilioTexter returns a texter. Missing credentials or sender number make
// every send a no-op that returns false.
func NewTwilioTexter(accountSID, authToken, fromNumber string, logger *slog.Logger) *TwilioTexter {
	t := &TwilioTexter{
		from:   fromNumber,
		logger: logger.With(slog.String("provider", "twilio")),
	}
	if accountSID != "" && authToken != "" && fromNumber != "" {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
		t.api = client.Api
	}
	return t
}

func (t *TwilioTexter) Configured() bool {
	return t.api != nil
}

// SendSMS blocks until Twilio answers or ctx is done, whichever is first.
// The Twilio client has no context support, so a cancelled send keeps
// running in the background until its HTTP client gives up.
func (t *TwilioTexter) SendSMS(ctx context.Context, to, body string) bool {
	if t.api == nil {
		t.logger.Debug("sms skipped, twilio not configured")
		return false
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	done := make(chan error, 1)
	go func() {
		_, err := t.api.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.logger.Error("sending sms failed", slog.String("error", err.Error()))
			return false
		}
		return true
	case <-ctx.Done():
		t.logger.Error("sending sms timed out", slog.String("error", ctx.Err().Error()))
		return false
	}
}
