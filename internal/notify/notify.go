// Package notify delivers email and SMS through third-party providers.
//
// Every send returns a bool instead of an error: callers treat delivery
// failure as data, and an unconfigured provider is a silent false.
package notify

import "context"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one queued notification. Subject is ignored for SMS.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) bool
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) bool
}

// Dispatcher sends on both channels.
type Dispatcher interface {
	EmailSender
	SMSSender
}

// Channels combines independent email and SMS senders into a Dispatcher.
// A nil sender makes that channel a no-op that reports false.
type Channels struct {
	Email EmailSender
	SMS   SMSSender
}

var _ Dispatcher = Channels{}

func (c Channels) SendEmail(ctx context.Context, to, subject, body string) bool {
	if c.Email == nil {
		return false
	}
	return c.Email.SendEmail(ctx, to, subject, body)
}

func (c Channels) SendSMS(ctx context.Context, to, body string) bool {
	if c.SMS == nil {
		return false
	}
	return c.SMS.SendSMS(ctx, to, body)
}

// Send routes msg to the matching channel.
func Send(ctx context.Context, d Dispatcher, msg Message) bool {
	switch msg.Channel {
	case ChannelEmail:
		return d.SendEmail(ctx, msg.To, msg.Subject, msg.Body)
	case ChannelSMS:
		return d.SendSMS(ctx, msg.To, msg.Body)
	default:
		return false
	}
}
