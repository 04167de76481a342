package service

import (
	"bytes"
	"fmt"
	"html"
	"html/template"

	"github.com/geniesugar/glucose-monitor/internal/notify"
)

// Outbox accepts notifications for background delivery. notify.Queue
// satisfies it. Enqueue never blocks; false means the message was dropped.
type Outbox interface {
	Enqueue(msg notify.Message) bool
}

const productName = "GenieSugar"

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 10px;">
    <div style="background: #1e40af; padding: 32px; text-align: center;">
      <h1 style="color: #ffffff; margin: 0;">Welcome to {{.Product}}!</h1>
    </div>
    <div style="padding: 32px;">
      <h2 style="color: #1e3a8a;">Hi {{.Name}}!</h2>
      <p>Thank you for joining {{.Product}}! Your account has been successfully created.</p>
      <ul>
        <li>Track your glucose levels</li>
        <li>Log meals and track nutrition</li>
        <li>Get AI-powered health insights</li>
        <li>Connect with your healthcare team</li>
      </ul>
      <p>Log in to your account and start managing your diabetes today.</p>
    </div>
  </div>
</body>
</html>
`))

func welcomeEmail(to, name string) (notify.Message, error) {
	var buf bytes.Buffer
	err := welcomeTmpl.Execute(&buf, struct{ Product, Name string }{productName, name})
	if err != nil {
		return notify.Message{}, fmt.Errorf("rendering welcome email: %w", err)
	}
	return notify.Message{
		Channel: notify.ChannelEmail,
		To:      to,
		Subject: "Welcome to " + productName + "!",
		Body:    buf.String(),
	}, nil
}

func welcomeSMS(to, name string) notify.Message {
	return notify.Message{
		Channel: notify.ChannelSMS,
		To:      to,
		Body:    fmt.Sprintf("Welcome to %s, %s! Your account is ready.", productName, name),
	}
}

func loginEmail(to, name string) notify.Message {
	return notify.Message{
		Channel: notify.ChannelEmail,
		To:      to,
		Subject: "New Login to Your " + productName + " Account",
		Body: fmt.Sprintf("Hi %s, you just logged in to %s. If this wasn't you, secure your account.",
			html.EscapeString(name), productName),
	}
}

// commentEmail tells a patient a clinician left a note. Both the author's
// name and the comment body are escaped.
func commentEmail(to, authorName, body string) notify.Message {
	return notify.Message{
		Channel: notify.ChannelEmail,
		To:      to,
		Subject: "New Message from Your Care Team",
		Body: fmt.Sprintf(`<h2>New Medical Update</h2>
<p>%s added a comment:</p>
<div style="background:#E3F2FD;padding:20px;border-left:4px solid #1565A6;">
  <p>%s</p>
</div>`, html.EscapeString(authorName), html.EscapeString(body)),
	}
}
