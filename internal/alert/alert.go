// Package alert classifies glucose values against critical thresholds and
// hands breaches to the notification queue.
package alert

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"

	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/notify"
)

// Level is the outcome of classifying one reading.
type Level string

const (
	NoAlert   Level = "none"
	LowAlert  Level = "low"
	HighAlert Level = "high"
)

// Default thresholds in mg/dL.
const (
	DefaultLow  = 70.0
	DefaultHigh = 200.0
)

// Thresholds are inclusive-safe bounds: values equal to Low or High are NoAlert.
type Thresholds struct {
	Low  float64
	High float64
}

// DefaultThresholds returns the 70/200 mg/dL bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLow, High: DefaultHigh}
}

// Classify is a pure function of the value.
func (t Thresholds) Classify(value float64) Level {
	switch {
	case value < t.Low:
		return LowAlert
	case value > t.High:
		return HighAlert
	default:
		return NoAlert
	}
}

// Classify uses the default thresholds.
func Classify(value float64) Level {
	return DefaultThresholds().Classify(value)
}

// Policy decides which readings are evaluated at all.
type Policy struct {
	// AlertOnSynced extends alerting to device-sourced readings. Manual
	// readings are always evaluated.
	AlertOnSynced bool
}

func (p Policy) applies(r *model.GlucoseReading) bool {
	return !r.Synced || p.AlertOnSynced
}

// Enqueuer is the slice of notify.Queue the engine needs.
type Enqueuer interface {
	Enqueue(msg notify.Message) bool
}

// Recorder receives alert counts; metrics.Metrics satisfies it.
type Recorder interface {
	AlertRaised(level string)
}

// Engine evaluates freshly committed readings. It never returns an error:
// delivery problems are the queue's concern and are logged there.
type Engine struct {
	thresholds Thresholds
	policy     Policy
	queue      Enqueuer
	metrics    Recorder
	logger     *slog.Logger
}

func NewEngine(thresholds Thresholds, policy Policy, queue Enqueuer, metrics Recorder, logger *slog.Logger) *Engine {
	return &Engine{
		thresholds: thresholds,
		policy:     policy,
		queue:      queue,
		metrics:    metrics,
		logger:     logger,
	}
}

// Thresholds returns the bounds this engine classifies against.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate classifies reading and, on a breach, queues an email to the user
// and an SMS when a phone number is on file. It must only be called after
// the reading has been committed.
func (e *Engine) Evaluate(ctx context.Context, user *model.User, reading *model.GlucoseReading) Level {
	if !e.policy.applies(reading) {
		return NoAlert
	}

	level := e.thresholds.Classify(reading.Value)
	if level == NoAlert {
		return level
	}

	if e.metrics != nil {
		e.metrics.AlertRaised(string(level))
	}

	subject, text := Message(level, reading.Value)
	log := e.logger.With(
		slog.String("user_id", user.ID),
		slog.String("reading_id", reading.ID),
		slog.String("level", string(level)),
	)
	log.WarnContext(ctx, "critical glucose reading", slog.Float64("value", reading.Value))

	if user.Email != "" {
		ok := e.queue.Enqueue(notify.Message{
			Channel: notify.ChannelEmail,
			To:      user.Email,
			Subject: subject,
			Body:    "<h2>" + html.EscapeString(text) + "</h2>",
		})
		if !ok {
			log.Warn("alert email not queued")
		}
	}

	if user.Phone != "" {
		ok := e.queue.Enqueue(notify.Message{
			Channel: notify.ChannelSMS,
			To:      user.Phone,
			Body:    text,
		})
		if !ok {
			log.Warn("alert sms not queued")
		}
	}

	return level
}

// Message builds the subject line and severity-tagged text for a breach.
func Message(level Level, value float64) (subject, text string) {
	v := strconv.FormatFloat(value, 'f', -1, 64)
	switch level {
	case LowAlert:
		return "Critical Low Glucose Alert",
			fmt.Sprintf("LOW GLUCOSE ALERT: %s mg/dL - Take fast-acting carbs and recheck soon.", v)
	case HighAlert:
		return "Critical High Glucose Alert",
			fmt.Sprintf("HIGH GLUCOSE ALERT: %s mg/dL - Monitor closely and contact your doctor if persistent.", v)
	default:
		return "", ""
	}
}
