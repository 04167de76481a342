// Package assistant wraps the hosted LLM providers behind one interface.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no provider API key was supplied.
var ErrNotConfigured = errors.New("assistant: provider not configured")

// Context is the patient information sent alongside each question.
type Context struct {
	UserName      string
	RecentGlucose []float64 // newest first
}

// Assistant answers a single chat message.
type Assistant interface {
	Complete(ctx context.Context, message string, c Context) (string, error)
}

const systemPrompt = `You are GenieSugar's diabetes-care assistant. You help people living with diabetes understand their glucose readings, food choices and daily routines.
Be supportive, concise and practical. Never diagnose, and never change medication doses; tell the user to contact their care team for anything urgent or clinical.
If a reading is below 70 mg/dL or above 200 mg/dL, remind the user of their care plan for low or high glucose.`

// SystemPrompt returns the instructions plus the patient context block.
func SystemPrompt(c Context) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nPatient context:\n")
	name := c.UserName
	if name == "" {
		name = "unknown"
	}
	fmt.Fprintf(&b, "- Name: %s\n", name)
	if len(c.RecentGlucose) == 0 {
		b.WriteString("- Recent glucose readings: none recorded\n")
	} else {
		vals := make([]string, len(c.RecentGlucose))
		for i, v := range c.RecentGlucose {
			vals[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		fmt.Fprintf(&b, "- Recent glucose readings (mg/dL, newest first): %s\n", strings.Join(vals, ", "))
	}
	return b.String()
}

// Unconfigured is the Assistant used when no API key is present.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, string, Context) (string, error) {
	return "", ErrNotConfigured
}

// WithTimeout bounds every Complete call on a to d.
func WithTimeout(a Assistant, d time.Duration) Assistant {
	if d <= 0 {
		return a
	}
	return timeoutAssistant{next: a, timeout: d}
}

type timeoutAssistant struct {
	next    Assistant
	timeout time.Duration
}

func (t timeoutAssistant) Complete(ctx context.Context, message string, c Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, message, c)
}
