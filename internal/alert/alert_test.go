package alert

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/notify"
)

type fakeQueue struct {
	msgs   []notify.Message
	reject bool
}

func (f *fakeQueue) Enqueue(msg notify.Message) bool {
	if f.reject {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

type fakeRecorder struct{ levels []string }

func (f *fakeRecorder) AlertRaised(level string) { f.levels = append(f.levels, level) }

func newTestEngine(policy Policy) (*Engine, *fakeQueue, *fakeRecorder) {
	q := &fakeQueue{}
	rec := &fakeRecorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(DefaultThresholds(), policy, q, rec, logger), q, rec
}

// =========================================================================
// CLASSIFY
// =========================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		value float64
		want  Level
	}{
		{0, LowAlert},
		{39, LowAlert},
		{69.9, LowAlert},
		{70, NoAlert},
		{70.1, NoAlert},
		{120, NoAlert},
		{199.9, NoAlert},
		{200, NoAlert},
		{200.1, HighAlert},
		{450, HighAlert},
	}

	for _, tt := range tests {
		if got := Classify(tt.value); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestThresholds_Custom(t *testing.T) {
	th := Thresholds{Low: 80, High: 180}

	if th.Classify(75) != LowAlert {
		t.Error("75 should be low with Low=80")
	}
	if th.Classify(180) != NoAlert {
		t.Error("180 should be NoAlert at the High boundary")
	}
	if th.Classify(181) != HighAlert {
		t.Error("181 should be high with High=180")
	}
}

func TestMessage_EmbedsValue(t *testing.T) {
	subject, text := Message(LowAlert, 65)
	if subject != "Critical Low Glucose Alert" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.HasPrefix(text, "LOW GLUCOSE ALERT: 65 mg/dL") {
		t.Errorf("text = %q", text)
	}

	_, text = Message(HighAlert, 250.5)
	if !strings.HasPrefix(text, "HIGH GLUCOSE ALERT: 250.5 mg/dL") {
		t.Errorf("text = %q", text)
	}
}

// =========================================================================
// ENGINE
// =========================================================================

func TestEvaluate_LowWithPhoneQueuesEmailAndSMS(t *testing.T) {
	e, q, rec := newTestEngine(Policy{})
	user := &model.User{ID: "u1", Email: "p@example.com", Phone: "+15551234567"}

	level := e.Evaluate(context.Background(), user, &model.GlucoseReading{ID: "r1", Value: 55})

	if level != LowAlert {
		t.Fatalf("level = %q, want low", level)
	}
	if len(q.msgs) != 2 {
		t.Fatalf("queued %d messages, want 2", len(q.msgs))
	}
	if q.msgs[0].Channel != notify.ChannelEmail || q.msgs[0].To != "p@example.com" {
		t.Errorf("first message = %+v, want email", q.msgs[0])
	}
	if !strings.Contains(q.msgs[0].Body, "55 mg/dL") {
		t.Errorf("email body missing value: %q", q.msgs[0].Body)
	}
	if q.msgs[1].Channel != notify.ChannelSMS || q.msgs[1].To != "+15551234567" {
		t.Errorf("second message = %+v, want sms", q.msgs[1])
	}
	if len(rec.levels) != 1 || rec.levels[0] != "low" {
		t.Errorf("recorded = %v", rec.levels)
	}
}

func TestEvaluate_HighWithoutPhoneEmailOnly(t *testing.T) {
	e, q, _ := newTestEngine(Policy{})
	user := &model.User{ID: "u1", Email: "p@example.com"}

	level := e.Evaluate(context.Background(), user, &model.GlucoseReading{Value: 320})

	if level != HighAlert {
		t.Fatalf("level = %q, want high", level)
	}
	if len(q.msgs) != 1 || q.msgs[0].Channel != notify.ChannelEmail {
		t.Errorf("messages = %+v, want one email", q.msgs)
	}
}

func TestEvaluate_InRangeQueuesNothing(t *testing.T) {
	e, q, rec := newTestEngine(Policy{})

	level := e.Evaluate(context.Background(), &model.User{Email: "p@example.com"}, &model.GlucoseReading{Value: 200})

	if level != NoAlert || len(q.msgs) != 0 || len(rec.levels) != 0 {
		t.Errorf("level=%q msgs=%d rec=%v, want nothing", level, len(q.msgs), rec.levels)
	}
}

func TestEvaluate_SyncedPolicy(t *testing.T) {
	user := &model.User{ID: "u1", Email: "p@example.com"}
	synced := &model.GlucoseReading{Value: 40, Synced: true}

	t.Run("default skips device readings", func(t *testing.T) {
		e, q, _ := newTestEngine(Policy{})
		if got := e.Evaluate(context.Background(), user, synced); got != NoAlert {
			t.Errorf("level = %q, want none", got)
		}
		if len(q.msgs) != 0 {
			t.Errorf("queued %d messages for a synced reading", len(q.msgs))
		}
	})

	t.Run("AlertOnSynced evaluates device readings", func(t *testing.T) {
		e, q, _ := newTestEngine(Policy{AlertOnSynced: true})
		if got := e.Evaluate(context.Background(), user, synced); got != LowAlert {
			t.Errorf("level = %q, want low", got)
		}
		if len(q.msgs) != 1 {
			t.Errorf("queued %d messages, want 1", len(q.msgs))
		}
	})
}

func TestEvaluate_FullQueueStillReturnsLevel(t *testing.T) {
	e, q, _ := newTestEngine(Policy{})
	q.reject = true

	level := e.Evaluate(context.Background(), &model.User{Email: "p@example.com", Phone: "+1"}, &model.GlucoseReading{Value: 30})

	if level != LowAlert {
		t.Errorf("level = %q, want low even when delivery is refused", level)
	}
}
