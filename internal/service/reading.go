package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/alert"
	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/metrics"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

const (
	DefaultReadingDays = 7
	MaxReadingDays     = 365
	MaxNotesLength     = 1000
	MaxContextLength   = 50

	// maxClockSkew bounds how far in the future a client timestamp may be.
	maxClockSkew = 5 * time.Minute
)

// Alerter evaluates a committed reading. *alert.Engine satisfies it.
type Alerter interface {
	Evaluate(ctx context.Context, user *model.User, reading *model.GlucoseReading) alert.Level
}

// SummaryInvalidator drops cached dashboard rows for a patient after a write.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, patientID string)
}

// ReadingService records manual readings and lists a user's timeline.
type ReadingService struct {
	users    repository.UserRepository
	timeline repository.TimelineRepository
	alerts   Alerter
	locks    *TimelineLocks
	cache    SummaryInvalidator
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewReadingService(
	users repository.UserRepository,
	timeline repository.TimelineRepository,
	alerts Alerter,
	locks *TimelineLocks,
	cache SummaryInvalidator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ReadingService {
	return &ReadingService{
		users:    users,
		timeline: timeline,
		alerts:   alerts,
		locks:    locks,
		cache:    cache,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordInput is a manual reading. A zero Timestamp means "now".
type RecordInput struct {
	Value     float64
	Timestamp time.Time
	Context   string
	Notes     string
}

// RecordResult is the stored reading plus the alert level it produced.
type RecordResult struct {
	Reading model.GlucoseReading
	Alert   alert.Level
}

// Record appends a manual reading and then evaluates it for alerts. The
// reading is committed before evaluation, and evaluation only queues
// notifications, so a slow or failing notifier cannot fail the write.
func (s *ReadingService) Record(ctx context.Context, userID string, in RecordInput) (*RecordResult, error) {
	now := s.now().UTC()
	if err := validateRecord(in, now); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recording reading: %w", err)
	}

	reading := &model.GlucoseReading{
		UserID:    userID,
		Value:     in.Value,
		Timestamp: in.Timestamp,
		Context:   strings.TrimSpace(in.Context),
		Notes:     strings.TrimSpace(in.Notes),
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}

	unlock := s.locks.Lock(userID)
	_, err = s.timeline.Append(ctx, reading)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("recording reading: %w", err)
	}

	s.metrics.ReadingRecorded(string(model.SourceManual))
	s.logger.Debug("reading recorded",
		slog.String("user_id", userID),
		slog.String("reading_id", reading.ID),
	)
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}

	level := s.alerts.Evaluate(ctx, user, reading)
	return &RecordResult{Reading: *reading, Alert: level}, nil
}

func validateRecord(in RecordInput, now time.Time) error {
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) {
		return apperror.ValidationFailed("value", "value must be a finite number")
	}
	if in.Value < 0 {
		return apperror.ValidationFailed("value", "value must not be negative")
	}
	if !in.Timestamp.IsZero() && in.Timestamp.After(now.Add(maxClockSkew)) {
		return apperror.ValidationFailed("timestamp", "timestamp is in the future")
	}
	if len(in.Context) > MaxContextLength {
		return apperror.ValidationFailed("context",
			fmt.Sprintf("context must be %d characters or fewer", MaxContextLength))
	}
	if len(in.Notes) > MaxNotesLength {
		return apperror.ValidationFailed("notes",
			fmt.Sprintf("notes must be %d characters or fewer", MaxNotesLength))
	}
	return nil
}

// ListQuery selects a window of readings. Since wins over Days when both
// are set; with neither, the last DefaultReadingDays days are returned.
type ListQuery struct {
	Since *time.Time
	Days  int
}

// List returns the user's readings in the window, newest first.
func (s *ReadingService) List(ctx context.Context, userID string, q ListQuery) ([]model.GlucoseReading, error) {
	since, err := s.windowStart(q)
	if err != nil {
		return nil, err
	}
	readings, err := s.timeline.Query(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("listing readings: %w", err)
	}
	return readings, nil
}

func (s *ReadingService) windowStart(q ListQuery) (time.Time, error) {
	if q.Since != nil {
		return q.Since.UTC(), nil
	}
	days := q.Days
	if days == 0 {
		days = DefaultReadingDays
	}
	if days < 0 || days > MaxReadingDays {
		return time.Time{}, apperror.ValidationFailed("days",
			fmt.Sprintf("days must be between 1 and %d", MaxReadingDays))
	}
	return s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour), nil
}
