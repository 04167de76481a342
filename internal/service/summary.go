package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/cache"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
	"github.com/geniesugar/glucose-monitor/internal/summary"
)

const MaxSummaryDays = 90

// SummaryOptions configures the clinician dashboard.
type SummaryOptions struct {
	Window      time.Duration // default window when the caller passes 0
	CacheTTL    time.Duration
	Concurrency int
}

// SummaryService builds the per-patient rows of the clinician dashboard.
type SummaryService struct {
	users    repository.UserRepository
	timeline repository.TimelineRepository
	cache    cache.Cache
	opts     SummaryOptions
	logger   *slog.Logger
	now      func() time.Time
}

func NewSummaryService(
	users repository.UserRepository,
	timeline repository.TimelineRepository,
	c cache.Cache,
	opts SummaryOptions,
	logger *slog.Logger,
) *SummaryService {
	if opts.Window <= 0 {
		opts.Window = DefaultReadingDays * 24 * time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &SummaryService{
		users:    users,
		timeline: timeline,
		cache:    c,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// WindowForDays converts a ?days= value to a window. 0 selects the default.
func (s *SummaryService) WindowForDays(days int) (time.Duration, error) {
	if days == 0 {
		return s.opts.Window, nil
	}
	if days < 0 || days > MaxSummaryDays {
		return 0, apperror.ValidationFailed("days",
			fmt.Sprintf("days must be between 1 and %d", MaxSummaryDays))
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// PatientSummaries summarizes every patient over [now-window, now].
//
// Patients are processed concurrently, bounded by Concurrency. A failure for
// one patient is reported in that row's Error field; it never cancels the
// others, so the group's error is always nil.
func (s *SummaryService) PatientSummaries(ctx context.Context, window time.Duration) ([]model.PatientSummary, error) {
	if window <= 0 {
		window = s.opts.Window
	}

	patients, err := s.users.ListByRole(ctx, model.RolePatient)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}

	since := s.now().UTC().Add(-window)
	rows := make([]model.PatientSummary, len(patients))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i := range patients {
		p := &patients[i]
		g.Go(func() error {
			rows[i] = s.summarize(ctx, p, since, window)
			return nil
		})
	}
	_ = g.Wait()

	return rows, nil
}

func (s *SummaryService) summarize(ctx context.Context, p *model.User, since time.Time, window time.Duration) model.PatientSummary {
	row := model.PatientSummary{
		ID:    p.ID,
		Name:  p.FullName,
		Email: p.Email,
		Phone: p.Phone,
	}

	key := summaryKey(p.ID, window)
	var cached model.PatientSummary
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("summary cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if hit {
		return cached
	}

	readings, err := s.timeline.Query(ctx, p.ID, since)
	if err != nil {
		s.logger.Error("patient summary failed",
			slog.String("patient_id", p.ID),
			slog.String("error", err.Error()),
		)
		row.Error = "summary unavailable"
		return row
	}

	stats := summary.Compute(readings)
	row.ReadingsCount = stats.Count
	row.AvgGlucose = stats.Avg
	row.LastReading = stats.Last

	if err := s.cache.Set(ctx, key, row, s.opts.CacheTTL); err != nil {
		s.logger.Warn("summary cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return row
}

// Invalidate drops the cached default-window row for a patient. Rows for
// other windows expire on their TTL.
func (s *SummaryService) Invalidate(ctx context.Context, patientID string) {
	key := summaryKey(patientID, s.opts.Window)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("summary cache invalidation failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func summaryKey(patientID string, window time.Duration) string {
	return "summary:" + patientID + ":" + strconv.FormatInt(int64(window/time.Second), 10)
}
