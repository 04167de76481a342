package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/dexcom"
	"github.com/geniesugar/glucose-monitor/internal/metrics"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

// SampleFetcher is the device-provider port. *dexcom.Provider satisfies it.
type SampleFetcher interface {
	FetchSamples(ctx context.Context, tok *oauth2.Token, start, end time.Time) ([]dexcom.Sample, error)
}

// SyncOptions configures the merge window and provider call.
type SyncOptions struct {
	Lookback time.Duration
	Timeout  time.Duration
	// StaticToken is used for users with no stored credential.
	StaticToken string
}

// SyncService merges device samples into the timeline without duplicates.
type SyncService struct {
	users    repository.UserRepository
	timeline repository.TimelineRepository
	creds    repository.CredentialRepository
	fetcher  SampleFetcher
	alerts   Alerter
	locks    *TimelineLocks
	cache    SummaryInvalidator
	opts     SyncOptions
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewSyncService(
	users repository.UserRepository,
	timeline repository.TimelineRepository,
	creds repository.CredentialRepository,
	fetcher SampleFetcher,
	alerts Alerter,
	locks *TimelineLocks,
	cache SummaryInvalidator,
	opts SyncOptions,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SyncService {
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &SyncService{
		users:    users,
		timeline: timeline,
		creds:    creds,
		fetcher:  fetcher,
		alerts:   alerts,
		locks:    locks,
		cache:    cache,
		opts:     opts,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Sync fetches the lookback window from the device provider and appends
// every sample whose timestamp is not already on the user's timeline.
// It returns the number of rows actually inserted; a repeat sync of the same
// window returns 0.
//
// The whole window is merged in one transaction: a storage failure part way
// through leaves no partial window behind.
func (s *SyncService) Sync(ctx context.Context, userID string) (int, error) {
	added, err := s.sync(ctx, userID)
	s.metrics.SyncRun(syncOutcome(err))
	if err != nil {
		return 0, err
	}
	s.metrics.SyncReadingsAdded(added)
	return added, nil
}

func (s *SyncService) sync(ctx context.Context, userID string) (int, error) {
	log := s.logger.With(slog.String("user_id", userID))

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("syncing device data: %w", err)
	}
	if !user.HasDevice() {
		return 0, apperror.NotConnected("Dexcom not connected")
	}

	tok, err := s.credential(ctx, userID)
	if err != nil {
		return 0, err
	}

	end := s.now().UTC()
	start := end.Add(-s.opts.Lookback)

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	samples, err := s.fetcher.FetchSamples(fetchCtx, tok, start, end)
	cancel()
	if err != nil {
		log.Warn("device fetch failed", slog.String("error", err.Error()))
		if errors.Is(err, apperror.ErrProvider) || errors.Is(err, apperror.ErrValidation) ||
			errors.Is(err, apperror.ErrNotConnected) {
			return 0, err
		}
		return 0, apperror.Provider("dexcom", err)
	}

	inserted, err := s.merge(ctx, userID, samples)
	if err != nil {
		log.Error("sync merge rolled back", slog.String("error", err.Error()))
		return 0, fmt.Errorf("syncing device data: %w", err)
	}

	log.Info("device sync complete",
		slog.Int("fetched", len(samples)),
		slog.Int("added", len(inserted)),
	)

	if len(inserted) > 0 && s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	for i := range inserted {
		s.metrics.ReadingRecorded(string(model.SourceDevice))
		s.alerts.Evaluate(ctx, user, &inserted[i])
	}
	return len(inserted), nil
}

// merge holds the user's timeline lock for the duration of one transaction.
// Exists skips samples already stored from any source; AppendSynced reports
// inserted=false when the unique device index wins a race instead.
func (s *SyncService) merge(ctx context.Context, userID string, samples []dexcom.Sample) ([]model.GlucoseReading, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var inserted []model.GlucoseReading
	err := s.timeline.WithinTx(ctx, func(tx repository.TimelineTx) error {
		inserted = inserted[:0]
		for _, sample := range samples {
			ts := sample.Timestamp.UTC()
			exists, err := tx.Exists(ctx, userID, ts)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			reading := model.GlucoseReading{
				UserID:    userID,
				Value:     sample.Value,
				Timestamp: ts,
				Synced:    true,
			}
			ok, err := tx.AppendSynced(ctx, &reading)
			if err != nil {
				return err
			}
			if ok {
				inserted = append(inserted, reading)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// credential prefers the user's stored OAuth token and falls back to the
// static access token from config.
func (s *SyncService) credential(ctx context.Context, userID string) (*oauth2.Token, error) {
	cred, err := s.creds.Get(ctx, userID)
	switch {
	case err == nil && cred.AccessToken != "":
		return &oauth2.Token{
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
			TokenType:    cred.TokenType,
			Expiry:       cred.Expiry,
		}, nil
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("loading device credential: %w", err)
	}

	if s.opts.StaticToken != "" {
		return &oauth2.Token{AccessToken: s.opts.StaticToken, TokenType: "Bearer"}, nil
	}
	return nil, apperror.NotConnected("Missing Dexcom access token")
}

func syncOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperror.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, apperror.ErrProvider):
		return "provider_error"
	default:
		return "error"
	}
}
