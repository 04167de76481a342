// Package repository declares the storage ports used by the service layer.
// The sqlite subpackage is the only implementation; services depend on these
// interfaces so tests can swap in fakes.
package repository

import (
	"context"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/model"
)

// UserRepository is the Identity Store.
type UserRepository interface {
	// Create assigns an ID and persists the user. A duplicate email returns
	// apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail returns apperror.ErrNotFound when no user has that email.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
	LinkDevice(ctx context.Context, userID, dexcomID string) error
	// Delete removes the user and, by cascade, everything they own.
	Delete(ctx context.Context, id string) error
}

// TimelineRepository is the append-only glucose timeline.
type TimelineRepository interface {
	// Append validates and persists a reading, returning its new ID.
	Append(ctx context.Context, reading *model.GlucoseReading) (string, error)
	// Query returns readings with timestamp >= since, newest first.
	Query(ctx context.Context, userID string, since time.Time) ([]model.GlucoseReading, error)
	// Recent returns up to n readings, newest first.
	Recent(ctx context.Context, userID string, n int) ([]model.GlucoseReading, error)
	Exists(ctx context.Context, userID string, ts time.Time) (bool, error)
	// WithinTx runs fn in a single transaction. Any error returned by fn
	// rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx TimelineTx) error) error
}

// TimelineTx is the transaction-scoped view used by the sync merge.
type TimelineTx interface {
	Exists(ctx context.Context, userID string, ts time.Time) (bool, error)
	// AppendSynced inserts a device-sourced reading. inserted is false when
	// another writer already committed the same (user_id, timestamp).
	AppendSynced(ctx context.Context, reading *model.GlucoseReading) (inserted bool, err error)
}

type FoodLogRepository interface {
	Append(ctx context.Context, log *model.FoodLog) (string, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]model.FoodLog, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	ListForPatient(ctx context.Context, patientID string, limit int) ([]model.Comment, error)
}

// CredentialRepository stores per-user Dexcom OAuth tokens.
type CredentialRepository interface {
	Save(ctx context.Context, cred *model.DeviceCredential) error
	// Get returns apperror.ErrNotFound when the user has no stored token.
	Get(ctx context.Context, userID string) (*model.DeviceCredential, error)
}
