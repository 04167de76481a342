package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/rs/xid"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

var (
	_ repository.TimelineRepository = (*TimelineDB)(nil)
	_ repository.TimelineTx         = (*timelineTx)(nil)
)

// TimelineDB is the append-only glucose timeline. There is deliberately no
// Update or Delete method; rows only disappear through a user cascade.
type TimelineDB struct {
	conn *sql.DB
}

// execer is the subset of *sql.DB and *sql.Tx the timeline queries need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Append validates and inserts a reading and returns the new ID.
// The reading's ID field is filled in as well.
func (t *TimelineDB) Append(ctx context.Context, reading *model.GlucoseReading) (string, error) {
	if err := validateReading(reading); err != nil {
		return "", err
	}
	reading.ID = xid.New().String()
	reading.Timestamp = reading.Timestamp.UTC()

	if _, err := insertReading(ctx, t.conn, reading, false); err != nil {
		return "", err
	}
	return reading.ID, nil
}

// Query returns every reading for userID with timestamp >= since, newest first.
func (t *TimelineDB) Query(ctx context.Context, userID string, since time.Time) ([]model.GlucoseReading, error) {
	rows, err := t.conn.QueryContext(ctx,
		`SELECT id, user_id, value, recorded_at, context, notes, synced
		 FROM glucose_readings
		 WHERE user_id = ? AND recorded_at >= ?
		 ORDER BY recorded_at DESC, id DESC`,
		userID, toNanos(since),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying readings for %s: %w", userID, err)
	}
	return scanReadings(rows)
}

// Recent returns at most n readings, newest first.
func (t *TimelineDB) Recent(ctx context.Context, userID string, n int) ([]model.GlucoseReading, error) {
	if n <= 0 {
		return []model.GlucoseReading{}, nil
	}
	rows, err := t.conn.QueryContext(ctx,
		`SELECT id, user_id, value, recorded_at, context, notes, synced
		 FROM glucose_readings
		 WHERE user_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent readings for %s: %w", userID, err)
	}
	return scanReadings(rows)
}

// Exists reports whether userID has any reading at exactly ts.
func (t *TimelineDB) Exists(ctx context.Context, userID string, ts time.Time) (bool, error) {
	return readingExists(ctx, t.conn, userID, ts)
}

// WithinTx runs fn inside one transaction. The transaction commits only if
// fn returns nil; an error or panic rolls back every insert made through tx.
func (t *TimelineDB) WithinTx(ctx context.Context, fn func(tx repository.TimelineTx) error) (err error) {
	sqlTx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&timelineTx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// timelineTx is the transaction-scoped view handed to WithinTx callbacks.
type timelineTx struct {
	tx *sql.Tx
}

func (x *timelineTx) Exists(ctx context.Context, userID string, ts time.Time) (bool, error) {
	return readingExists(ctx, x.tx, userID, ts)
}

// AppendSynced inserts a device-sourced reading. A collision on the
// (user_id, recorded_at) device index is not an error: the row is skipped
// and inserted is false.
func (x *timelineTx) AppendSynced(ctx context.Context, reading *model.GlucoseReading) (bool, error) {
	if err := validateReading(reading); err != nil {
		return false, err
	}
	reading.ID = xid.New().String()
	reading.Timestamp = reading.Timestamp.UTC()
	reading.Synced = true

	return insertReading(ctx, x.tx, reading, true)
}

func insertReading(ctx context.Context, db execer, r *model.GlucoseReading, ignoreConflict bool) (bool, error) {
	query := `INSERT INTO glucose_readings (id, user_id, value, recorded_at, context, notes, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if ignoreConflict {
		query += ` ON CONFLICT DO NOTHING`
	}

	res, err := db.ExecContext(ctx, query,
		r.ID,
		r.UserID,
		r.Value,
		toNanos(r.Timestamp),
		r.Context,
		r.Notes,
		r.Synced,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting reading for %s: %w", r.UserID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

func readingExists(ctx context.Context, db execer, userID string, ts time.Time) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM glucose_readings WHERE user_id = ? AND recorded_at = ? LIMIT 1`,
		userID, toNanos(ts),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking reading existence for %s: %w", userID, err)
	}
	return true, nil
}

func scanReadings(rows *sql.Rows) ([]model.GlucoseReading, error) {
	defer rows.Close()

	readings := []model.GlucoseReading{}
	for rows.Next() {
		var (
			r  model.GlucoseReading
			ts int64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Value, &ts, &r.Context, &r.Notes, &r.Synced); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reading row: %w", err)
		}
		r.Timestamp = fromNanos(ts)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reading rows: %w", err)
	}
	return readings, nil
}

func validateReading(r *model.GlucoseReading) error {
	if r.UserID == "" {
		return apperror.ValidationFailed("user_id", "user_id is required")
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return apperror.ValidationFailed("value", "value must be a finite number")
	}
	if r.Timestamp.IsZero() {
		return apperror.ValidationFailed("timestamp", "timestamp is required")
	}
	return nil
}
