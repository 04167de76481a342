package model

import "time"

// ReadingSource distinguishes how a reading entered the timeline.
type ReadingSource string

const (
	SourceManual ReadingSource = "manual"
	SourceDevice ReadingSource = "device"
)

// GlucoseReading is one glucose measurement in mg/dL.
//
// Readings are append-only: there is no update path. A correction is a new
// reading. Synced is true for rows written by the device sync and is part of
// the dedup key (user_id, timestamp) for those rows.
type GlucoseReading struct {
	ID        string    `json:"id"               db:"id"`
	UserID    string    `json:"user_id"          db:"user_id"`
	Value     float64   `json:"value"            db:"value"`
	Timestamp time.Time `json:"timestamp"        db:"recorded_at"`
	Context   string    `json:"context,omitempty" db:"context"`
	Notes     string    `json:"notes,omitempty"   db:"notes"`
	Synced    bool      `json:"synced"           db:"synced"`
}

// Source returns SourceDevice for synced rows and SourceManual otherwise.
func (r *GlucoseReading) Source() ReadingSource {
	if r.Synced {
		return SourceDevice
	}
	return SourceManual
}
