package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

var _ repository.CommentRepository = (*CommentDB)(nil)

type CommentDB struct {
	conn *sql.DB
}

// Create inserts a clinician comment. The caller has already checked roles.
func (c *CommentDB) Create(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now().UTC()

	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO comments (id, patient_id, provider_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		comment.ID,
		comment.PatientID,
		comment.ProviderID,
		comment.Body,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting comment for patient %s: %w", comment.PatientID, err)
	}
	return nil
}

// ListForPatient returns up to limit comments on a patient, newest first.
func (c *CommentDB) ListForPatient(ctx context.Context, patientID string, limit int) ([]model.Comment, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT id, patient_id, provider_id, body, created_at
		 FROM comments
		 WHERE patient_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		patientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for %s: %w", patientID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var cm model.Comment
		if err := rows.Scan(&cm.ID, &cm.PatientID, &cm.ProviderID, &cm.Body, &cm.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, cm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comment rows: %w", err)
	}
	return comments, nil
}
