package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

const (
	MaxCommentLength    = 5000
	DefaultCommentLimit = 50
)

// Caller identifies who is making a request, as established by the auth
// middleware.
type Caller struct {
	ID   string
	Role model.Role
}

// CommentService manages clinician notes on patient records.
type CommentService struct {
	users    repository.UserRepository
	comments repository.CommentRepository
	outbox   Outbox
	logger   *slog.Logger
}

func NewCommentService(
	users repository.UserRepository,
	comments repository.CommentRepository,
	outbox Outbox,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		users:    users,
		comments: comments,
		outbox:   outbox,
		logger:   logger,
	}
}

// Create stores a comment from a clinician on a patient's record and emails
// the patient. Only doctors, dieticians and admins may author comments, and
// only patients may receive them.
func (s *CommentService) Create(ctx context.Context, author Caller, patientID, body string) (*model.Comment, error) {
	if !author.Role.IsClinician() && author.Role != model.RoleAdmin {
		return nil, apperror.Forbidden("only clinicians can comment on patient records")
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.ValidationFailed("comment", "comment is required")
	}
	if len(body) > MaxCommentLength {
		return nil, apperror.ValidationFailed("comment",
			fmt.Sprintf("comment must be %d characters or fewer", MaxCommentLength))
	}

	patient, err := s.users.GetUserByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}
	if patient.Role != model.RolePatient {
		return nil, apperror.ValidationFailed("patient_id", "comments can only be left on patient records")
	}

	provider, err := s.users.GetUserByID(ctx, author.ID)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	comment := &model.Comment{
		PatientID:  patient.ID,
		ProviderID: provider.ID,
		Body:       body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.logger.Info("comment added",
		slog.String("comment_id", comment.ID),
		slog.String("patient_id", patient.ID),
		slog.String("provider_id", provider.ID),
	)

	if patient.Email != "" && !s.outbox.Enqueue(commentEmail(patient.Email, provider.FullName, body)) {
		s.logger.Warn("comment email not queued", slog.String("comment_id", comment.ID))
	}
	return comment, nil
}

// List returns a patient's comments, newest first. Clinicians may read any
// patient; a patient may read only their own record.
func (s *CommentService) List(ctx context.Context, caller Caller, patientID string) ([]model.Comment, error) {
	if caller.Role == model.RolePatient && caller.ID != patientID {
		return nil, apperror.Forbidden("patients can only read their own comments")
	}
	if _, err := s.users.GetUserByID(ctx, patientID); err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}

	comments, err := s.comments.ListForPatient(ctx, patientID, DefaultCommentLimit)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}
