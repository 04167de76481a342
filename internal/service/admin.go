package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

// AdminService holds operator-only actions.
type AdminService struct {
	users  repository.UserRepository
	cache  SummaryInvalidator
	logger *slog.Logger
}

func NewAdminService(users repository.UserRepository, cache SummaryInvalidator, logger *slog.Logger) *AdminService {
	return &AdminService{users: users, cache: cache, logger: logger}
}

// DeleteUser removes an account and, through the storage cascade, every
// reading, food log, comment and credential it owns. Admins cannot delete
// themselves.
func (s *AdminService) DeleteUser(ctx context.Context, caller Caller, userID string) error {
	if caller.ID == userID {
		return apperror.ValidationFailed("id", "admins cannot delete their own account")
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID)
	}
	s.logger.Info("user deleted", slog.String("user_id", userID), slog.String("by", caller.ID))
	return nil
}
