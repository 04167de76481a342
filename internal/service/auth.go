// Package service holds the business rules between handlers and storage.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt), Outbox
//
// KEY RESPONSIBILITIES:
//   - Registration: normalize input, enforce the role policy, hash the password
//   - Login: verify credentials and issue a role-carrying JWT
//   - Queue the welcome and login notifications without waiting on them
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/auth"
	"github.com/geniesugar/glucose-monitor/internal/metrics"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

// invalidCredentials is returned for an unknown email and a wrong password alike.
const invalidCredentials = "Invalid email or password"

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository → read/write user records
//   - tokens     *auth.TokenService        → issue JWTs
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - outbox     Outbox                    → welcome/login notifications
type AuthService struct {
	users                repository.UserRepository
	tokens               *auth.TokenService
	passwords            *auth.PasswordService
	outbox               Outbox
	allowClinicianSignup bool
	metrics              *metrics.Metrics
	logger               *slog.Logger
}

// AuthOptions holds the policy knobs read from config.
type AuthOptions struct {
	// AllowClinicianSignup lets self-registration pick doctor or dietician.
	AllowClinicianSignup bool
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	outbox Outbox,
	opts AuthOptions,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:                users,
		tokens:               tokens,
		passwords:            passwords,
		outbox:               outbox,
		allowClinicianSignup: opts.AllowClinicianSignup,
		metrics:              m,
		logger:               logger,
	}
}

// RegisterInput is what a new account needs. Role defaults to patient.
type RegisterInput struct {
	FullName       string
	Email          string
	Password       string
	Phone          string
	Role           model.Role
	DateOfBirth    *time.Time
	MedicalHistory string
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a self-service account. Admin can never be self-selected;
// clinician roles only when AllowClinicianSignup is on.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Role == "" {
		in.Role = model.RolePatient
	}
	if in.Role == model.RoleAdmin ||
		(in.Role.IsClinician() && !s.allowClinicianSignup) {
		s.metrics.AuthAttempt("register", "forbidden")
		return nil, apperror.Forbidden(fmt.Sprintf("role %q cannot be self-registered", in.Role))
	}

	user, err := s.create(ctx, in)
	if err != nil {
		s.metrics.AuthAttempt("register", "failure")
		return nil, err
	}
	s.metrics.AuthAttempt("register", "success")

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	s.queueWelcome(user)
	return user, nil
}

// CreateUser provisions an account with any role. It is the admin path used
// by geniectl and sends no notifications.
func (s *AuthService) CreateUser(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Role == "" {
		in.Role = model.RolePatient
	}
	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user provisioned",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

func (s *AuthService) create(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	if in.FullName == "" {
		return nil, apperror.ValidationFailed("full_name", "full_name is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || !strings.Contains(in.Email, "@") {
		return nil, apperror.ValidationFailed("email", "email must be a valid address")
	}
	if !in.Role.Valid() {
		return nil, apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", in.Role))
	}
	if err := auth.CheckStrength(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		FullName:       in.FullName,
		Email:          in.Email,
		PasswordHash:   hash,
		Role:           in.Role,
		Phone:          in.Phone,
		DateOfBirth:    in.DateOfBirth,
		MedicalHistory: in.MedicalHistory,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}
	return user, nil
}

func (s *AuthService) queueWelcome(user *model.User) {
	msg, err := welcomeEmail(user.Email, user.FullName)
	if err != nil {
		s.logger.Error("welcome email not built", slog.String("user_id", user.ID), slog.String("error", err.Error()))
	} else if !s.outbox.Enqueue(msg) {
		s.logger.Warn("welcome email not queued", slog.String("user_id", user.ID))
	}

	if user.Phone != "" && !s.outbox.Enqueue(welcomeSMS(user.Phone, user.FullName)) {
		s.logger.Warn("welcome sms not queued", slog.String("user_id", user.ID))
	}
}

// Login verifies email + password and issues a JWT. Every credential
// failure returns the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.metrics.AuthAttempt("login", "failure")
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: finding user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.metrics.AuthAttempt("login", "failure")
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		// A corrupt stored hash is still a failed login from the caller's side.
		s.logger.Error("password verification failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	s.metrics.AuthAttempt("login", "success")
	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	if !s.outbox.Enqueue(loginEmail(user.Email, user.FullName)) {
		s.logger.Warn("login email not queued", slog.String("user_id", user.ID))
	}

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID. Used by
// /api/auth/me after the middleware has validated the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("Authentication required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// TokenTTL is the lifetime of issued tokens, for the session cookie.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}
