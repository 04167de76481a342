package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

// OAuthExchanger is the authorization-code half of the device provider.
// *dexcom.Provider satisfies it.
type OAuthExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// DeviceService links users to their Dexcom account.
type DeviceService struct {
	users  repository.UserRepository
	creds  repository.CredentialRepository
	oauth  OAuthExchanger // nil when the OAuth client is not configured
	logger *slog.Logger
}

func NewDeviceService(
	users repository.UserRepository,
	creds repository.CredentialRepository,
	oauth OAuthExchanger,
	logger *slog.Logger,
) *DeviceService {
	return &DeviceService{users: users, creds: creds, oauth: oauth, logger: logger}
}

// Link records the external-device linkage id. An empty id unlinks.
func (s *DeviceService) Link(ctx context.Context, userID, dexcomID string) (*model.User, error) {
	dexcomID = strings.TrimSpace(dexcomID)
	if len(dexcomID) > 128 {
		return nil, apperror.ValidationFailed("dexcom_id", "dexcom_id is too long")
	}
	if err := s.users.LinkDevice(ctx, userID, dexcomID); err != nil {
		return nil, fmt.Errorf("linking device: %w", err)
	}
	s.logger.Info("device link updated", slog.String("user_id", userID), slog.Bool("linked", dexcomID != ""))
	return s.users.GetUserByID(ctx, userID)
}

// OAuthEnabled reports whether the connect flow is available.
func (s *DeviceService) OAuthEnabled() bool {
	return s.oauth != nil
}

// ConnectURL returns the provider login URL for state.
func (s *DeviceService) ConnectURL(state string) (string, error) {
	if s.oauth == nil {
		return "", apperror.NotConnected("Dexcom OAuth is not configured")
	}
	return s.oauth.AuthURL(state), nil
}

// CompleteConnect exchanges the callback code, stores the token and links
// the account. The user's dexcom_id is set to "self" unless one is already
// on file, since the v3 API addresses the token owner as users/self.
func (s *DeviceService) CompleteConnect(ctx context.Context, userID, code string) error {
	if s.oauth == nil {
		return apperror.NotConnected("Dexcom OAuth is not configured")
	}
	if code == "" {
		return apperror.ValidationFailed("code", "authorization code is required")
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return err
	}

	cred := &model.DeviceCredential{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if err := s.creds.Save(ctx, cred); err != nil {
		return fmt.Errorf("storing device credential: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("completing device connect: %w", err)
	}
	if !user.HasDevice() {
		if err := s.users.LinkDevice(ctx, userID, "self"); err != nil {
			return fmt.Errorf("completing device connect: %w", err)
		}
	}

	s.logger.Info("dexcom account connected", slog.String("user_id", userID))
	return nil
}
