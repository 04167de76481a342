package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
	"github.com/geniesugar/glucose-monitor/internal/repository"
)

var _ repository.CredentialRepository = (*CredentialDB)(nil)

// CredentialDB stores one Dexcom OAuth token per user.
type CredentialDB struct {
	conn *sql.DB
}

// Save upserts the user's token. A reconnect replaces the previous token.
func (c *CredentialDB) Save(ctx context.Context, cred *model.DeviceCredential) error {
	cred.UpdatedAt = time.Now().UTC()

	var expiry int64
	if !cred.Expiry.IsZero() {
		expiry = toNanos(cred.Expiry)
	}

	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO device_credentials (user_id, access_token, refresh_token, token_type, expiry, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type    = excluded.token_type,
			expiry        = excluded.expiry,
			updated_at    = excluded.updated_at`,
		cred.UserID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		expiry,
		cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving device credential for %s: %w", cred.UserID, err)
	}
	return nil
}

func (c *CredentialDB) Get(ctx context.Context, userID string) (*model.DeviceCredential, error) {
	var (
		cred   model.DeviceCredential
		expiry int64
	)
	err := c.conn.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, token_type, expiry, updated_at
		 FROM device_credentials WHERE user_id = ?`,
		userID,
	).Scan(&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &cred.TokenType, &expiry, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("device credential", userID)
		}
		return nil, fmt.Errorf("sqlite: getting device credential for %s: %w", userID, err)
	}
	if expiry != 0 {
		cred.Expiry = fromNanos(expiry)
	}
	return &cred, nil
}
