package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/geniesugar/glucose-monitor/internal/apperror"
	"github.com/geniesugar/glucose-monitor/internal/model"
)

type fakeExchanger struct {
	tok *oauth2.Token
	err error
}

func (f *fakeExchanger) AuthURL(state string) string {
	return "https://sandbox-api.dexcom.com/v2/oauth2/login?state=" + state
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.tok, f.err
}

func TestDeviceLink(t *testing.T) {
	users := newFakeUserRepo()
	u := users.add("Pat", model.RolePatient)
	svc := NewDeviceService(users, newFakeCreds(), nil, discardLogger())

	got, err := svc.Link(context.Background(), u.ID, " dex-123 ")
	require.NoError(t, err)
	assert.Equal(t, "dex-123", got.DexcomID)

	got, err = svc.Link(context.Background(), u.ID, "")
	require.NoError(t, err)
	assert.False(t, got.HasDevice())

	_, err = svc.Link(context.Background(), "ghost", "x")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeviceConnect_Disabled(t *testing.T) {
	svc := NewDeviceService(newFakeUserRepo(), newFakeCreds(), nil, discardLogger())

	assert.False(t, svc.OAuthEnabled())
	_, err := svc.ConnectURL("state")
	assert.ErrorIs(t, err, apperror.ErrNotConnected)
	assert.ErrorIs(t, svc.CompleteConnect(context.Background(), "u", "code"), apperror.ErrNotConnected)
}

func TestDeviceCompleteConnect(t *testing.T) {
	users := newFakeUserRepo()
	u := users.add("Pat", model.RolePatient)
	creds := newFakeCreds()
	expiry := testNow.Add(2 * time.Hour)
	svc := NewDeviceService(users, creds, &fakeExchanger{tok: &oauth2.Token{
		AccessToken: "acc", RefreshToken: "ref", TokenType: "Bearer", Expiry: expiry,
	}}, discardLogger())

	url, err := svc.ConnectURL("abc")
	require.NoError(t, err)
	assert.Contains(t, url, "state=abc")

	require.NoError(t, svc.CompleteConnect(context.Background(), u.ID, "the-code"))

	cred, err := creds.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "acc", cred.AccessToken)
	assert.Equal(t, "ref", cred.RefreshToken)
	assert.True(t, cred.Expiry.Equal(expiry))

	linked, err := users.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "self", linked.DexcomID)
}

func TestDeviceCompleteConnect_ExchangeFailure(t *testing.T) {
	users := newFakeUserRepo()
	u := users.add("Pat", model.RolePatient)
	creds := newFakeCreds()
	svc := NewDeviceService(users, creds, &fakeExchanger{
		err: apperror.Provider("dexcom", errors.New("invalid_grant")),
	}, discardLogger())

	err := svc.CompleteConnect(context.Background(), u.ID, "bad")
	assert.ErrorIs(t, err, apperror.ErrProvider)

	_, err = creds.Get(context.Background(), u.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.ErrorIs(t, svc.CompleteConnect(context.Background(), u.ID, ""), apperror.ErrValidation)
}
