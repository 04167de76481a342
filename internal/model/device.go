package model

import "time"

// DeviceCredential is the stored OAuth2 token for a user's Dexcom account.
type DeviceCredential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time // zero means the token does not expire
	UpdatedAt    time.Time
}
