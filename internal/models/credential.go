package models

import "time"

// Credential is a catalog access token with its refresh token and absolute expiry.
type Credential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the token is at or past its expiry.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
