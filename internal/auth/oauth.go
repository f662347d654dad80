package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"golang.org/x/oauth2"
)

// DefaultExpiry is assumed when the token endpoint omits expires_in.
const DefaultExpiry = time.Hour

// OAuthRefresher performs the refresh_token grant with Basic-auth client credentials.
type OAuthRefresher struct {
	config *oauth2.Config
	client *http.Client
	now    func() time.Time
}

// NewOAuthRefresher copies config and forces header-style client authentication.
//
// A nil client uses [http.DefaultClient].
func NewOAuthRefresher(config *oauth2.Config, client *http.Client) *OAuthRefresher {
	cfg := *config
	cfg.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	return &OAuthRefresher{config: &cfg, client: client, now: time.Now}
}

func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	if r.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	}

	// An already-expired token forces TokenSource to hit the endpoint.
	stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	tok, err := r.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return models.Credential{}, fmt.Errorf("refresh grant: %w", err)
	}
	return CredentialFromToken(tok, refreshToken, r.now()), nil
}

// CredentialFromToken converts an oauth2 token, keeping fallbackRefresh when none was issued.
func CredentialFromToken(tok *oauth2.Token, fallbackRefresh string, now time.Time) models.Credential {
	cred := models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = fallbackRefresh
	}
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = now.Add(DefaultExpiry)
	}
	return cred
}
