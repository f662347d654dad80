// Package auth holds the catalog credential and refreshes it on expiry.
//
// A [CredentialStore] allows one refresh in flight at a time. Callers that arrive
// while a refresh is running wait for its result. The exchange is detached from the
// caller's context, so a caller that gives up does not abort it for the others.
// After a failed refresh the store is unauthenticated for good and the owner must
// log in again.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds one token exchange.
const DefaultRefreshTimeout = 30 * time.Second

// Refresher exchanges a refresh token for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.Credential, error)
}

// RefreshFunc adapts a function to [Refresher].
type RefreshFunc func(ctx context.Context, refreshToken string) (models.Credential, error)

func (f RefreshFunc) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	return f(ctx, refreshToken)
}

// CredentialStore owns one [models.Credential].
type CredentialStore struct {
	mu        sync.Mutex
	cred      models.Credential
	invalid   bool
	refresher Refresher
	group     singleflight.Group

	// Now is the clock used for expiry checks.
	Now func() time.Time
	// Timeout bounds the token exchange and the OnRefresh callback.
	Timeout time.Duration
	// OnRefresh is called with each rotated credential, before waiting callers are released.
	OnRefresh func(ctx context.Context, cred models.Credential) error
}

// NewCredentialStore creates a store holding cred.
func NewCredentialStore(cred models.Credential, refresher Refresher) *CredentialStore {
	return &CredentialStore{cred: cred, refresher: refresher, Now: time.Now, Timeout: DefaultRefreshTimeout}
}

// Valid returns a credential that has not expired, refreshing first when needed.
//
// When ctx ends before the refresh finishes, Valid returns ctx.Err() and the
// refresh carries on for the remaining callers.
func (s *CredentialStore) Valid(ctx context.Context) (models.Credential, error) {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		return models.Credential{}, shared.ErrNotAuthenticated
	}
	cred := s.cred
	s.mu.Unlock()

	if !cred.Expired(s.Now()) {
		return cred, nil
	}

	ch := s.group.DoChan("refresh", func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
		defer cancel()
		return s.refresh(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.Credential{}, res.Err
		}
		return res.Val.(models.Credential), nil
	case <-ctx.Done():
		return models.Credential{}, ctx.Err()
	}
}

func (s *CredentialStore) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultRefreshTimeout
	}
	return s.Timeout
}

// AccessToken returns a valid bearer token.
func (s *CredentialStore) AccessToken(ctx context.Context) (string, error) {
	cred, err := s.Valid(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

func (s *CredentialStore) refresh(ctx context.Context) (models.Credential, error) {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		return models.Credential{}, shared.ErrNotAuthenticated
	}
	// A caller that lost the race to a finished refresh lands here with a fresh credential.
	if !s.cred.Expired(s.Now()) {
		cred := s.cred
		s.mu.Unlock()
		return cred, nil
	}
	refreshToken := s.cred.RefreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		s.Invalidate()
		return models.Credential{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}

	next, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		s.Invalidate()
		return models.Credential{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	if next.AccessToken == "" || next.Expired(s.Now()) {
		s.Invalidate()
		return models.Credential{}, fmt.Errorf("%w: token endpoint returned no usable expiry", shared.ErrRefreshFailed)
	}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}

	s.mu.Lock()
	s.cred = next
	s.mu.Unlock()

	if s.OnRefresh != nil {
		if err := s.OnRefresh(ctx, next); err != nil {
			return models.Credential{}, fmt.Errorf("failed to persist refreshed credential: %w", err)
		}
	}
	return next, nil
}

// Invalidate marks the store unauthenticated.
func (s *CredentialStore) Invalidate() {
	s.mu.Lock()
	s.invalid = true
	s.mu.Unlock()
}

// Authenticated reports whether the store still accepts calls.
func (s *CredentialStore) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.invalid
}

// Credential returns the held credential without checking expiry.
func (s *CredentialStore) Credential() models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}
