package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/djai/internal/shared"
)

// Session is a browser login bound to a Spotify account.
//
// The session key is the opaque cookie value; the id is the row identifier.
type Session struct {
	id            string
	sequence      int
	key           string
	spotifyUserID string
	displayName   string
	credential    Credential
	createdAt     time.Time
	updatedAt     time.Time
	deletedAt     *time.Time
}

// NewSession creates a [Session] with creation timestamps set to now.
func NewSession(key, spotifyUserID, displayName string, cred Credential) *Session {
	now := time.Now()
	return &Session{
		key:           key,
		spotifyUserID: spotifyUserID,
		displayName:   displayName,
		credential:    cred,
		createdAt:     now,
		updatedAt:     now,
	}
}

func (s *Session) ID() string             { return s.id }
func (s *Session) Sequence() int          { return s.sequence }
func (s *Session) Key() string            { return s.key }
func (s *Session) SpotifyUserID() string  { return s.spotifyUserID }
func (s *Session) DisplayName() string    { return s.displayName }
func (s *Session) Credential() Credential { return s.credential }
func (s *Session) CreatedAt() time.Time   { return s.createdAt }
func (s *Session) UpdatedAt() time.Time   { return s.updatedAt }
func (s *Session) DeletedAt() *time.Time  { return s.deletedAt }

func (s *Session) SetID(id string)            { s.id = id }
func (s *Session) SetSequence(seq int)        { s.sequence = seq }
func (s *Session) SetCreatedAt(t time.Time)   { s.createdAt = t }
func (s *Session) SetUpdatedAt(t time.Time)   { s.updatedAt = t }
func (s *Session) SetDeletedAt(t *time.Time)  { s.deletedAt = t }
func (s *Session) SetDisplayName(name string) { s.displayName = name }

// Validate requires a session key, an owner and an access token.
func (s *Session) Validate() error {
	if s.key == "" {
		return fmt.Errorf("%w: session key is required", shared.ErrInvalidInput)
	}
	if s.spotifyUserID == "" {
		return fmt.Errorf("%w: spotify user id is required", shared.ErrInvalidInput)
	}
	if s.credential.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}
	return nil
}
