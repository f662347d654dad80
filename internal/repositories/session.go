package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/djai/internal/models"
	"github.com/desertthunder/djai/internal/shared"
)

// ErrSessionNotFound is returned when no live session matches a lookup.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository implements [models.Repository] for [models.Session] persistence.
type SessionRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Session] = (*SessionRepository)(nil)

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, sequence, session_key, spotify_user_id, display_name,
		access_token, refresh_token, expires_at, created_at, updated_at, deleted_at`

// Create inserts a new session with a generated ID and sequence
func (r *SessionRepository) Create(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	cred := session.Credential()

	query := `
		INSERT INTO sessions (id, sequence, session_key, spotify_user_id, display_name,
			access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, session.Key(), session.SpotifyUserID(), session.DisplayName(),
		cred.AccessToken, cred.RefreshToken, nullTime(cred.ExpiresAt), session.CreatedAt(), session.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	session.SetID(id)
	session.SetSequence(sequence)
	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ? AND deleted_at IS NULL`

	session, err := scanSession(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return session, nil
}

// GetByKey retrieves a live session by its cookie value
func (r *SessionRepository) GetByKey(key string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE session_key = ? AND deleted_at IS NULL`

	session, err := scanSession(r.db.QueryRow(query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return session, nil
}

// Update writes the display name and credential of an existing session
func (r *SessionRepository) Update(session *models.Session) error {
	if session.DeletedAt() != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID())
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	cred := session.Credential()

	query := `
		UPDATE sessions
		SET display_name = ?, access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, session.DisplayName(), cred.AccessToken, cred.RefreshToken,
		nullTime(cred.ExpiresAt), now, session.ID())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if err := expectRow(result, session.ID()); err != nil {
		return err
	}

	session.SetUpdatedAt(now)
	return nil
}

// UpdateCredential stores a refreshed credential for the session with the given ID
func (r *SessionRepository) UpdateCredential(id string, cred models.Credential) error {
	if cred.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidCredentials)
	}

	query := `
		UPDATE sessions
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, cred.AccessToken, cred.RefreshToken, nullTime(cred.ExpiresAt), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update session credential: %w", err)
	}
	return expectRow(result, id)
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	query := `
		UPDATE sessions
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves live sessions, optionally filtered by "spotify_user_id"
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["spotify_user_id"].(string); ok && userID != "" {
		query += " AND spotify_user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		id, key, userID, displayName string
		accessToken, refreshToken    string
		sequence                     int
		expiresAt                    sql.NullTime
		createdAt, updatedAt         time.Time
		deletedAt                    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &key, &userID, &displayName,
		&accessToken, &refreshToken, &expiresAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	cred := models.Credential{AccessToken: accessToken, RefreshToken: refreshToken}
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}

	session := models.NewSession(key, userID, displayName, cred)
	session.SetID(id)
	session.SetSequence(sequence)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		session.SetDeletedAt(&deletedAt.Time)
	}
	return session, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", ErrSessionNotFound, id)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
