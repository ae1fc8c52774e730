package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/textilelaunch/launchpad/internal/model"
)

// SessionRepo persists login sessions (the 'sessions' table).
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, id, userID, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, token, expires_at) VALUES (?,?,?,?)",
		id, userID, token, expiresAt)
	return err
}

// GetActive returns the session iff it exists and has not expired. Expiry
// is checked in SQL so an expired row and a missing row are the same
// ErrNotFound to the caller.
func (r *SessionRepo) GetActive(ctx context.Context, id string) (model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token, expires_at FROM sessions WHERE id=? AND expires_at > NOW() LIMIT 1",
		id).Scan(&s.ID, &s.UserID, &s.Token, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return s, err
}

// Delete removes a session row. Deleting an already-gone row is a no-op,
// which keeps the orphan cleanup in the authenticator race-safe.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE id=?", id)
	return err
}

// DeleteForUser removes every session belonging to a user.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE user_id=?", userID)
	return err
}
