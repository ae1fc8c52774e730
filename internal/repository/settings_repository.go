package repository

import (
	"context"
	"database/sql"
	"errors"
)

// SettingsRepo covers the slice of 'app_settings' the auth core needs: the
// default row created with each user and the API key hash column consulted
// by the programmatic-access credential path.
type SettingsRepo struct{ DB *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// CreateDefaults inserts the initial settings row for a new user.
func (r *SettingsRepo) CreateDefaults(ctx context.Context, userID, shopName string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO app_settings (user_id, shop_name) VALUES (?,?)",
		userID, shopName)
	return err
}

// UserIDByAPIKeyHash resolves an API key hash to its owning user id.
func (r *SettingsRepo) UserIDByAPIKeyHash(ctx context.Context, hash string) (string, error) {
	var userID string
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM app_settings WHERE api_key_hash=? LIMIT 1",
		hash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

// SetAPIKeyHash stores the hash of a freshly issued key, replacing any
// previous one (a user holds at most one active key).
func (r *SettingsRepo) SetAPIKeyHash(ctx context.Context, userID, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE app_settings SET api_key_hash=? WHERE user_id=?", hash, userID)
	return err
}

// ClearAPIKey revokes the user's key by nulling the stored hash.
func (r *SettingsRepo) ClearAPIKey(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE app_settings SET api_key_hash=NULL WHERE user_id=?", userID)
	return err
}
