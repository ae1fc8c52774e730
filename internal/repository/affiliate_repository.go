package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/textilelaunch/launchpad/internal/model"
)

// AffiliateRepo persists affiliate portal connections and their single-use
// launch tokens. Credentials reach this layer already encrypted; the
// repository never sees plaintext.
type AffiliateRepo struct{ DB *sql.DB }

func NewAffiliateRepo(db *sql.DB) *AffiliateRepo { return &AffiliateRepo{DB: db} }

// ListConnections returns the user's connections without credential columns.
func (r *AffiliateRepo) ListConnections(ctx context.Context, userID string) ([]model.AffiliateConnection, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, name, login_url, created_at FROM affiliate_connections WHERE user_id=? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []model.AffiliateConnection
	for rows.Next() {
		var c model.AffiliateConnection
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.LoginURL, &c.CreatedAt); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// Exists reports whether the connection belongs to the user.
func (r *AffiliateRepo) Exists(ctx context.Context, id, userID string) (bool, error) {
	var found string
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM affiliate_connections WHERE id=? AND user_id=? LIMIT 1",
		id, userID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Create inserts a new connection with encrypted credentials.
func (r *AffiliateRepo) Create(ctx context.Context, c model.AffiliateConnection) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO affiliate_connections (id, user_id, name, login_url, email_encrypted, password_encrypted) VALUES (?,?,?,?,?,?)",
		c.ID, c.UserID, c.Name, c.LoginURL, c.EmailEncrypted, c.PasswordEncrypted)
	return err
}

// Update rewrites an existing connection owned by the user.
func (r *AffiliateRepo) Update(ctx context.Context, c model.AffiliateConnection) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE affiliate_connections SET name=?, login_url=?, email_encrypted=?, password_encrypted=?, updated_at=NOW() WHERE id=? AND user_id=?",
		c.Name, c.LoginURL, c.EmailEncrypted, c.PasswordEncrypted, c.ID, c.UserID)
	return err
}

// Delete removes a connection owned by the user.
func (r *AffiliateRepo) Delete(ctx context.Context, id, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM affiliate_connections WHERE id=? AND user_id=?", id, userID)
	return err
}

// CreateLaunchToken mints a short-lived single-use token for a connection.
func (r *AffiliateRepo) CreateLaunchToken(ctx context.Context, token, userID, connectionID string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO affiliate_launch_tokens (token, user_id, connection_id, expires_at) VALUES (?,?,?,?)",
		token, userID, connectionID, expiresAt)
	return err
}

// ConsumeLaunchToken resolves an unexpired launch token to its connection
// (including encrypted credentials) and deletes the token so it cannot be
// replayed. Expired or unknown tokens return ErrNotFound.
func (r *AffiliateRepo) ConsumeLaunchToken(ctx context.Context, token string) (model.AffiliateConnection, error) {
	var c model.AffiliateConnection
	err := r.DB.QueryRowContext(ctx,
		`SELECT c.id, c.user_id, c.name, c.login_url, c.email_encrypted, c.password_encrypted
		 FROM affiliate_launch_tokens t
		 JOIN affiliate_connections c ON c.id = t.connection_id
		 WHERE t.token=? AND t.expires_at > NOW() LIMIT 1`,
		token).Scan(&c.ID, &c.UserID, &c.Name, &c.LoginURL, &c.EmailEncrypted, &c.PasswordEncrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AffiliateConnection{}, ErrNotFound
	}
	if err != nil {
		return model.AffiliateConnection{}, err
	}
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM affiliate_launch_tokens WHERE token=?", token); err != nil {
		return model.AffiliateConnection{}, err
	}
	return c, nil
}
