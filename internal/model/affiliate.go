package model

import "time"

// AffiliateConnection models a row in `affiliate_connections`: a merchant's
// saved login for a third-party affiliate portal. Email and password are
// stored only in encrypted form (credential cipher output); list endpoints
// never return them, and the plaintext is reconstructed solely during the
// one-time launch exchange.
type AffiliateConnection struct {
	ID                string    // affiliate_connections.id
	UserID            string    // affiliate_connections.user_id
	Name              string    // affiliate_connections.name
	LoginURL          string    // affiliate_connections.login_url
	EmailEncrypted    string    // affiliate_connections.email_encrypted
	PasswordEncrypted string    // affiliate_connections.password_encrypted
	CreatedAt         time.Time // affiliate_connections.created_at
	UpdatedAt         time.Time // affiliate_connections.updated_at
}

// AffiliateLaunchToken is a single-use, short-lived token minted when the
// merchant launches a connection. Consuming it deletes the row, so the
// decrypted credentials can be handed out at most once.
type AffiliateLaunchToken struct {
	Token        string    // affiliate_launch_tokens.token
	UserID       string    // affiliate_launch_tokens.user_id
	ConnectionID string    // affiliate_launch_tokens.connection_id
	ExpiresAt    time.Time // affiliate_launch_tokens.expires_at
}
