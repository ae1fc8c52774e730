package model

import "time"

// Session models a row in the `sessions` table: the server-side proof of a
// login, addressed by an opaque random id carried in the sessionId cookie.
// The row redundantly stores the signed token issued at login so that
// header-based clients created from the same login keep working; the
// session path trusts the row itself and does not re-verify that token.
//
// A session is valid iff now() < ExpiresAt. There is no sliding expiry:
// rows are created at login, deleted at logout, and deleted lazily by the
// authenticator when their user has vanished.
//
// Fields:
//
//	ID        – opaque random id, functions as a bearer secret (cookie value).
//	UserID    – owning user.
//	Token     – signed token issued alongside the session.
//	ExpiresAt – absolute expiry timestamp.
//	CreatedAt – timestamp of creation.
type Session struct {
	ID        string    // sessions.id
	UserID    string    // sessions.user_id
	Token     string    // sessions.token
	ExpiresAt time.Time // sessions.expires_at
	CreatedAt time.Time // sessions.created_at
}
