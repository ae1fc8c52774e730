// Package queue defines message payloads exchanged over the message broker.
package queue

// Auth audit event types.
const (
	EventLogin         = "login"
	EventLogout        = "logout"
	EventOrphanSession = "orphan_session_cleanup"
)

// AuthEvent is published whenever the auth core changes login state: a
// successful login, an explicit logout, or the lazy deletion of a session
// whose user has been removed. It carries enough for downstream consumers
// to build an audit trail without querying the primary database.
type AuthEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	IP        string `json:"ip,omitempty"`
	At        string `json:"at"` // RFC 3339 UTC
}
