package model

import "time"

// Role values stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an application user record as stored in the `users`
// table. IDs are opaque strings of the form "usr_<uuid>". The Password
// field holds the bcrypt digest (or, for accounts imported before hashing
// was introduced, a legacy plaintext value that login upgrades in place);
// it must never cross the API boundary — handlers respond with separate
// DTOs that omit it.
//
// Fields:
//
//	ID        – primary key identifier of the user.
//	Email     – unique email address.
//	Name      – display name.
//	Role      – "user" or "admin".
//	Password  – bcrypt hashed password (never serialized).
//	CreatedAt – timestamp of creation.
//	UpdatedAt – timestamp of last update.
type User struct {
	ID        string    // users.id
	Email     string    // users.email
	Name      string    // users.name
	Role      string    // users.role
	Password  string    // users.password (hash; stripped before responses)
	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
