// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// string-matching driver errors.
package repository

import "errors"

// ErrEmailExists is returned when a user insert collides with the unique
// email index. Handlers should translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a lookup matches no row. It wraps the
// common "absent record" case for users, sessions, connections and launch
// tokens so handlers can map it to 401 or 404 as appropriate.
var ErrNotFound = errors.New("not found")
