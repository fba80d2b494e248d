// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// services and handlers to distinguish between different failure
// scenarios without depending on a particular storage driver.
package repository

import "errors"

// ErrNotFound is returned when a row addressed by id (or by a unique key
// such as a username) does not exist. Both store implementations return
// it instead of sql.ErrNoRows.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, such as
// signing up with a username that is already taken. Handlers should
// translate this into an HTTP 409 response.
var ErrDuplicate = errors.New("duplicate")
