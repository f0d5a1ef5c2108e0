package storage

import "errors"

// ErrNotConfigured is returned when the backing client for an operation was not wired.
var ErrNotConfigured = errors.New("storage backend not configured")
