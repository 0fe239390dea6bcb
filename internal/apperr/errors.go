// Package apperr defines sentinel errors shared across the adapter.
package apperr

import "errors"

var (
	// ErrNotFound indicates the vault has no file at the requested path.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a create targeted an existing file.
	ErrAlreadyExists = errors.New("already exists")
	// ErrRemoteUnavailable indicates the Obsidian REST API could not be
	// reached or answered with a server-side failure. Transient.
	ErrRemoteUnavailable = errors.New("remote vault unavailable")
)

// IsTransient reports whether err is worth retrying or serving from the
// vault cache instead.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
