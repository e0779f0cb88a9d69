// Package store defines the error taxonomy shared by the metadata and user
// repositories.
package store

import "errors"

var (
	// ErrNotFound reports an unknown file, directory or user id.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports a uniqueness or invariant violation.
	ErrConflict = errors.New("conflict")

	// ErrForbidden reports an operation on a resource the caller does not
	// own. Handlers report it to clients exactly like ErrNotFound so that
	// resource ids cannot be enumerated.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists reports a duplicate username on account creation.
	ErrAlreadyExists = errors.New("already exists")
)
