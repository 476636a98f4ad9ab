package types

import "errors"

// Attachable is a BackingStore whose resources are bound to a Config: a
// data directory or a server connection. Callers attach before use and
// detach when done.
type Attachable interface {
	BackingStore

	// Attach connects to the backend described by config, creating the
	// DataDir if the backend needs one. Returns ErrAlreadyAttached if called
	// while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations return ErrStoreClosed.
	Detach() error
}

// Backend lifecycle errors.
var (
	ErrAlreadyAttached = errors.New("backend is already attached")
)
