package sentinel

import "errors"

// Sentinel errors for the storage and artifact adapters. Adapters return
// these (optionally wrapped) so services can translate them into domain
// errors exactly once.
var (
	// ErrNotFound signals that no entity matched the lookup.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput signals a malformed identifier or locator.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict signals a lost optimistic-concurrency race, such as a
	// policy schedule already advanced by another executor.
	ErrConflict = errors.New("conflict")
)
