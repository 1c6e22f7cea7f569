package store

import "errors"

// Stable error taxonomy for the storage layer. Callers branch with
// errors.Is regardless of which concrete adapter produced the failure.
var (
	// ErrAdapterUnavailable means a provider could not be initialized or
	// reached. Fatal to the one adapter, not to the router as a whole.
	ErrAdapterUnavailable = errors.New("store: adapter unavailable")

	// ErrCapabilityNotSupported means an optional capability was invoked on
	// an adapter that does not implement it.
	ErrCapabilityNotSupported = errors.New("store: capability not supported")

	// ErrAdapterUnhealthy means an explicit switch target failed its health
	// gate; the current adapter is left unchanged.
	ErrAdapterUnhealthy = errors.New("store: adapter unhealthy")

	// ErrNoAdapterAvailable means selection exhausted every candidate and
	// the configured fallback. Operations requiring a current adapter fail
	// immediately until a later selection succeeds.
	ErrNoAdapterAvailable = errors.New("store: no adapter available")

	// ErrRecordNotFound means a CRUD operation referenced a missing ID.
	ErrRecordNotFound = errors.New("store: record not found")
)
