package reservation

import "errors"

var (
	// ErrInvalidRange rejects empty, inverted, or past date ranges. Caller
	// error, never retried.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrNoAvailability is the business outcome of exhausted capacity on at
	// least one date in the requested range. Surfaced as-is.
	ErrNoAvailability = errors.New("no availability")

	// ErrConflict surfaces after the engine exhausts its internal retry
	// budget on optimistic-version mismatches.
	ErrConflict = errors.New("version conflict")

	// ErrBusy signals a lock-acquisition timeout; the caller may retry with
	// backoff.
	ErrBusy = errors.New("engine busy")

	// ErrNotFound covers unknown reservation IDs and reservations owned by
	// a different user; ownership is not disclosed to other users.
	ErrNotFound = errors.New("reservation not found")

	// ErrAlreadyCancelled rejects transitions out of a terminal state.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")

	// ErrInvariantViolation indicates a logic bug (double-release, negative
	// capacity). Fatal to the operation, always logged, never absorbed.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrRecordNotFound is returned by ledger implementations for unknown
	// reservation IDs.
	ErrRecordNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by ledger implementations when a
	// mutation carries a stale version.
	ErrVersionConflict = errors.New("stale reservation version")
)
