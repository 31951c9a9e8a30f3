package domain

import "errors"

// Sentinel errors for the pipeline's failure taxonomy. Callers classify
// upstream failures with errors.Is and decide between skip, retry-next-cycle
// and shutdown.
var (
	// ErrNotFound means the item is absent upstream or in the store.
	// Terminal for the item; recorded, not retried.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded means the upstream API rejected the call for quota
	// reasons. Recoverable; the item is retried on the next scheduled cycle.
	ErrQuotaExceeded = errors.New("api quota exceeded")

	// ErrFeedUnavailable means the syndication feed endpoint returned a
	// non-success status.
	ErrFeedUnavailable = errors.New("video feed unavailable")

	// ErrNoAPIKeys means the credential pool is empty.
	ErrNoAPIKeys = errors.New("no api keys configured")

	// ErrQueueClosed means the command queue has shut down. Fatal for the
	// loop that observes it.
	ErrQueueClosed = errors.New("queue closed")
)
