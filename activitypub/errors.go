package activitypub

import (
	"errors"
	"fmt"
)

var (
	// ErrRecursionLimit aborts the whole dispatch: the resolution budget of
	// the current activity is exhausted.
	ErrRecursionLimit = errors.New("activitypub: recursion limit exceeded")

	// ErrSchemeNotAllowed marks a reference whose URI scheme is not
	// fetchable (anything but http/https).
	ErrSchemeNotAllowed = errors.New("activitypub: uri scheme not allowed")

	// ErrHostBlocked marks a reference to an instance on the block list.
	ErrHostBlocked = errors.New("activitypub: host is blocked")

	// ErrGone marks an object resolved to a Tombstone.
	ErrGone = errors.New("activitypub: object is gone")

	// ErrLocalActor rejects a crawl of a local account.
	ErrLocalActor = errors.New("activitypub: actor is local")

	// ErrNoOutbox rejects a crawl of an actor without a usable outbox.
	ErrNoOutbox = errors.New("activitypub: actor has no outbox")
)

// FetchError is a failed remote dereference. 5xx and transport-level
// failures are retryable; 4xx are terminal.
type FetchError struct {
	URI    string
	Status int // 0 for transport errors
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("activitypub: fetch %s: status %d", e.URI, e.Status)
	}
	return fmt.Sprintf("activitypub: fetch %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Gone (410) and the
// other 4xx responses are terminal.
func (e *FetchError) Retryable() bool {
	return e.Status == 0 || e.Status >= 500
}

// isFatal reports whether an error from resolving or handling a single
// activity must abort the whole dispatch instead of skipping the item.
func isFatal(err error) bool {
	return errors.Is(err, ErrRecursionLimit)
}
