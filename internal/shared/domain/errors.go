package domain

import "errors"

// ErrConcurrentModification is returned when an optimistic concurrency check
// fails because another process saved the aggregate first.
var ErrConcurrentModification = errors.New("aggregate was modified concurrently")
