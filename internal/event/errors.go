package event

import "errors"

// ErrClosed reports that a subscription was detached and its buffer fully
// drained.
var ErrClosed = errors.New("subscription closed")
