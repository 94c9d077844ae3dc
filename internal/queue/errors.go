package queue

import "errors"

// ErrInvalidTransition reports a stage change that would break item invariants.
var ErrInvalidTransition = errors.New("invalid item transition")
