// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is the error returned when no live record carries the given
// id. This may be wrapped in another error, and should normally be tested
// using errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("book not found")

type notFoundError int

func (e notFoundError) Error() string {
	return fmt.Sprintf("book with id %d not found", int(e))
}

func (e notFoundError) Is(err error) bool {
	if err == ErrNotFound {
		return true
	}
	downcasted, ok := err.(notFoundError)
	return ok && downcasted == e
}

// ErrAlreadyInState is the error returned when an update requests the status
// the record already has. No-op transitions are rejected rather than applied.
// Test with errors.Is(err, ErrAlreadyInState).
var ErrAlreadyInState = errors.New("book already in requested state")

type alreadyInStateError struct {
	id     int
	status Status
}

func (e alreadyInStateError) Error() string {
	return fmt.Sprintf("book with id %d is already %s", e.id, e.status)
}

func (e alreadyInStateError) Is(err error) bool {
	if err == ErrAlreadyInState {
		return true
	}
	downcasted, ok := err.(alreadyInStateError)
	return ok && downcasted == e
}

// ErrNoSpace is the error returned when the configured live-node capacity is
// exhausted and a new node cannot be obtained. The collection is left
// unchanged. Test with errors.Is(err, ErrNoSpace).
var ErrNoSpace = errors.New("node capacity exhausted")

type noSpaceError int64

func (e noSpaceError) Error() string {
	return fmt.Sprintf("node capacity of %d exhausted", int64(e))
}

func (e noSpaceError) Is(err error) bool {
	if err == ErrNoSpace {
		return true
	}
	downcasted, ok := err.(noSpaceError)
	return ok && downcasted == e
}
