package navigation

import (
	"errors"
	"fmt"
)

const (
	// MessageEmptyCollection is shown when a section has no more items.
	MessageEmptyCollection = "no items in this category"

	// MessageUnknown is shown when there is nothing to render and no
	// better explanation is available.
	MessageUnknown = "unknown error"
)

// ErrEmptyCollection is returned by a Source when the requested page holds
// no items.
var ErrEmptyCollection = errors.New(MessageEmptyCollection)

// FetchFailure wraps a transport error or a non-OK response.
type FetchFailure struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (f *FetchFailure) Error() string {
	return fmt.Sprintf("connection error: %v", f.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (f *FetchFailure) Unwrap() error {
	return f.Err
}
