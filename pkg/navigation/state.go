package navigation

import (
	"fmt"

	"github.com/Sternrassler/devlife-client/pkg/gif"
)

// Kind discriminates the variants of State.
type Kind int

const (
	// KindLoading means a remote fetch is outstanding.
	KindLoading Kind = iota

	// KindSuccess carries the current item.
	KindSuccess

	// KindError carries a human readable message.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is what the presentation layer should render.
// Item is set only for KindSuccess, Message only for KindError.
type State struct {
	Kind        Kind
	Item        gif.Item
	Message     string
	HasPrevious bool
}

// Loading returns the Loading state.
func Loading() State {
	return State{Kind: KindLoading}
}

// Success returns a Success state for item.
func Success(item gif.Item, hasPrevious bool) State {
	return State{Kind: KindSuccess, Item: item, HasPrevious: hasPrevious}
}

// Failure returns an Error state with the given message.
func Failure(message string, hasPrevious bool) State {
	return State{Kind: KindError, Message: message, HasPrevious: hasPrevious}
}

func (s State) String() string {
	switch s.Kind {
	case KindSuccess:
		return fmt.Sprintf("success(%s, prev=%t)", s.Item.GifURL, s.HasPrevious)
	case KindError:
		return fmt.Sprintf("error(%q, prev=%t)", s.Message, s.HasPrevious)
	default:
		return s.Kind.String()
	}
}
