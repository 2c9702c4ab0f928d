package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIdentity means an item carries no field that could anchor the
	// per-feed uniqueness invariant (e.g. a calendar event with neither
	// summary nor url).
	ErrNoIdentity = errors.New("item has no resolvable identity")

	ErrUnknownFormat = errors.New("unknown document format")
)

// ItemError reports one item that could not be merged. Failures are isolated
// per item; the rest of the document still processes.
type ItemError struct {
	Index int
	Title string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%q): %s", e.Index, e.Title, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
