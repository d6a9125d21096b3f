package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/openchami/node-waker/pkg/clients"
)

// ClientStorage persists the client list as a whole. Implementations are
// not required to be safe for concurrent use; the registry serialises calls.
type ClientStorage interface {
	// Load returns the stored list. A store that does not exist yet is an
	// empty list, not an error.
	Load(ctx context.Context) ([]clients.Client, error)
	// Save replaces the stored list.
	Save(ctx context.Context, list []clients.Client) error
	// Stale reports whether the stored list may differ from the last Load.
	Stale(ctx context.Context) bool
	String() string
}

var ErrUnexpectedStatus = errors.New("unexpected status")

// Error is returned by storage backends for failed reads and writes.
type Error struct {
	Op      string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
