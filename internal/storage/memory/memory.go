// Package memory is a ClientStorage that never leaves the process. It backs
// tests and dry runs.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/openchami/node-waker/internal/storage"
	"github.com/openchami/node-waker/pkg/clients"
)

type Storage struct {
	mu    sync.Mutex
	list  []clients.Client
	stale bool
	loads int
	saves int

	// LoadErr and SaveErr, when set, are returned by the next calls.
	LoadErr error
	SaveErr error
}

var _ storage.ClientStorage = (*Storage)(nil)

func NewStorage(list ...clients.Client) *Storage {
	return &Storage{list: slices.Clone(list), stale: true}
}

func (s *Storage) String() string { return "memory" }

func (s *Storage) Load(context.Context) ([]clients.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.LoadErr != nil {
		return nil, &storage.Error{Op: "read", Backend: s.String(), Err: s.LoadErr}
	}
	s.stale = false
	return slices.Clone(s.list), nil
}

func (s *Storage) Save(_ context.Context, list []clients.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.SaveErr != nil {
		return &storage.Error{Op: "write", Backend: s.String(), Err: s.SaveErr}
	}
	s.list = slices.Clone(list)
	return nil
}

// Stale is true until the first Load and after every Replace.
func (s *Storage) Stale(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// Replace swaps the stored list behind the reader's back, like another
// writer would.
func (s *Storage) Replace(list []clients.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = slices.Clone(list)
	s.stale = true
}

// Stored returns a copy of what was last saved.
func (s *Storage) Stored() []clients.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.list)
}

// Calls returns how often Load and Save ran.
func (s *Storage) Calls() (loads, saves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.saves
}
