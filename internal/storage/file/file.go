// Package file keeps the client list in a JSON document on the local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openchami/node-waker/internal/storage"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/rs/zerolog/log"
)

type Storage struct {
	path string
}

var _ storage.ClientStorage = (*Storage)(nil)

func NewStorage(path string) *Storage {
	return &Storage{path: path}
}

func (s *Storage) String() string {
	return "file " + s.path
}

// Stale is always true. Reading a local file is cheap enough that it is
// simply re-read on every listing.
func (s *Storage) Stale(context.Context) bool {
	return true
}

// Load reads the list. A missing file yields an empty list and its parent
// directory is created so that the next Save succeeds.
func (s *Storage) Load(_ context.Context) ([]clients.Client, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", s.path).Msg("Client file does not exist yet")
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return nil, &storage.Error{Op: "read", Backend: s.String(), Err: err}
		}
		return []clients.Client{}, nil
	}
	if err != nil {
		return nil, &storage.Error{Op: "read", Backend: s.String(), Err: err}
	}

	list := []clients.Client{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &storage.Error{Op: "read", Backend: s.String(), Err: err}
	}
	return list, nil
}

func (s *Storage) Save(_ context.Context, list []clients.Client) error {
	if list == nil {
		list = []clients.Client{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return &storage.Error{Op: "write", Backend: s.String(), Err: err}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return &storage.Error{Op: "write", Backend: s.String(), Err: err}
	}
	log.Debug().Str("path", s.path).Int("clients", len(list)).Msg("Client file written")
	return nil
}
