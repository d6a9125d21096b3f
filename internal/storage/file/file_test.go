package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openchami/node-waker/internal/storage"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "clients.json")
	s := NewStorage(path)

	list, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	s := NewStorage(path)
	list := []clients.Client{
		{Name: "desktop", Description: "office", MAC: "e4:54:e8:a4:97:2f", IP: "192.168.1.20"},
		{Name: "nas", MAC: "00:11:32:aa:bb:cc", IP: "192.168.1.5", Check: "tcp:22"},
	}
	require.NoError(t, s.Save(context.Background(), list))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"name\": \"desktop\",")

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, list, got)
}

func TestSaveEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	require.NoError(t, NewStorage(path).Save(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewStorage(path).Load(context.Background())
	var storageErr *storage.Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read", storageErr.Op)
}

func TestAlwaysStale(t *testing.T) {
	s := NewStorage("unused.json")
	assert.True(t, s.Stale(context.Background()))
	assert.True(t, s.Stale(context.Background()))
}
