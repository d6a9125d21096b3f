package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/openchami/node-waker/internal/storage"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docServer serves one JSON document with an ETag that changes on every PUT.
type docServer struct {
	mu      sync.Mutex
	body    []byte
	version int
	gets    int
	heads   int
	puts    int
	auth    string
	missing bool
}

func (d *docServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.auth = r.Header.Get("Authorization")
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if r.Method == http.MethodGet {
			d.gets++
		} else {
			d.heads++
		}
		if d.missing {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("ETag", fmt.Sprintf(`"v%d"`, d.version))
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = w.Write(d.body)
		}
	case http.MethodPut:
		d.puts++
		body, _ := io.ReadAll(r.Body)
		d.body = body
		d.version++
		d.missing = false
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newDocServer(t *testing.T, list []clients.Client) (*docServer, *httptest.Server) {
	t.Helper()
	body, err := json.Marshal(list)
	require.NoError(t, err)
	doc := &docServer{body: body}
	srv := httptest.NewServer(doc)
	t.Cleanup(srv.Close)
	return doc, srv
}

var sample = []clients.Client{
	{Name: "desktop", MAC: "e4:54:e8:a4:97:2f", IP: "192.168.1.20"},
}

func TestLoadAndStaleness(t *testing.T) {
	doc, srv := newDocServer(t, sample)
	s, err := NewStorage(srv.URL, WithRetries(0))
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, s.Stale(ctx), "nothing loaded yet")
	list, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample, list)

	assert.False(t, s.Stale(ctx))
	assert.False(t, s.Stale(ctx))
	assert.Equal(t, 1, doc.gets)
	assert.Equal(t, 2, doc.heads)

	doc.mu.Lock()
	doc.version++
	doc.mu.Unlock()
	assert.True(t, s.Stale(ctx))
}

func TestLoadNotFoundIsEmpty(t *testing.T) {
	doc, srv := newDocServer(t, nil)
	doc.missing = true
	s, err := NewStorage(srv.URL, WithRetries(0))
	require.NoError(t, err)

	list, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.True(t, s.Stale(context.Background()))
}

func TestWithHTTPClientLeavesCallerClient(t *testing.T) {
	doc, srv := newDocServer(t, sample)
	shared := &http.Client{}
	s, err := NewStorage(srv.URL, WithHTTPClient(shared), WithToken("secret"), WithRetries(0))
	require.NoError(t, err)

	list, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sample, list)
	assert.Equal(t, "Bearer secret", doc.auth)

	assert.Nil(t, shared.Transport)
	assert.Zero(t, shared.Timeout)
}

func TestLoadUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	s, err := NewStorage(srv.URL, WithRetries(0))
	require.NoError(t, err)

	_, err = s.Load(context.Background())
	var storageErr *storage.Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read", storageErr.Op)
	assert.ErrorIs(t, err, storage.ErrUnexpectedStatus)
}

func TestSave(t *testing.T) {
	doc, srv := newDocServer(t, nil)
	s, err := NewStorage(srv.URL, WithPutURL(srv.URL+"/put"), WithToken("s3cret"), WithRetries(0))
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), sample))
	assert.Equal(t, 1, doc.puts)
	assert.Equal(t, "Bearer s3cret", doc.auth)

	var stored []clients.Client
	require.NoError(t, json.Unmarshal(doc.body, &stored))
	assert.Equal(t, sample, stored)
}

func TestSaveWithoutPutURL(t *testing.T) {
	doc, srv := newDocServer(t, nil)
	s, err := NewStorage(srv.URL, WithRetries(0))
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), sample))
	assert.Zero(t, doc.puts)
	assert.Empty(t, doc.auth)
}

func TestSaveRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	s, err := NewStorage(srv.URL, WithPutURL(srv.URL), WithRetries(0))
	require.NoError(t, err)

	err = s.Save(context.Background(), sample)
	var storageErr *storage.Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "write", storageErr.Op)
}

func TestNewStorageValidation(t *testing.T) {
	_, err := NewStorage("ftp://example.com/clients.json")
	assert.Error(t, err)
	_, err = NewStorage("http://example.com/clients.json", WithPutURL("::bad"))
	assert.Error(t, err)
	_, err = NewStorage("http://example.com/clients.json", WithTimeout(0))
	assert.Error(t, err)
	_, err = NewStorage("http://example.com/clients.json", WithRetries(-1))
	assert.Error(t, err)
}
