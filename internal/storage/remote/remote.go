// Package remote keeps the client list in a JSON document served over HTTP.
// The document is read with GET, checked for changes with HEAD and written
// with PUT to an optional separate URL.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/openchami/node-waker/internal/storage"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 2
	userAgent      = "node-waker"
)

type Storage struct {
	url     string
	putURL  string
	token   string
	timeout time.Duration
	retries int

	httpClient *http.Client
	client     *retryablehttp.Client

	// validator is the ETag/Last-Modified pair seen on the last GET.
	validator string
}

var _ storage.ClientStorage = (*Storage)(nil)

func NewStorage(getURL string, opts ...Option) (*Storage, error) {
	if err := checkURL(getURL); err != nil {
		return nil, err
	}
	s := &Storage{
		url:     getURL,
		timeout: DefaultTimeout,
		retries: DefaultRetries,
	}
	for _, opt := range opts {
		if err := opt.apply(s); err != nil {
			return nil, err
		}
	}
	s.client = newClient(s.httpClient, s.token, s.timeout, s.retries)
	return s, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid storage URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid storage URL %q: scheme must be http or https", raw)
	}
	return nil
}

func newClient(base *http.Client, token string, timeout time.Duration, retries int) *retryablehttp.Client {
	if base == nil {
		base = cleanhttp.DefaultPooledClient()
	}
	hc := *base
	if hc.Transport == nil {
		hc.Transport = cleanhttp.DefaultPooledTransport()
	}
	hc.Transport = &authTransport{Transport: hc.Transport, Token: token}
	hc.Timeout = timeout

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &hc
	rc.RetryMax = retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = retryLogger{}
	return rc
}

type authTransport struct {
	Transport http.RoundTripper
	Token     string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	if t.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.Token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

func (s *Storage) String() string {
	return "remote " + s.url
}

func validatorOf(h http.Header) string {
	etag, modified := h.Get("ETag"), h.Get("Last-Modified")
	if etag == "" && modified == "" {
		return ""
	}
	return etag + "|" + modified
}

// Stale compares the validator of a HEAD request with the one seen on the
// last Load. Without a validator the document is always considered stale.
// A failed HEAD is logged and treated as unchanged.
func (s *Storage) Stale(ctx context.Context) bool {
	if s.validator == "" {
		return true
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", s.url).Msg("Unable to build staleness request")
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", s.url).Msg("Staleness check failed")
		return false
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return true
	case resp.StatusCode/100 != 2:
		log.Warn().Int("status", resp.StatusCode).Str("url", s.url).Msg("Staleness check failed")
		return false
	}
	return validatorOf(resp.Header) != s.validator
}

// Load fetches the document. A 404 is an empty list.
func (s *Storage) Load(ctx context.Context) ([]clients.Client, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &storage.Error{Op: "read", Backend: s.String(), Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &storage.Error{Op: "read", Backend: s.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		s.validator = ""
		return []clients.Client{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &storage.Error{Op: "read", Backend: s.String(), Err: fmt.Errorf("%w: %s", storage.ErrUnexpectedStatus, resp.Status)}
	}

	list := []clients.Client{}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, &storage.Error{Op: "read", Backend: s.String(), Err: err}
	}
	s.validator = validatorOf(resp.Header)
	log.Debug().Str("url", s.url).Int("clients", len(list)).Msg("Client list fetched")
	return list, nil
}

// Save PUTs the list to the write URL. Without one the list only lives in
// memory until the next reload.
func (s *Storage) Save(ctx context.Context, list []clients.Client) error {
	if s.putURL == "" {
		log.Warn().Str("url", s.url).Msg("No write URL configured, client list not persisted")
		return nil
	}
	if list == nil {
		list = []clients.Client{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return &storage.Error{Op: "write", Backend: s.String(), Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, s.putURL, bytes.NewReader(data))
	if err != nil {
		return &storage.Error{Op: "write", Backend: s.String(), Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return &storage.Error{Op: "write", Backend: s.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &storage.Error{Op: "write", Backend: s.String(), Err: fmt.Errorf("%w: %s", storage.ErrUnexpectedStatus, resp.Status)}
	}
	log.Debug().Str("url", s.putURL).Int("clients", len(list)).Msg("Client list written")
	return nil
}

// retryLogger sends retryablehttp's messages to zerolog.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) { log.Error().Fields(kv).Msg(msg) }
func (retryLogger) Warn(msg string, kv ...interface{})  { log.Warn().Fields(kv).Msg(msg) }
func (retryLogger) Info(msg string, kv ...interface{})  { log.Debug().Fields(kv).Msg(msg) }
func (retryLogger) Debug(msg string, kv ...interface{}) { log.Trace().Fields(kv).Msg(msg) }
