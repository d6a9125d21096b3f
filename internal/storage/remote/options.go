package remote

import (
	"fmt"
	"net/http"
	"time"
)

type Option interface {
	apply(*Storage) error
}

// putURLOption sets the URL the list is written to. When unset the list is
// never written back.
type putURLOption string

func (o putURLOption) apply(s *Storage) error {
	if o == "" {
		return nil
	}
	if err := checkURL(string(o)); err != nil {
		return err
	}
	s.putURL = string(o)
	return nil
}

func WithPutURL(u string) Option {
	return putURLOption(u)
}

// tokenOption sets a bearer token sent with every request.
type tokenOption string

func (o tokenOption) apply(s *Storage) error {
	s.token = string(o)
	return nil
}

func WithToken(token string) Option {
	return tokenOption(token)
}

type timeoutOption time.Duration

func (o timeoutOption) apply(s *Storage) error {
	if o <= 0 {
		return fmt.Errorf("storage timeout must be positive, got %s", time.Duration(o))
	}
	s.timeout = time.Duration(o)
	return nil
}

func WithTimeout(d time.Duration) Option {
	return timeoutOption(d)
}

// retriesOption is the number of retries after a failed request.
type retriesOption int

func (o retriesOption) apply(s *Storage) error {
	if o < 0 {
		return fmt.Errorf("storage retries must not be negative, got %d", int(o))
	}
	s.retries = int(o)
	return nil
}

func WithRetries(n int) Option {
	return retriesOption(n)
}

// httpClientOption replaces the pooled client, mostly for tests.
type httpClientOption struct{ c *http.Client }

func (o httpClientOption) apply(s *Storage) error {
	s.httpClient = o.c
	return nil
}

func WithHTTPClient(c *http.Client) Option {
	return httpClientOption{c: c}
}
