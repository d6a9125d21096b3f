// Package registry holds the list of wakeable clients, cached in memory in
// front of a storage backend.
package registry

import (
	"context"
	"slices"
	"sync"

	"github.com/openchami/node-waker/internal/probe"
	"github.com/openchami/node-waker/internal/storage"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/rs/zerolog/log"
)

// Prober checks whether hosts are reachable.
type Prober interface {
	Probe(ctx context.Context, host string, port int) bool
	ProbeAll(ctx context.Context, targets []probe.Target) map[string]bool
}

// Status is a client together with the outcome of its check.
type Status struct {
	Client    clients.Client `json:"client"`
	Available bool           `json:"available"`
}

// Registry serialises every read and write of the client list. The mutex
// is held across refresh, mutation and persist so a reload never
// interleaves with an Add or Remove.
type Registry struct {
	mu     sync.Mutex
	store  storage.ClientStorage
	prober Prober

	cache  []clients.Client
	loaded bool
}

func New(store storage.ClientStorage, prober Prober) *Registry {
	return &Registry{store: store, prober: prober}
}

// Backend names the storage the registry reads from.
func (r *Registry) Backend() string {
	return r.store.String()
}

// refresh reloads the cache when the backend reports a change. On failure
// the cache is left as it was. Callers hold r.mu.
func (r *Registry) refresh(ctx context.Context) error {
	if r.loaded && !r.store.Stale(ctx) {
		return nil
	}
	list, err := r.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Str("backend", r.store.String()).Msg("Unable to load clients, keeping cached list")
		return err
	}
	clients.SortByName(list)
	r.cache = list
	r.loaded = true
	return nil
}

// List returns all clients sorted by name.
func (r *Registry) List(ctx context.Context) []clients.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.refresh(ctx)
	return slices.Clone(r.cache)
}

// Find looks a client up by name, ignoring case.
func (r *Registry) Find(ctx context.Context, name string) (clients.Client, bool) {
	for _, c := range r.List(ctx) {
		if c.SameName(name) {
			return c, true
		}
	}
	return clients.Client{}, false
}

// Add stores c unless a client with the same MAC and IP exists, in which
// case it returns false and nothing is written. When the stored list cannot
// be reloaded Add returns false with the load error and writes nothing, so
// a list it has not seen is never overwritten. With added true, a non-nil
// error means the list could not be persisted; the client is still added
// in memory.
func (r *Registry) Add(ctx context.Context, c clients.Client) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.refresh(ctx); err != nil {
		return false, err
	}

	key := c.Key()
	for _, existing := range r.cache {
		if existing.Key() == key {
			log.Debug().Str("client", c.Name).Str("key", key.String()).Msg("Client already registered")
			return false, nil
		}
	}

	r.cache = append(r.cache, c)
	clients.SortByName(r.cache)
	log.Info().Str("client", c.Name).Str("key", key.String()).Msg("Client added")
	return true, r.persist(ctx)
}

// Remove deletes every client with the MAC and IP of c. It returns false
// when there was none, and false with the load error when the stored list
// cannot be reloaded.
func (r *Registry) Remove(ctx context.Context, c clients.Client) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.refresh(ctx); err != nil {
		return false, err
	}

	key := c.Key()
	remaining := make([]clients.Client, 0, len(r.cache))
	for _, existing := range r.cache {
		if existing.Key() != key {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == len(r.cache) {
		return false, nil
	}

	log.Info().Str("key", key.String()).Int("removed", len(r.cache)-len(remaining)).Msg("Client removed")
	r.cache = remaining
	return true, r.persist(ctx)
}

func (r *Registry) persist(ctx context.Context) error {
	if err := r.store.Save(ctx, slices.Clone(r.cache)); err != nil {
		log.Error().Err(err).Str("backend", r.store.String()).Msg("Unable to persist clients")
		return err
	}
	return nil
}

// Available runs the check of c against its IP. An invalid check is an
// error; an unreachable host is not.
func (r *Registry) Available(ctx context.Context, c clients.Client) (bool, error) {
	spec, err := c.Probe()
	if err != nil {
		return false, err
	}
	return r.prober.Probe(ctx, c.IP, spec.Port), nil
}

// Overview lists every client with its availability. Checks run
// concurrently; clients with an invalid check are reported unavailable.
func (r *Registry) Overview(ctx context.Context) []Status {
	list := r.List(ctx)

	targets := make([]probe.Target, 0, len(list))
	for _, c := range list {
		spec, err := c.Probe()
		if err != nil {
			log.Warn().Err(err).Str("client", c.Name).Msg("Skipping client with invalid check")
			continue
		}
		targets = append(targets, probe.Target{Key: c.Key().String(), Host: c.IP, Port: spec.Port})
	}
	results := r.prober.ProbeAll(ctx, targets)

	statuses := make([]Status, 0, len(list))
	for _, c := range list {
		statuses = append(statuses, Status{Client: c, Available: results[c.Key().String()]})
	}
	return statuses
}
