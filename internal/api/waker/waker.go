// Package waker is the JSON API in front of the client registry: it lists
// and manages clients, probes them and wakes them up.
package waker

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/openchami/node-waker/internal/localnet"
	"github.com/openchami/node-waker/internal/registry"
	"github.com/openchami/node-waker/pkg/clients"
)

type Registry interface {
	List(ctx context.Context) []clients.Client
	Find(ctx context.Context, name string) (clients.Client, bool)
	Add(ctx context.Context, c clients.Client) (bool, error)
	Remove(ctx context.Context, c clients.Client) (bool, error)
	Available(ctx context.Context, c clients.Client) (bool, error)
	Overview(ctx context.Context) []registry.Status
}

type Topology interface {
	Names() ([]string, error)
	Default() (localnet.Interface, error)
	Select(name string) (localnet.Interface, error)
}

type Resolver interface {
	Lookup(ctx context.Context, ip string) (string, bool)
}

type Dispatcher interface {
	Wake(ctx context.Context, mac, broadcast string) error
}

// Service bundles what the handlers need. Interface is the interface used
// for wake packets when the request does not name one; empty means the
// detected default.
type Service struct {
	Registry   Registry
	Topology   Topology
	Resolver   Resolver
	Dispatcher Dispatcher
	Interface  string

	validator *validator
}

func NewService(reg Registry, topo Topology, resolver Resolver, dispatcher Dispatcher, iface string) (*Service, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &Service{
		Registry:   reg,
		Topology:   topo,
		Resolver:   resolver,
		Dispatcher: dispatcher,
		Interface:  iface,
		validator:  v,
	}, nil
}

// Routes mounts the API. authMiddlewares guard the routes that change the
// client list.
func Routes(svc *Service, authMiddlewares []func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(authMiddlewares...).Put("/manageClients", addClient(svc))
	r.With(authMiddlewares...).Delete("/manageClients", removeClient(svc))

	r.Get("/etherwake", etherwake(svc))
	r.Get("/tcp-ping", tcpPing(svc))
	r.Get("/activeClients", activeClients(svc))
	r.Get("/clientInfo", clientInfo(svc))
	r.Get("/interfaces", interfaces(svc))

	return r
}
