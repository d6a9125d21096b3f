package waker

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/openchami/node-waker/internal/localnet"
	"github.com/openchami/node-waker/internal/registry"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/openchami/node-waker/pkg/middleware"
)

const maxBodySize = 64 << 10

type ErrorResponse struct {
	Error   string                     `json:"error"`
	Clients []string                   `json:"clients,omitempty"`
	Details []*ValidationErrorResponse `json:"details,omitempty"`
}

// ChoiceResponse is returned when no usable network interface could be
// picked; Known, Candidates and Suggested let the caller choose one.
type ChoiceResponse struct {
	Error      string               `json:"error"`
	Requested  string               `json:"requested,omitempty"`
	Known      []string             `json:"known"`
	Candidates []localnet.Interface `json:"candidates,omitempty"`
	Suggested  string               `json:"suggested,omitempty"`
}

type WakeResponse struct {
	ID        uuid.UUID           `json:"id"`
	Client    clients.Client      `json:"client"`
	Interface *localnet.Interface `json:"interface,omitempty"`
	Awake     bool                `json:"awake"`
	Sent      bool                `json:"sent"`
	Error     string              `json:"error,omitempty"`
}

type ClientInfoResponse struct {
	IP       string         `json:"ip"`
	MAC      string         `json:"mac,omitempty"`
	Template clients.Client `json:"template"`
}

type InterfacesResponse struct {
	Names   []string            `json:"names"`
	Default *localnet.Interface `json:"default,omitempty"`
	Choice  *ChoiceResponse     `json:"choice,omitempty"`
}

func fail(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// lookupClient resolves the name query parameter. It writes the error
// response itself and returns false when there is no such client.
func lookupClient(svc *Service, w http.ResponseWriter, r *http.Request) (clients.Client, bool) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		fail(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   "missing client name",
			Clients: clients.Names(svc.Registry.List(r.Context())),
		})
		return clients.Client{}, false
	}

	c, ok := svc.Registry.Find(r.Context(), name)
	if !ok {
		fail(w, r, http.StatusNotFound, ErrorResponse{
			Error:   "unknown client " + name,
			Clients: clients.Names(svc.Registry.List(r.Context())),
		})
		return clients.Client{}, false
	}
	return c, true
}

func choiceResponse(err error) (*ChoiceResponse, bool) {
	var choice *localnet.ChoiceError
	if !errors.As(err, &choice) {
		return nil, false
	}
	return &ChoiceResponse{
		Error:      err.Error(),
		Requested:  choice.Requested,
		Known:      choice.Known,
		Candidates: choice.Candidates,
		Suggested:  choice.Suggested,
	}, true
}

func etherwake(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupClient(svc, w, r)
		if !ok {
			return
		}
		logger := middleware.Logger(r).With().Str("client", c.Name).Str("mac", c.MAC).Logger()

		ifaceName := strings.TrimSpace(r.URL.Query().Get("interface"))
		if ifaceName == "" {
			ifaceName = svc.Interface
		}
		iface, err := svc.Topology.Select(ifaceName)
		if err != nil {
			if choice, ok := choiceResponse(err); ok {
				logger.Warn().Err(err).Msg("No interface to wake from")
				fail(w, r, http.StatusConflict, choice)
				return
			}
			logger.Error().Err(err).Msg("Unable to inspect network interfaces")
			fail(w, r, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}

		resp := WakeResponse{ID: uuid.New(), Client: c, Interface: &iface}
		logger = logger.With().Str("wake_id", resp.ID.String()).Str("interface", iface.Name).Logger()

		awake, err := svc.Registry.Available(r.Context(), c)
		if err != nil {
			resp.Error = err.Error()
			fail(w, r, http.StatusUnprocessableEntity, resp)
			return
		}
		if awake {
			resp.Awake = true
			logger.Info().Msg("Client already awake")
			render.JSON(w, r, resp)
			return
		}

		if err := svc.Dispatcher.Wake(r.Context(), c.MAC, iface.Broadcast); err != nil {
			logger.Error().Err(err).Msg("Unable to send magic packet")
			resp.Error = err.Error()
			fail(w, r, http.StatusBadGateway, resp)
			return
		}
		resp.Sent = true
		logger.Info().Str("broadcast", iface.Broadcast).Msg("Wake requested")
		render.JSON(w, r, resp)
	}
}

func tcpPing(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := lookupClient(svc, w, r)
		if !ok {
			return
		}
		up, err := svc.Registry.Available(r.Context(), c)
		if err != nil {
			fail(w, r, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
			return
		}
		render.JSON(w, r, registry.Status{Client: c, Available: up})
	}
}

func activeClients(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, svc.Registry.Overview(r.Context()))
	}
}

// clientInfo tells callers who they are. RemoteAddr is already rewritten by
// chi's RealIP when the request came through a proxy.
func clientInfo(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		resp := ClientInfoResponse{IP: ip}
		if mac, ok := svc.Resolver.Lookup(r.Context(), ip); ok {
			resp.MAC = mac
		}
		resp.Template = clients.Client{MAC: resp.MAC, IP: ip, Check: clients.DefaultCheck}
		render.JSON(w, r, resp)
	}
}

func interfaces(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := svc.Topology.Names()
		if err != nil {
			fail(w, r, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		resp := InterfacesResponse{Names: names}

		iface, err := svc.Topology.Select(svc.Interface)
		switch choice, isChoice := choiceResponse(err); {
		case err == nil:
			resp.Default = &iface
		case isChoice:
			resp.Choice = choice
		default:
			fail(w, r, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		render.JSON(w, r, resp)
	}
}

// decodeClient reads a client from the body. With validate set the body is
// checked against the client schema first.
func decodeClient(svc *Service, w http.ResponseWriter, r *http.Request, validate bool) (clients.Client, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		fail(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return clients.Client{}, false
	}

	if validate {
		if errs := svc.validator.validate(body); len(errs) > 0 {
			fail(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid client", Details: errs})
			return clients.Client{}, false
		}
	}

	var c clients.Client
	if err := render.DecodeJSON(bytes.NewReader(body), &c); err != nil {
		fail(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return clients.Client{}, false
	}
	if _, err := clients.NormalizeMAC(c.MAC); err != nil {
		fail(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return clients.Client{}, false
	}
	if net.ParseIP(strings.TrimSpace(c.IP)).To4() == nil {
		fail(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid IPv4 address " + c.IP})
		return clients.Client{}, false
	}
	return c, true
}

func addClient(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := decodeClient(svc, w, r, true)
		if !ok {
			return
		}
		if _, err := c.Probe(); err != nil {
			fail(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}

		added, err := svc.Registry.Add(r.Context(), c)
		if err != nil {
			middleware.Logger(r).Error().Err(err).Str("client", c.Name).Bool("added", added).Msg("Unable to store client")
			fail(w, r, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		if !added {
			fail(w, r, http.StatusConflict, ErrorResponse{Error: "a client with this MAC and IP already exists"})
			return
		}
		render.JSON(w, r, c)
	}
}

func removeClient(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := decodeClient(svc, w, r, false)
		if !ok {
			return
		}

		removed, err := svc.Registry.Remove(r.Context(), c)
		if err != nil {
			middleware.Logger(r).Error().Err(err).Str("client", c.Name).Bool("removed", removed).Msg("Unable to remove client from store")
			fail(w, r, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
			return
		}
		if !removed {
			fail(w, r, http.StatusNotFound, ErrorResponse{Error: "no client with this MAC and IP"})
			return
		}
		render.JSON(w, r, c)
	}
}
