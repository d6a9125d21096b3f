package waker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/openchami/node-waker/internal/localnet"
	"github.com/openchami/node-waker/internal/probe"
	"github.com/openchami/node-waker/internal/registry"
	"github.com/openchami/node-waker/internal/storage/memory"
	"github.com/openchami/node-waker/pkg/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct{ up map[string]bool }

func (f fakeProber) Probe(_ context.Context, host string, _ int) bool { return f.up[host] }

func (f fakeProber) ProbeAll(ctx context.Context, targets []probe.Target) map[string]bool {
	out := map[string]bool{}
	for _, t := range targets {
		out[t.Key] = f.up[t.Host]
	}
	return out
}

type fakeTopology struct {
	names  []string
	ifaces map[string]localnet.Interface
	def    *localnet.Interface
	err    error
}

func (f *fakeTopology) Names() ([]string, error) { return f.names, nil }

func (f *fakeTopology) Default() (localnet.Interface, error) {
	if f.def == nil {
		return localnet.Interface{}, f.err
	}
	return *f.def, nil
}

func (f *fakeTopology) Select(name string) (localnet.Interface, error) {
	if name == "" {
		return f.Default()
	}
	if iface, ok := f.ifaces[strings.ToLower(name)]; ok {
		return iface, nil
	}
	return localnet.Interface{}, &localnet.ChoiceError{Requested: name, Known: f.names, Err: localnet.ErrInterfaceNotFound}
}

type fakeResolver map[string]string

func (f fakeResolver) Lookup(_ context.Context, ip string) (string, bool) {
	mac, ok := f[ip]
	return mac, ok
}

type wake struct{ mac, broadcast string }

type fakeDispatcher struct {
	sent []wake
	err  error
}

func (f *fakeDispatcher) Wake(_ context.Context, mac, broadcast string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, wake{mac, broadcast})
	return nil
}

var (
	desktop = clients.Client{Name: "Desktop", MAC: "e4:54:e8:a4:97:2f", IP: "192.168.1.20"}
	nas     = clients.Client{Name: "nas", MAC: "00:11:32:aa:bb:cc", IP: "192.168.1.5", Check: "tcp:22"}
	eth0    = localnet.Interface{Name: "eth0", Address: "192.168.1.54", Netmask: "255.255.255.0", Broadcast: "192.168.1.255"}
	wlan0   = localnet.Interface{Name: "wlan0", Address: "10.0.0.12", Netmask: "255.255.255.0", Broadcast: "10.0.0.255"}
)

type fixture struct {
	store      *memory.Storage
	topology   *fakeTopology
	dispatcher *fakeDispatcher
	router     http.Handler
}

func newFixture(t *testing.T, up ...string) *fixture {
	t.Helper()
	upMap := map[string]bool{}
	for _, ip := range up {
		upMap[ip] = true
	}
	f := &fixture{
		store: memory.NewStorage(desktop, nas),
		topology: &fakeTopology{
			names:  []string{"eth0", "lo", "wlan0"},
			ifaces: map[string]localnet.Interface{"eth0": eth0, "wlan0": wlan0},
			def:    &eth0,
		},
		dispatcher: &fakeDispatcher{},
	}
	svc, err := NewService(
		registry.New(f.store, fakeProber{up: upMap}),
		f.topology,
		fakeResolver{"192.168.1.77": "f8:ff:c2:12:c1:06"},
		f.dispatcher,
		"",
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Mount("/", Routes(svc, nil))
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestEtherwakeSendsPacket(t *testing.T) {
	f := newFixture(t)
	rec, out := f.do(t, http.MethodGet, "/etherwake?name=desktop", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["sent"])
	assert.Equal(t, false, out["awake"])
	assert.NotEmpty(t, out["id"])
	assert.Equal(t, []wake{{mac: desktop.MAC, broadcast: "192.168.1.255"}}, f.dispatcher.sent)
}

func TestEtherwakeExplicitInterface(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodGet, "/etherwake?name=DESKTOP&interface=wlan0", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []wake{{mac: desktop.MAC, broadcast: "10.0.0.255"}}, f.dispatcher.sent)
}

func TestEtherwakeAlreadyAwake(t *testing.T) {
	f := newFixture(t, desktop.IP)
	rec, out := f.do(t, http.MethodGet, "/etherwake?name=desktop", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["awake"])
	assert.Equal(t, false, out["sent"])
	assert.Empty(t, f.dispatcher.sent)
}

func TestEtherwakeUnknownOrMissingName(t *testing.T) {
	f := newFixture(t)

	rec, out := f.do(t, http.MethodGet, "/etherwake?name=laptop", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []any{"Desktop", "nas"}, out["clients"])

	rec, out = f.do(t, http.MethodGet, "/etherwake", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"Desktop", "nas"}, out["clients"])
	assert.Empty(t, f.dispatcher.sent)
}

func TestEtherwakeInterfaceChoice(t *testing.T) {
	f := newFixture(t)
	rec, out := f.do(t, http.MethodGet, "/etherwake?name=desktop&interface=eth9", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "eth9", out["requested"])
	assert.Equal(t, []any{"eth0", "lo", "wlan0"}, out["known"])

	f.topology.def = nil
	f.topology.err = &localnet.ChoiceError{
		Known:      f.topology.names,
		Candidates: []localnet.Interface{eth0, wlan0},
		Suggested:  "eth0",
		Err:        localnet.ErrInterfaceAmbiguous,
	}
	rec, out = f.do(t, http.MethodGet, "/etherwake?name=desktop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "eth0", out["suggested"])
	assert.Len(t, out["candidates"], 2)
	assert.Empty(t, f.dispatcher.sent)
}

func TestEtherwakeDispatchFailure(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = errors.New("network is unreachable")
	rec, out := f.do(t, http.MethodGet, "/etherwake?name=desktop", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, out["sent"])
	assert.Equal(t, "network is unreachable", out["error"])
}

func TestTCPPing(t *testing.T) {
	f := newFixture(t, nas.IP)
	rec, out := f.do(t, http.MethodGet, "/tcp-ping?name=NAS", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["available"])

	rec, out = f.do(t, http.MethodGet, "/tcp-ping?name=desktop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["available"])
}

func TestActiveClients(t *testing.T) {
	f := newFixture(t, nas.IP)
	rec, _ := f.do(t, http.MethodGet, "/activeClients", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var statuses []registry.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	assert.Equal(t, []registry.Status{
		{Client: desktop, Available: false},
		{Client: nas, Available: true},
	}, statuses)
}

func TestClientInfo(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/clientInfo", nil)
	req.Header.Set("X-Forwarded-For", "192.168.1.77")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info ClientInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "192.168.1.77", info.IP)
	assert.Equal(t, "f8:ff:c2:12:c1:06", info.MAC)
	assert.Equal(t, clients.DefaultCheck, info.Template.Check)

	// httptest requests come from 192.0.2.1, which has no ARP entry
	rec, out := f.do(t, http.MethodGet, "/clientInfo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.0.2.1", out["ip"])
	assert.NotContains(t, out, "mac")
}

func TestInterfaces(t *testing.T) {
	f := newFixture(t)
	rec, out := f.do(t, http.MethodGet, "/interfaces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"eth0", "lo", "wlan0"}, out["names"])
	assert.Equal(t, "eth0", out["default"].(map[string]any)["name"])

	f.topology.def = nil
	f.topology.err = &localnet.ChoiceError{Known: f.topology.names, Err: localnet.ErrInterfaceNotFound}
	rec, out = f.do(t, http.MethodGet, "/interfaces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, out, "default")
	assert.Contains(t, out, "choice")
}

func TestManageClients(t *testing.T) {
	f := newFixture(t)
	body := `{"name":"laptop","description":"","mac":"F8-FF-C2-12-C1-6","ip":"192.168.1.77"}`

	rec, _ := f.do(t, http.MethodPut, "/manageClients", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"Desktop", "laptop", "nas"}, clients.Names(f.store.Stored()))

	rec, _ = f.do(t, http.MethodPut, "/manageClients", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/manageClients", `{"mac":"f8:ff:c2:12:c1:06","ip":"192.168.1.77"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Desktop", "nas"}, clients.Names(f.store.Stored()))

	rec, _ = f.do(t, http.MethodDelete, "/manageClients", `{"mac":"f8:ff:c2:12:c1:06","ip":"192.168.1.77"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManageClientsRejectsInvalidBodies(t *testing.T) {
	f := newFixture(t)
	for name, body := range map[string]string{
		"not json":      `{`,
		"missing name":  `{"mac":"f8:ff:c2:12:c1:06","ip":"192.168.1.77"}`,
		"bad ip":        `{"name":"x","mac":"f8:ff:c2:12:c1:06","ip":"192.168.1"}`,
		"bad mac":       `{"name":"x","mac":"zz:ff:c2:12:c1:06","ip":"192.168.1.77"}`,
		"bad check":     `{"name":"x","mac":"f8:ff:c2:12:c1:06","ip":"192.168.1.77","check":"tcp:99999"}`,
		"unknown field": `{"name":"x","mac":"f8:ff:c2:12:c1:06","ip":"192.168.1.77","port":1}`,
	} {
		rec, out := f.do(t, http.MethodPut, "/manageClients", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.NotEmpty(t, out["error"], name)
	}
	_, saves := f.store.Calls()
	assert.Zero(t, saves)
}

func TestClientSchema(t *testing.T) {
	schema := ClientSchema()
	assert.ElementsMatch(t, []string{"name", "mac", "ip"}, schema.Required)
}
