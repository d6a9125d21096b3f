// Package localnet enumerates the local network interfaces and picks the one
// wake packets are broadcast on.
package localnet

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/jackpal/gateway"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoInterfaceName    = errors.New("no network interface name given")
	ErrInterfaceNotFound  = errors.New("network interface not found")
	ErrInterfaceAmbiguous = errors.New("network interface is ambiguous")
)

// MAC prefixes of virtual adapters that never carry the physical LAN.
var virtualPrefixes = []string{
	"02:42",    // docker bridge
	"00:15:5d", // Hyper-V
}

// Interface is an IPv4 address of a local interface together with the
// broadcast address derived from it.
type Interface struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Netmask   string `json:"netmask"`
	Broadcast string `json:"broadcast"`
}

// ChoiceError means the caller has to name an interface explicitly. Known
// lists every interface name; Candidates lists the usable ones when the
// default was ambiguous.
type ChoiceError struct {
	Requested  string      `json:"requested,omitempty"`
	Known      []string    `json:"known"`
	Candidates []Interface `json:"candidates,omitempty"`
	Suggested  string      `json:"suggested,omitempty"`
	Err        error       `json:"-"`
}

func (e *ChoiceError) Error() string {
	switch {
	case e.Requested != "":
		return fmt.Sprintf("%v: %q (known: %s)", e.Err, e.Requested, strings.Join(e.Known, ", "))
	case errors.Is(e.Err, ErrNoInterfaceName):
		return fmt.Sprintf("%v (known: %s)", e.Err, strings.Join(e.Known, ", "))
	case len(e.Candidates) > 1:
		names := make([]string, 0, len(e.Candidates))
		for _, c := range e.Candidates {
			names = append(names, c.Name+"/"+c.Address)
		}
		return fmt.Sprintf("%v: %d candidates (%s)", e.Err, len(e.Candidates), strings.Join(names, ", "))
	default:
		return fmt.Sprintf("%v: no external IPv4 interface", e.Err)
	}
}

func (e *ChoiceError) Unwrap() error { return e.Err }

// Link is the subset of a network interface the topology looks at.
type Link struct {
	Name         string
	HardwareAddr net.HardwareAddr
	Flags        net.Flags
	Addrs        []*net.IPNet
}

// Source lists the local links.
type Source interface {
	Links() ([]Link, error)
}

type systemSource struct{}

func (systemSource) Links() ([]Link, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(ifaces))
	for _, iface := range ifaces {
		link := Link{Name: iface.Name, HardwareAddr: iface.HardwareAddr, Flags: iface.Flags}
		addrs, err := iface.Addrs()
		if err != nil {
			log.Warn().Err(err).Str("interface", iface.Name).Msg("Error listing interface addresses")
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				link.Addrs = append(link.Addrs, ipnet)
			}
		}
		links = append(links, link)
	}
	return links, nil
}

// Topology answers questions about the local interfaces. The default
// interface is looked up on first use and kept for the life of the value.
type Topology struct {
	source  Source
	gateway func() (net.IP, error)

	mu  sync.Mutex
	def *Interface
}

type Option func(*Topology)

func WithSource(s Source) Option {
	return func(t *Topology) { t.source = s }
}

// WithGateway sets how the default gateway is discovered. It is only used to
// suggest an interface when the default is ambiguous.
func WithGateway(fn func() (net.IP, error)) Option {
	return func(t *Topology) { t.gateway = fn }
}

func New(opts ...Option) *Topology {
	t := &Topology{
		source:  systemSource{},
		gateway: gateway.DiscoverGateway,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Names returns the sorted names of all local interfaces.
func (t *Topology) Names() ([]string, error) {
	links, err := t.source.Links()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	return linkNames(links), nil
}

// Identify returns the first IPv4 address of the named interface. Names are
// trimmed and matched case-insensitively. When there is no such interface, or
// it has no IPv4 address, the error is a *ChoiceError listing the known names.
func (t *Topology) Identify(name string) (Interface, error) {
	links, err := t.source.Links()
	if err != nil {
		return Interface{}, fmt.Errorf("listing interfaces: %w", err)
	}

	requested := strings.ToLower(strings.TrimSpace(name))
	if requested == "" {
		return Interface{}, &ChoiceError{Known: linkNames(links), Err: ErrNoInterfaceName}
	}
	for _, link := range links {
		if !strings.EqualFold(link.Name, requested) {
			continue
		}
		for _, ipnet := range link.Addrs {
			if iface, ok := describe(link.Name, ipnet); ok {
				return iface, nil
			}
		}
	}

	return Interface{}, &ChoiceError{Requested: name, Known: linkNames(links), Err: ErrInterfaceNotFound}
}

// Default returns the single external IPv4 interface of the host. Zero or
// several candidates yield a *ChoiceError; only a successful pick is cached.
func (t *Topology) Default() (Interface, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.def != nil {
		return *t.def, nil
	}

	links, err := t.source.Links()
	if err != nil {
		log.Warn().Err(err).Msg("Error determining network interfaces")
		return Interface{}, fmt.Errorf("listing interfaces: %w", err)
	}

	var candidates []Interface
	var networks []*net.IPNet
	for _, link := range links {
		if !external(link) {
			continue
		}
		for _, ipnet := range link.Addrs {
			if iface, ok := describe(link.Name, ipnet); ok {
				candidates = append(candidates, iface)
				networks = append(networks, ipnet)
			}
		}
	}

	log.Debug().Interface("candidates", candidates).Msg("External IPv4 interfaces")

	if len(candidates) != 1 {
		choice := &ChoiceError{Known: linkNames(links), Candidates: candidates, Err: ErrInterfaceNotFound}
		if len(candidates) > 1 {
			choice.Err = ErrInterfaceAmbiguous
			choice.Suggested = t.suggest(candidates, networks)
		}
		log.Info().Strs("interfaces", choice.Known).Int("candidates", len(candidates)).Msg("Could not identify a default network interface")
		return Interface{}, choice
	}

	t.def = &candidates[0]
	log.Info().Str("interface", t.def.Name).Str("address", t.def.Address).Str("broadcast", t.def.Broadcast).Msg("Selected default network interface")
	return *t.def, nil
}

// Select returns the named interface, or the default one when name is empty.
func (t *Topology) Select(name string) (Interface, error) {
	if strings.TrimSpace(name) == "" {
		return t.Default()
	}
	return t.Identify(name)
}

func (t *Topology) suggest(candidates []Interface, networks []*net.IPNet) string {
	if t.gateway == nil {
		return ""
	}
	gw, err := t.gateway()
	if err != nil {
		log.Debug().Err(err).Msg("Could not discover default gateway")
		return ""
	}
	for i, nw := range networks {
		if nw.Contains(gw) {
			return candidates[i].Name
		}
	}
	return ""
}

func external(link Link) bool {
	if link.Flags&net.FlagLoopback != 0 || isZero(link.HardwareAddr) {
		return false
	}
	mac := strings.ToLower(link.HardwareAddr.String())
	for _, prefix := range virtualPrefixes {
		if strings.HasPrefix(mac, prefix) {
			return false
		}
	}
	return true
}

func describe(name string, ipnet *net.IPNet) (Interface, bool) {
	ip4 := ipnet.IP.To4()
	if ip4 == nil {
		return Interface{}, false
	}
	mask := ipnet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return Interface{}, false
	}

	address := ip4.String()
	netmask := net.IP(mask).String()
	broadcast, err := Broadcast(address, netmask)
	if err != nil {
		return Interface{}, false
	}
	return Interface{Name: name, Address: address, Netmask: netmask, Broadcast: broadcast}, true
}

func isZero(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}

func linkNames(links []Link) []string {
	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.Name)
	}
	sort.Strings(names)
	return names
}
