//go:build linux

package arp

import (
	"net"

	"github.com/openchami/node-waker/pkg/clients"
	"github.com/vishvananda/netlink"
)

// neighbourLookup reads the kernel neighbour table directly. It is used on
// minimal systems that ship without an arp binary.
func neighbourLookup(ip string) (string, error) {
	target := net.ParseIP(ip)
	if target == nil {
		return "", &ResolutionError{IP: ip, ExitCode: -1, Err: ErrNotFound}
	}

	neighs, err := netlink.NeighList(0, netlink.FAMILY_V4)
	if err != nil {
		return "", &ResolutionError{IP: ip, ExitCode: -1, Err: err}
	}

	for _, n := range neighs {
		if !n.IP.Equal(target) || len(n.HardwareAddr) == 0 {
			continue
		}
		if n.State&(netlink.NUD_INCOMPLETE|netlink.NUD_FAILED) != 0 {
			continue
		}
		mac, err := clients.NormalizeMAC(n.HardwareAddr.String())
		if err != nil {
			continue
		}
		return mac, nil
	}
	return "", &ResolutionError{IP: ip, ExitCode: -1, Err: ErrNotFound}
}
