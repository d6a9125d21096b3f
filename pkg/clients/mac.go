package clients

import (
	"fmt"
	"net"
	"strings"
)

// NormalizeMAC returns the canonical form of a 48-bit MAC address: six
// lower-case, zero-padded hex octets separated by colons. Octets may be given
// with one or two digits and separated by ':' or '-', which covers the output
// of every arp flavour we parse ("f8:ff:c2:12:c1:6", "50-67-f0-8c-7a-3f").
func NormalizeMAC(mac string) (string, error) {
	s := strings.TrimSpace(mac)
	if s == "" {
		return "", fmt.Errorf("empty mac address")
	}
	s = strings.ReplaceAll(s, "-", ":")

	octets := strings.Split(s, ":")
	if len(octets) != 6 {
		return "", fmt.Errorf("invalid mac address %q: expected 6 octets, got %d", mac, len(octets))
	}
	for i, o := range octets {
		if len(o) == 0 || len(o) > 2 || !isHex(o) {
			return "", fmt.Errorf("invalid mac address %q: bad octet %q", mac, o)
		}
		if len(o) == 1 {
			o = "0" + o
		}
		octets[i] = strings.ToLower(o)
	}
	return strings.Join(octets, ":"), nil
}

// ParseMAC normalizes mac and returns its six bytes.
func ParseMAC(mac string) (net.HardwareAddr, error) {
	canonical, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	return net.ParseMAC(canonical)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
