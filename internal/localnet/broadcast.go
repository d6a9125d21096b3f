package localnet

import (
	"fmt"
	"strconv"
	"strings"
)

// Broadcast computes the directed broadcast address of address/netmask by
// setting every host bit: for each octet (^mask & 0xFF) | addr.
func Broadcast(address, netmask string) (string, error) {
	addr, err := octets(address)
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	mask, err := octets(netmask)
	if err != nil {
		return "", fmt.Errorf("invalid netmask: %w", err)
	}

	out := make([]string, 4)
	for i := range addr {
		out[i] = strconv.Itoa(int((^mask[i] & 0xFF) | addr[i]))
	}
	return strings.Join(out, "."), nil
}

func octets(dotted string) ([4]uint8, error) {
	var result [4]uint8
	parts := strings.Split(strings.TrimSpace(dotted), ".")
	if len(parts) != 4 {
		return result, fmt.Errorf("%q is not a dotted-decimal IPv4 address", dotted)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return result, fmt.Errorf("%q is not a dotted-decimal IPv4 address", dotted)
		}
		result[i] = uint8(n)
	}
	return result, nil
}
