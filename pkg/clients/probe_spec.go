package clients

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultCheck is used for clients without a check; 3389 is RDP.
const DefaultCheck = "tcp:3389"

// ProbeSpec tells how to decide whether a client is already up.
type ProbeSpec struct {
	Protocol string `json:"protocol"`
	Port     int    `json:"port"`
}

func (p ProbeSpec) String() string {
	return p.Protocol + ":" + strconv.Itoa(p.Port)
}

// ParseProbeSpec parses "protocol:port". Only tcp is supported.
func ParseProbeSpec(check string) (ProbeSpec, error) {
	check = strings.TrimSpace(check)
	if check == "" {
		check = DefaultCheck
	}

	parts := strings.Split(check, ":")
	if len(parts) != 2 {
		return ProbeSpec{}, fmt.Errorf("wrong format for check %q, expecting protocol:port", check)
	}

	protocol := strings.ToLower(parts[0])
	if protocol != "tcp" {
		return ProbeSpec{}, fmt.Errorf("unsupported check protocol %q, only tcp is allowed", parts[0])
	}

	if parts[1] == "" || strings.TrimLeft(parts[1], "0123456789") != "" {
		return ProbeSpec{}, fmt.Errorf("wrong port %q in check", parts[1])
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return ProbeSpec{}, fmt.Errorf("wrong port %q in check", parts[1])
	}

	return ProbeSpec{Protocol: protocol, Port: port}, nil
}
