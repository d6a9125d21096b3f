package arp

import (
	"fmt"
	"strings"

	"github.com/openchami/node-waker/pkg/clients"
)

// parseBSD reads the macOS/BSD format:
//
//	? (192.168.1.1) at f8:ff:c2:12:c1:6 on en0 ifscope [ethernet]
//	? (192.168.1.9) -- no entry
func parseBSD(output, ip string) (string, error) {
	marker := "(" + ip + ")"
	for _, line := range splitLines(output) {
		if !strings.Contains(line, marker) {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 || parts[2] != "at" {
			return "", ErrNotFound
		}
		return canonical(parts[3])
	}
	return "", ErrNotFound
}

// parseLinux reads both the net-tools table
//
//	Address                  HWtype  HWaddress           Flags Mask            Iface
//	192.168.1.1              ether   50:67:f0:8c:7a:3f   C                     eth0
//
// and the BusyBox one-liner
//
//	? (172.17.0.1) at 02:42:de:1a:a4:39 [ether]  on eth0
func parseLinux(output, ip string) (string, error) {
	lines := splitLines(output)
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "Address") {
		for _, line := range lines[1:] {
			parts := strings.Fields(line)
			if len(parts) < 2 || parts[0] != ip {
				continue
			}
			if len(parts) == 5 {
				return canonical(parts[2])
			}
			return canonical(parts[1])
		}
		return "", ErrNotFound
	}

	marker := "(" + ip + ")"
	for _, line := range lines {
		if !strings.Contains(line, marker) {
			continue
		}
		parts := strings.Fields(line)
		for i, part := range parts {
			if part == "at" && i+1 < len(parts) {
				return canonical(parts[i+1])
			}
		}
	}
	return "", ErrNotFound
}

// parseWindows reads the table printed by "arp -a":
//
//	Interface: 192.168.1.54 --- 0x4
//	  Internet Address      Physical Address      Type
//	  192.168.1.1           50-67-f0-8c-7a-3f     dynamic
func parseWindows(output, ip string) (string, error) {
	lines := splitLines(output)
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "Interface:") {
			start = i + 2
			break
		}
	}
	if start < 0 {
		return "", ErrNotFound
	}

	for _, line := range lines[min(start, len(lines)):] {
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[0] == ip {
			return canonical(strings.ReplaceAll(parts[1], "-", ":"))
		}
	}
	return "", ErrNotFound
}

func canonical(token string) (string, error) {
	mac, err := clients.NormalizeMAC(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return mac, nil
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
