package clients

import (
	"sort"
	"strings"
)

// Client is a host that can be woken up. Name is the lookup key and is
// compared case-insensitively; (MAC, IP) identifies the entry for duplicate
// detection and deletion.
type Client struct {
	Name        string `json:"name" jsonschema:"required,minLength=1"`
	Description string `json:"description"`
	MAC         string `json:"mac" jsonschema:"required,minLength=11,maxLength=17"`
	IP          string `json:"ip" jsonschema:"required,format=ipv4"`
	Check       string `json:"check,omitempty" jsonschema:"pattern=^[A-Za-z]+:[0-9]+$"`
}

// Key is the identity of a client in the registry.
type Key struct {
	MAC string
	IP  string
}

// Key returns the (mac, ip) pair of the client. The MAC is canonicalised when
// it parses so that "E4:54:E8:A4:97:2F" and "e4:54:e8:a4:97:2f" collide.
func (c Client) Key() Key {
	mac, err := NormalizeMAC(c.MAC)
	if err != nil {
		mac = strings.ToLower(strings.TrimSpace(c.MAC))
	}
	return Key{MAC: mac, IP: strings.TrimSpace(c.IP)}
}

func (k Key) String() string {
	return k.MAC + "@" + k.IP
}

// Probe returns the parsed check of the client, defaulting to tcp:3389.
func (c Client) Probe() (ProbeSpec, error) {
	return ParseProbeSpec(c.Check)
}

// SameName reports whether name refers to this client.
func (c Client) SameName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name))
}

// SortByName orders clients by name, ascending and case-insensitive. Equal
// names keep their relative order.
func SortByName(list []Client) {
	sort.SliceStable(list, func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
}

// Names returns the client names in list order.
func Names(list []Client) []string {
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	return names
}
