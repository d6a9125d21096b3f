//go:build !linux

package arp

func neighbourLookup(ip string) (string, error) {
	return "", &ResolutionError{IP: ip, ExitCode: -1, Err: ErrUnsupportedPlatform}
}
