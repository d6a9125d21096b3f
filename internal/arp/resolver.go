// Package arp looks up the MAC address of a host on the local link by asking
// the operating system's address-resolution table.
package arp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound is returned when the table has no usable entry for the IP.
	ErrNotFound = errors.New("ip not found in arp table")
	// ErrUnsupportedPlatform is returned on platforms without a parser.
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform: %w", ErrNotFound)
)

// ResolutionError describes a failed lookup. It matches ErrNotFound when the
// utility ran but did not list the address.
type ResolutionError struct {
	IP       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("resolving %s: arp exited with %d: %s", e.IP, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("resolving %s: %v", e.IP, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Family is the platform flavour whose arp output we know how to read.
type Family string

const (
	BSD     Family = "bsd"
	Linux   Family = "linux"
	Windows Family = "windows"
	Unknown Family = "unknown"
)

// FamilyOf maps a GOOS value to the arp flavour it ships.
func FamilyOf(goos string) Family {
	switch goos {
	case "darwin", "freebsd", "openbsd", "netbsd", "dragonfly":
		return BSD
	case "linux", "android":
		return Linux
	case "windows":
		return Windows
	default:
		return Unknown
	}
}

// Runner executes an external command and reports its output and exit code.
// A non-nil error means the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return nil, nil, -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

// strategy is one platform's way to ask for and read an arp entry.
type strategy struct {
	args  func(ip string) []string
	parse func(output, ip string) (string, error)
}

var strategies = map[Family]strategy{
	BSD: {
		args:  func(ip string) []string { return []string{"-n", ip} },
		parse: parseBSD,
	},
	Linux: {
		args:  func(ip string) []string { return []string{"-n", ip} },
		parse: parseLinux,
	},
	Windows: {
		args:  func(ip string) []string { return []string{"-a", ip} },
		parse: parseWindows,
	},
}

// Resolver resolves IPv4 addresses to MAC addresses.
type Resolver struct {
	family    Family
	command   string
	runner    Runner
	neighbour func(ip string) (string, error)
}

type Option func(*Resolver)

// WithFamily overrides the platform detected from runtime.GOOS.
func WithFamily(f Family) Option {
	return func(r *Resolver) { r.family = f }
}

// WithRunner replaces the subprocess runner.
func WithRunner(runner Runner) Option {
	return func(r *Resolver) { r.runner = runner }
}

// WithCommand changes the name of the arp binary.
func WithCommand(name string) Option {
	return func(r *Resolver) { r.command = name }
}

// WithNeighbourTable sets the lookup used when the arp binary is missing.
func WithNeighbourTable(fn func(ip string) (string, error)) Option {
	return func(r *Resolver) { r.neighbour = fn }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		family:    FamilyOf(runtime.GOOS),
		command:   "arp",
		runner:    execRunner{},
		neighbour: neighbourLookup,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Family reports the platform flavour the resolver parses.
func (r *Resolver) Family() Family {
	return r.family
}

// Resolve returns the canonical MAC address of ip.
func (r *Resolver) Resolve(ctx context.Context, ip string) (string, error) {
	ip = strings.TrimSpace(ip)
	s, ok := strategies[r.family]
	if !ok {
		return "", ErrUnsupportedPlatform
	}

	stdout, stderr, code, err := r.runner.Run(ctx, r.command, s.args(ip)...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) && r.family == Linux && r.neighbour != nil {
			log.Debug().Str("ip", ip).Msg("arp binary not found, reading neighbour table")
			return r.neighbour(ip)
		}
		return "", &ResolutionError{IP: ip, ExitCode: -1, Err: err}
	}

	errText := strings.TrimSpace(string(stderr))
	if code != 0 && errText != "" {
		return "", &ResolutionError{IP: ip, ExitCode: code, Stderr: errText, Err: fmt.Errorf("arp exited with %d", code)}
	}

	mac, err := s.parse(string(stdout), ip)
	if err != nil {
		return "", &ResolutionError{IP: ip, ExitCode: code, Err: err}
	}
	return mac, nil
}

// Lookup is Resolve for callers that only care whether the MAC is known.
// Failures are logged and reported as false.
func (r *Resolver) Lookup(ctx context.Context, ip string) (string, bool) {
	mac, err := r.Resolve(ctx, ip)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Str("family", string(r.family)).Msg("Could not resolve mac address")
		return "", false
	}
	return mac, true
}
