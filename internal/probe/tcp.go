// Package probe checks whether a host is up by opening a TCP connection.
package probe

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = time.Second

// Target is one host:port to probe. Key identifies the result.
type Target struct {
	Key  string
	Host string
	Port int
}

// Prober opens TCP connections with a per-attempt timeout.
type Prober struct {
	timeout time.Duration
	dialer  func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		timeout: timeout,
		dialer:  (&net.Dialer{}).DialContext,
	}
}

// Timeout is the per-probe connect timeout.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// Probe reports whether a TCP connection to host:port can be established
// within the timeout. The connection is closed right away; nothing is sent.
// Every failure, including a timeout, is reported as false.
func (p *Prober) Probe(ctx context.Context, host string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	start := time.Now()
	conn, err := p.dialer(ctx, "tcp", address)
	if err != nil {
		log.Debug().Err(err).Str("address", address).Dur("elapsed", time.Since(start)).Msg("TCP probe failed")
		return false
	}
	_ = conn.Close()
	log.Debug().Str("address", address).Dur("elapsed", time.Since(start)).Msg("TCP probe succeeded")
	return true
}

// ProbeAll probes every target concurrently. Results are keyed by
// Target.Key; their order of completion is unspecified.
func (p *Prober) ProbeAll(ctx context.Context, targets []Target) map[string]bool {
	results := make(map[string]bool, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			up := p.Probe(gctx, target.Host, target.Port)
			mu.Lock()
			results[target.Key] = up
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Probe is a one-off check with the given timeout.
func Probe(ctx context.Context, host string, port int, timeout time.Duration) bool {
	return NewProber(timeout).Probe(ctx, host, port)
}
