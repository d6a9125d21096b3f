// Package wol sends Wake-on-LAN magic packets.
package wol

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/openchami/node-waker/pkg/clients"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultPort is the discard port conventionally used for wake packets.
	DefaultPort = 9
	// PacketSize is 6 bytes of 0xFF followed by 16 copies of the MAC.
	PacketSize = 6 + 16*6
)

// WakeError reports that the packet could not be handed to the network stack.
type WakeError struct {
	MAC    string
	Target string
	Err    error
}

func (e *WakeError) Error() string {
	return fmt.Sprintf("wake %s via %s: %v", e.MAC, e.Target, e.Err)
}

func (e *WakeError) Unwrap() error { return e.Err }

// MagicPacket builds the 102 byte wake payload for mac.
func MagicPacket(mac string) ([]byte, error) {
	hw, err := clients.ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	packet := make([]byte, 0, PacketSize)
	packet = append(packet, bytes.Repeat([]byte{0xFF}, 6)...)
	for i := 0; i < 16; i++ {
		packet = append(packet, hw...)
	}
	return packet, nil
}

// Dispatcher sends magic packets as UDP datagrams.
type Dispatcher struct {
	port int
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

func NewDispatcher(port int) *Dispatcher {
	if port <= 0 {
		port = DefaultPort
	}
	return &Dispatcher{
		port: port,
		dial: (&net.Dialer{}).DialContext,
	}
}

// Wake sends one magic packet for mac to the broadcast address. A nil error
// only means the datagram was sent; whether the host wakes up is unknown.
func (d *Dispatcher) Wake(ctx context.Context, mac, broadcast string) error {
	target := net.JoinHostPort(broadcast, strconv.Itoa(d.port))

	packet, err := MagicPacket(mac)
	if err != nil {
		return &WakeError{MAC: mac, Target: target, Err: err}
	}

	conn, err := d.dial(ctx, "udp4", target)
	if err != nil {
		return &WakeError{MAC: mac, Target: target, Err: err}
	}
	defer conn.Close()

	n, err := conn.Write(packet)
	if err != nil {
		return &WakeError{MAC: mac, Target: target, Err: err}
	}
	if n != len(packet) {
		return &WakeError{MAC: mac, Target: target, Err: fmt.Errorf("short write: %d of %d bytes", n, len(packet))}
	}

	log.Info().Str("mac", mac).Str("target", target).Msg("Magic packet sent")
	return nil
}
