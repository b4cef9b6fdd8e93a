// Package static is an address backend that hands the same address to every client.
package static

import (
	"context"
	"errors"
	"net"
	"net/netip"
)

var errNoAddress = errors.New("static backend has no IPv4 address configured")

// Backend always allocates Addr, whatever the client.
type Backend struct {
	Addr netip.Addr
}

// Allocate returns b.Addr.
func (b Backend) Allocate(context.Context, net.HardwareAddr) (netip.Addr, error) {
	a := b.Addr.Unmap()
	if !a.Is4() {
		return netip.Addr{}, errNoAddress
	}

	return a, nil
}
