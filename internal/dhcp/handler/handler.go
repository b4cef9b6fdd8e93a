// Package handler holds the interface that address backends implement and DHCP handlers take in.
package handler

import (
	"context"
	"net"
	"net/netip"
)

// Allocator decides which address a client is offered.
//
// Backends implement this interface to hand addresses to the DHCP handlers.
type Allocator interface {
	// Allocate returns the address to offer the client identified by mac.
	Allocate(context.Context, net.HardwareAddr) (netip.Addr, error)
}
