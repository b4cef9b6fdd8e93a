// Package responder is the handler that answers every DHCP DISCOVER and REQUEST with the same address.
package responder

import (
	"fmt"
	"net"

	"github.com/go-logr/logr"
	"github.com/usvlab/labdhcp/internal/dhcp/data"
	"github.com/usvlab/labdhcp/internal/dhcp/handler"
	"github.com/usvlab/labdhcp/internal/dhcp/packet"
)

// Handler holds the configuration details for answering DHCP requests.
type Handler struct {
	// Allocator picks the address offered to a client.
	// When nil, Config.OfferAddr is offered to everyone.
	Allocator handler.Allocator

	// Config is the address tuple used in every reply.
	Config packet.ServerConfig

	// Log is used to log messages.
	// `logr.Discard()` can be used if no logging is desired.
	Log logr.Logger

	// Destination is where replies are sent. Clients have no usable unicast
	// address yet, so this defaults to 255.255.255.255:68.
	Destination *net.UDPAddr

	// Observer, when set, is called with an Event for every DISCOVER and
	// REQUEST that is answered, after the reply was sent.
	Observer func(data.Event)
}

// SendError is returned when a reply could not be written to the network.
type SendError struct {
	Dst net.Addr
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send DHCP reply to %v: %v", e.Dst, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// BroadcastAddr is the IPv4 limited broadcast address on the DHCP client port.
func BroadcastAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4bcast, Port: packet.ClientPort}
}
