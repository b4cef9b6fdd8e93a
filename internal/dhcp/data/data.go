// Package data holds the types passed between the DHCP server loop and its handlers.
package data

import (
	"net"
	"net/netip"

	"github.com/usvlab/labdhcp/internal/dhcp/packet"
	"go.opentelemetry.io/otel/attribute"
)

// Packet holds the data that is passed to a DHCP handler.
type Packet struct {
	// Peer is the address of the client that sent the DHCP message.
	Peer net.Addr
	// Pkt is the decoded DHCP message.
	Pkt *packet.Message
	// Md is the metadata about where the message was received.
	Md *Metadata
}

// Metadata holds metadata about the DHCP packet that was received.
type Metadata struct {
	// IfName is the name of the interface that the DHCP message was received on.
	IfName string
	// IfIndex is the index of the interface that the DHCP message was received on.
	IfIndex int
}

// Event is reported for every DISCOVER or REQUEST that a handler answers.
type Event struct {
	// MAC is the client hardware address from the request.
	MAC net.HardwareAddr
	// Kind is the message type of the request, DISCOVER or REQUEST.
	Kind packet.MessageType
	// Offered is the address handed to the client in yiaddr.
	Offered netip.Addr
}

// EncodeToAttributes returns a slice of opentelemetry attributes that can be used to set span.SetAttributes.
func (e Event) EncodeToAttributes() []attribute.KeyValue {
	var ip string
	if e.Offered.IsValid() {
		ip = e.Offered.String()
	}

	return []attribute.KeyValue{
		attribute.String("DHCP.MACAddress", e.MAC.String()),
		attribute.String("DHCP.Kind", e.Kind.String()),
		attribute.String("DHCP.Offered", ip),
	}
}
