package packet

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// ServerConfig is the fixed address tuple handed to every client.
type ServerConfig struct {
	// ServerAddr is sent as siaddr, option 54 (server identifier) and option 3 (router).
	ServerAddr netip.Addr
	// OfferAddr is the one address offered to any client, sent as yiaddr.
	OfferAddr netip.Addr
	// SubnetMask is sent as option 1.
	SubnetMask net.IPMask
	// LeaseTime in seconds, sent as option 51.
	LeaseTime uint32
}

// Validate returns an error if the config cannot be encoded into a reply.
func (c ServerConfig) Validate() error {
	var errs []error
	if !c.ServerAddr.Unmap().Is4() {
		errs = append(errs, fmt.Errorf("server address %q is not an IPv4 address", c.ServerAddr))
	}
	if !c.OfferAddr.Unmap().Is4() {
		errs = append(errs, fmt.Errorf("offer address %q is not an IPv4 address", c.OfferAddr))
	}
	if len(c.SubnetMask) != net.IPv4len {
		errs = append(errs, fmt.Errorf("subnet mask %q is not an IPv4 mask", c.SubnetMask))
	} else if ones, bits := c.SubnetMask.Size(); ones == 0 && bits == 0 {
		errs = append(errs, fmt.Errorf("subnet mask %v is not in canonical form", net.IP(c.SubnetMask)))
	}

	return errors.Join(errs...)
}
