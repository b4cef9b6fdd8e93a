package packet

import "fmt"

// OptionCode is a DHCP option code.
type OptionCode uint8

// https://www.iana.org/assignments/bootp-dhcp-parameters/bootp-dhcp-parameters.xhtml
const (
	OptionPad                OptionCode = 0
	OptionSubnetMask         OptionCode = 1
	OptionRouter             OptionCode = 3
	OptionIPAddressLeaseTime OptionCode = 51
	OptionDHCPMessageType    OptionCode = 53
	OptionServerIdentifier   OptionCode = 54
	OptionEnd                OptionCode = 255
)

func (c OptionCode) String() string {
	switch c {
	case OptionPad:
		return "Pad"
	case OptionSubnetMask:
		return "Subnet Mask"
	case OptionRouter:
		return "Router"
	case OptionIPAddressLeaseTime:
		return "IP Addresses Lease Time"
	case OptionDHCPMessageType:
		return "DHCP Message Type"
	case OptionServerIdentifier:
		return "Server Identifier"
	case OptionEnd:
		return "End"
	}
	return fmt.Sprintf("unknown (%d)", uint8(c))
}

// Options maps an option code to its raw payload.
type Options map[OptionCode][]byte

// Get returns the payload of option c, or nil if it is not present.
func (o Options) Get(c OptionCode) []byte {
	return o[c]
}

// Has returns true if option c is present.
func (o Options) Has(c OptionCode) bool {
	_, ok := o[c]
	return ok
}

// ParseOptions scans the options area that follows the magic cookie.
//
// Pad (0) advances one byte and End (255) stops the scan. Every other code is
// read as code, length, payload. A code that appears more than once keeps the
// last payload. If the data ends inside a length byte or a payload the scan
// stops there and the options read so far are returned.
func ParseOptions(b []byte) Options {
	opts := Options{}
	for i := 0; i < len(b); {
		code := OptionCode(b[i])
		switch code {
		case OptionEnd:
			return opts
		case OptionPad:
			i++
			continue
		}
		if i+1 >= len(b) {
			return opts
		}
		l := int(b[i+1])
		start, end := i+2, i+2+l
		if end > len(b) {
			return opts
		}
		opts[code] = append([]byte{}, b[start:end]...)
		i = end
	}

	return opts
}
