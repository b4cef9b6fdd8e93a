// Package packet encodes and decodes the BOOTP/DHCPv4 wire format.
//
// Only the parts of RFC 2131/2132 needed to answer DISCOVER and REQUEST
// messages are implemented. Inbound datagrams are decoded into a Message and
// replies are built directly as bytes with EncodeReply.
package packet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
)

// Wire layout constants. See https://www.rfc-editor.org/rfc/rfc2131#section-2
const (
	// HeaderLen is the length of the fixed BOOTP header, up to and excluding the magic cookie.
	HeaderLen = 236
	// MinLen is the shortest datagram that can hold a DHCP message: the header plus the magic cookie.
	MinLen = HeaderLen + len(magicCookie)
	// ReplyLen is the length of every reply built by EncodeReply.
	ReplyLen = MinLen + 3 + 6 + 6 + 6 + 6 + 1

	// ServerPort is the UDP port DHCP servers listen on.
	ServerPort = 67
	// ClientPort is the UDP port DHCP clients listen on.
	ClientPort = 68
)

// Header field offsets.
const (
	offOp     = 0
	offHType  = 1
	offHLen   = 2
	offXID    = 4
	offYIAddr = 16
	offSIAddr = 20
	offCHAddr = 28
	offCookie = HeaderLen
)

// magicCookie marks the start of the options area.
var magicCookie = [4]byte{0x63, 0x82, 0x53, 0x63}

// MagicCookie returns the 4 byte DHCP magic cookie.
func MagicCookie() [4]byte {
	return magicCookie
}

// Opcode is the BOOTP op header field.
type Opcode uint8

const (
	OpcodeBootRequest Opcode = 1
	OpcodeBootReply   Opcode = 2
)

func (o Opcode) String() string {
	switch o {
	case OpcodeBootRequest:
		return "BootRequest"
	case OpcodeBootReply:
		return "BootReply"
	}
	return fmt.Sprintf("unknown (%d)", uint8(o))
}

// hardware type and address length for Ethernet.
const (
	htypeEthernet = 1
	hlenEthernet  = 6
)

// TransactionID is the 4 byte xid header field. It is opaque to the server and
// is echoed back unchanged.
type TransactionID [4]byte

// String returns the transaction id as a hex number, e.g. "0x01020304".
func (x TransactionID) String() string {
	return "0x" + hex.EncodeToString(x[:])
}

// MessageType is the value of DHCP option 53.
type MessageType uint8

// https://www.rfc-editor.org/rfc/rfc2132#section-9.6
const (
	// MessageTypeNone is used when option 53 is missing.
	MessageTypeNone     MessageType = 0
	MessageTypeDiscover MessageType = 1
	MessageTypeOffer    MessageType = 2
	MessageTypeRequest  MessageType = 3
	MessageTypeDecline  MessageType = 4
	MessageTypeAck      MessageType = 5
	MessageTypeNak      MessageType = 6
	MessageTypeRelease  MessageType = 7
	MessageTypeInform   MessageType = 8
)

var messageTypeToString = map[MessageType]string{
	MessageTypeNone:     "NONE",
	MessageTypeDiscover: "DISCOVER",
	MessageTypeOffer:    "OFFER",
	MessageTypeRequest:  "REQUEST",
	MessageTypeDecline:  "DECLINE",
	MessageTypeAck:      "ACK",
	MessageTypeNak:      "NAK",
	MessageTypeRelease:  "RELEASE",
	MessageTypeInform:   "INFORM",
}

func (m MessageType) String() string {
	if s, ok := messageTypeToString[m]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN (%d)", uint8(m))
}

// Message is a decoded inbound DHCP message.
type Message struct {
	Op            Opcode
	TransactionID TransactionID
	// ClientHWAddr is the first 6 bytes of the 16 byte chaddr field.
	ClientHWAddr [6]byte
	MessageType  MessageType
	Options      Options
}

// HardwareAddr returns the client hardware address as a net.HardwareAddr.
func (m *Message) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), m.ClientHWAddr[:]...))
}

// FormatError is returned when a datagram is not a DHCP message.
// Datagrams that produce a FormatError must be dropped without a reply.
type FormatError struct {
	// Len is the length of the offending datagram.
	Len    int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed DHCP packet (%d bytes): %s", e.Len, e.Reason)
}

// IsFormatError returns true if err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// DecodeRequest decodes a datagram received on the server port.
//
// The datagram must be at least MinLen bytes long and carry the magic cookie at
// offset 236, otherwise a *FormatError is returned. A missing option 53 yields
// MessageTypeNone.
func DecodeRequest(b []byte) (*Message, error) {
	if len(b) < MinLen {
		return nil, &FormatError{Len: len(b), Reason: fmt.Sprintf("shorter than %d bytes", MinLen)}
	}
	if !bytes.Equal(b[offCookie:offCookie+4], magicCookie[:]) {
		return nil, &FormatError{Len: len(b), Reason: fmt.Sprintf("bad magic cookie %x", b[offCookie:offCookie+4])}
	}

	m := &Message{
		Op:      Opcode(b[offOp]),
		Options: ParseOptions(b[MinLen:]),
	}
	copy(m.TransactionID[:], b[offXID:offXID+4])
	copy(m.ClientHWAddr[:], b[offCHAddr:offCHAddr+6])
	if v := m.Options.Get(OptionDHCPMessageType); len(v) > 0 {
		m.MessageType = MessageType(v[0])
	}

	return m, nil
}
