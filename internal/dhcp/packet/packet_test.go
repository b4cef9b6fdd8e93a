package packet

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/insomniacslk/dhcp/dhcpv4"
)

// request builds a minimal BOOTREQUEST with the given options area appended after the cookie.
func request(xid [4]byte, mac [6]byte, opts ...byte) []byte {
	b := make([]byte, HeaderLen)
	b[0] = byte(OpcodeBootRequest)
	b[1] = 1
	b[2] = 6
	copy(b[4:8], xid[:])
	copy(b[28:34], mac[:])
	b = append(b, 0x63, 0x82, 0x53, 0x63)
	return append(b, opts...)
}

func TestDecodeRequest(t *testing.T) {
	xid := [4]byte{0x01, 0x02, 0x03, 0x04}
	mac := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	tests := map[string]struct {
		input   []byte
		want    *Message
		wantErr bool
	}{
		"discover": {
			input: request(xid, mac, 53, 1, 1, 255),
			want: &Message{
				Op:            OpcodeBootRequest,
				TransactionID: xid,
				ClientHWAddr:  mac,
				MessageType:   MessageTypeDiscover,
				Options:       Options{OptionDHCPMessageType: {1}},
			},
		},
		"request": {
			input: request(xid, mac, 53, 1, 3, 50, 4, 10, 0, 0, 100, 255),
			want: &Message{
				Op:            OpcodeBootRequest,
				TransactionID: xid,
				ClientHWAddr:  mac,
				MessageType:   MessageTypeRequest,
				Options:       Options{OptionDHCPMessageType: {3}, 50: {10, 0, 0, 100}},
			},
		},
		"no options": {
			input: request(xid, mac),
			want: &Message{
				Op:            OpcodeBootRequest,
				TransactionID: xid,
				ClientHWAddr:  mac,
				MessageType:   MessageTypeNone,
				Options:       Options{},
			},
		},
		"empty message type option": {
			input: request(xid, mac, 53, 0, 255),
			want: &Message{
				Op:            OpcodeBootRequest,
				TransactionID: xid,
				ClientHWAddr:  mac,
				MessageType:   MessageTypeNone,
				Options:       Options{OptionDHCPMessageType: {}},
			},
		},
		"truncated options": {
			input: request(xid, mac, 53, 1, 1, 61, 7, 1),
			want: &Message{
				Op:            OpcodeBootRequest,
				TransactionID: xid,
				ClientHWAddr:  mac,
				MessageType:   MessageTypeDiscover,
				Options:       Options{OptionDHCPMessageType: {1}},
			},
		},
		"too short":       {input: make([]byte, 100), wantErr: true},
		"one byte short":  {input: request(xid, mac)[:MinLen-1], wantErr: true},
		"empty":           {input: nil, wantErr: true},
		"bad magic cookie": {input: func() []byte {
			b := request(xid, mac, 53, 1, 1, 255)
			b[239] = 0x64
			return b
		}(), wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeRequest(tt.input)
			if tt.wantErr {
				if !IsFormatError(err) {
					t.Fatalf("expected a FormatError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestDecodeRequestFromDHCPv4(t *testing.T) {
	mac := net.HardwareAddr{0x00, 0x1b, 0x21, 0x3c, 0x4d, 0x5e}
	xid := dhcpv4.TransactionID{0xde, 0xad, 0xbe, 0xef}
	d, err := dhcpv4.NewDiscovery(mac, dhcpv4.WithTransactionID(xid))
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeRequest(d.ToBytes())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(TransactionID(xid), got.TransactionID); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(mac, got.HardwareAddr()); diff != "" {
		t.Fatal(diff)
	}
	if got.MessageType != MessageTypeDiscover {
		t.Fatalf("expected DISCOVER, got %v", got.MessageType)
	}

	d.UpdateOption(dhcpv4.OptMessageType(dhcpv4.MessageTypeRequest))
	got, err = DecodeRequest(d.ToBytes())
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageType != MessageTypeRequest {
		t.Fatalf("expected REQUEST, got %v", got.MessageType)
	}
}

func TestFormatError(t *testing.T) {
	err := fmt.Errorf("reading: %w", &FormatError{Len: 100, Reason: "shorter than 240 bytes"})
	if !IsFormatError(err) {
		t.Fatal("expected wrapped FormatError to be detected")
	}
	if IsFormatError(errors.New("other")) {
		t.Fatal("unexpected FormatError")
	}
	want := "reading: malformed DHCP packet (100 bytes): shorter than 240 bytes"
	if diff := cmp.Diff(want, err.Error()); diff != "" {
		t.Fatal(diff)
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := map[MessageType]string{
		MessageTypeNone:     "NONE",
		MessageTypeDiscover: "DISCOVER",
		MessageTypeRequest:  "REQUEST",
		MessageTypeOffer:    "OFFER",
		MessageTypeAck:      "ACK",
		MessageType(42):     "UNKNOWN (42)",
	}
	for mt, want := range tests {
		if diff := cmp.Diff(want, mt.String()); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestTransactionIDString(t *testing.T) {
	if diff := cmp.Diff("0x01020304", TransactionID{1, 2, 3, 4}.String()); diff != "" {
		t.Fatal(diff)
	}
}
