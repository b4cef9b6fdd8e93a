package packet

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/insomniacslk/dhcp/dhcpv4"
)

var testConfig = ServerConfig{
	ServerAddr: netip.MustParseAddr("10.0.0.1"),
	OfferAddr:  netip.MustParseAddr("10.0.0.100"),
	SubnetMask: net.IPv4Mask(255, 255, 255, 0),
	LeaseTime:  3600,
}

func TestEncodeReplyBytes(t *testing.T) {
	xid := TransactionID{0x01, 0x02, 0x03, 0x04}
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

	want := make([]byte, HeaderLen)
	want[0], want[1], want[2] = 2, 1, 6
	copy(want[4:], []byte{0x01, 0x02, 0x03, 0x04})
	copy(want[16:], []byte{10, 0, 0, 100})
	copy(want[20:], []byte{10, 0, 0, 1})
	copy(want[28:], []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})
	want = append(want,
		0x63, 0x82, 0x53, 0x63,
		53, 1, 2,
		54, 4, 10, 0, 0, 1,
		51, 4, 0x00, 0x00, 0x0e, 0x10,
		1, 4, 255, 255, 255, 0,
		3, 4, 10, 0, 0, 1,
		255,
	)

	got := EncodeReply(xid, mac, MessageTypeOffer, testConfig)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}
	if len(got) != ReplyLen || ReplyLen != 268 {
		t.Fatalf("expected %d bytes, got %d", 268, len(got))
	}
}

func TestEncodeReplyRoundTrip(t *testing.T) {
	tests := map[string]struct {
		xid    TransactionID
		mac    [6]byte
		mt     MessageType
		wantMT dhcpv4.MessageType
	}{
		"offer": {xid: TransactionID{1, 2, 3, 4}, mac: [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, mt: MessageTypeOffer, wantMT: dhcpv4.MessageTypeOffer},
		"ack":   {xid: TransactionID{0xff, 0, 0xff, 0}, mac: [6]byte{0, 1, 2, 3, 4, 5}, mt: MessageTypeAck, wantMT: dhcpv4.MessageTypeAck},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b := EncodeReply(tt.xid, tt.mac[:], tt.mt, testConfig)

			// our own header view
			if b[0] != byte(OpcodeBootReply) {
				t.Fatalf("expected op 2, got %d", b[0])
			}
			var xid TransactionID
			copy(xid[:], b[4:8])
			if diff := cmp.Diff(tt.xid, xid); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(tt.mac[:], b[28:34]); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(make([]byte, 10), b[34:44]); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff([]byte{10, 0, 0, 100}, b[16:20]); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff([]byte{10, 0, 0, 1}, b[20:24]); diff != "" {
				t.Fatal(diff)
			}
			opts := ParseOptions(b[MinLen:])
			if diff := cmp.Diff([]byte{byte(tt.mt)}, opts.Get(OptionDHCPMessageType)); diff != "" {
				t.Fatal(diff)
			}

			// an independent decoder
			d, err := dhcpv4.FromBytes(b)
			if err != nil {
				t.Fatal(err)
			}
			if d.OpCode != dhcpv4.OpcodeBootReply {
				t.Fatalf("expected BootReply, got %v", d.OpCode)
			}
			if diff := cmp.Diff(dhcpv4.TransactionID(tt.xid), d.TransactionID); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(net.HardwareAddr(tt.mac[:]).String(), d.ClientHWAddr.String()); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(tt.wantMT, d.MessageType()); diff != "" {
				t.Fatal(diff)
			}
			if !d.YourIPAddr.Equal(net.IPv4(10, 0, 0, 100)) {
				t.Fatalf("yiaddr: got %v", d.YourIPAddr)
			}
			if !d.ServerIPAddr.Equal(net.IPv4(10, 0, 0, 1)) {
				t.Fatalf("siaddr: got %v", d.ServerIPAddr)
			}
			if !d.ServerIdentifier().Equal(net.IPv4(10, 0, 0, 1)) {
				t.Fatalf("server identifier: got %v", d.ServerIdentifier())
			}
			if diff := cmp.Diff(time.Hour, d.IPAddressLeaseTime(0)); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(net.IPv4Mask(255, 255, 255, 0).String(), d.SubnetMask().String()); diff != "" {
				t.Fatal(diff)
			}
			routers := d.Router()
			if len(routers) != 1 || !routers[0].Equal(net.IPv4(10, 0, 0, 1)) {
				t.Fatalf("router: got %v", routers)
			}
		})
	}
}

func TestEncodeReplyFromRequest(t *testing.T) {
	xid := [4]byte{0x01, 0x02, 0x03, 0x04}
	mac := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	tests := map[string]struct {
		in   MessageType
		want MessageType
	}{
		"discover gets offer": {in: MessageTypeDiscover, want: MessageTypeOffer},
		"request gets ack":    {in: MessageTypeRequest, want: MessageTypeAck},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := DecodeRequest(request(xid, mac, 53, 1, byte(tt.in), 255))
			if err != nil {
				t.Fatal(err)
			}
			reply, err := DecodeRequest(EncodeReply(m.TransactionID, m.HardwareAddr(), tt.want, testConfig))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(m.TransactionID, reply.TransactionID); diff != "" {
				t.Fatal(diff)
			}
			if diff := cmp.Diff(m.ClientHWAddr, reply.ClientHWAddr); diff != "" {
				t.Fatal(diff)
			}
			if reply.Op != OpcodeBootReply {
				t.Fatalf("expected op 2, got %v", reply.Op)
			}
			if reply.MessageType != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, reply.MessageType)
			}
		})
	}
}

func TestEncodeReplyNonIPv4(t *testing.T) {
	cfg := testConfig
	cfg.ServerAddr = netip.MustParseAddr("fe80::1")
	b := EncodeReply(TransactionID{}, nil, MessageTypeAck, cfg)
	if diff := cmp.Diff(make([]byte, 4), b[20:24]); diff != "" {
		t.Fatal(diff)
	}
	if len(b) != ReplyLen {
		t.Fatalf("expected %d bytes, got %d", ReplyLen, len(b))
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := map[string]struct {
		cfg     ServerConfig
		wantErr bool
	}{
		"valid": {cfg: testConfig},
		"ipv4 mapped": {cfg: ServerConfig{
			ServerAddr: netip.MustParseAddr("::ffff:10.0.0.1"),
			OfferAddr:  netip.MustParseAddr("10.0.0.100"),
			SubnetMask: net.IPv4Mask(255, 255, 255, 0),
		}},
		"zero server": {cfg: ServerConfig{
			OfferAddr:  netip.MustParseAddr("10.0.0.100"),
			SubnetMask: net.IPv4Mask(255, 255, 255, 0),
		}, wantErr: true},
		"ipv6 offer": {cfg: ServerConfig{
			ServerAddr: netip.MustParseAddr("10.0.0.1"),
			OfferAddr:  netip.MustParseAddr("2001:db8::1"),
			SubnetMask: net.IPv4Mask(255, 255, 255, 0),
		}, wantErr: true},
		"no mask": {cfg: ServerConfig{
			ServerAddr: netip.MustParseAddr("10.0.0.1"),
			OfferAddr:  netip.MustParseAddr("10.0.0.100"),
		}, wantErr: true},
		"non canonical mask": {cfg: ServerConfig{
			ServerAddr: netip.MustParseAddr("10.0.0.1"),
			OfferAddr:  netip.MustParseAddr("10.0.0.100"),
			SubnetMask: net.IPv4Mask(255, 0, 255, 0),
		}, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr %v, got %v", tt.wantErr, err)
			}
		})
	}
}
