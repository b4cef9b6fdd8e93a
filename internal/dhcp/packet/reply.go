package packet

import (
	"encoding/binary"
	"net"
	"net/netip"
)

// EncodeReply builds an OFFER or ACK for the request identified by xid and chaddr.
//
// The header has op=2, htype=1, hlen=6, the given xid, yiaddr=cfg.OfferAddr,
// siaddr=cfg.ServerAddr and chaddr; every other header field is zero. The
// options are, in order: 53 (mt), 54 (server), 51 (lease), 1 (mask), 3
// (router) and End. The result is always ReplyLen bytes.
func EncodeReply(xid TransactionID, chaddr net.HardwareAddr, mt MessageType, cfg ServerConfig) []byte {
	b := make([]byte, HeaderLen, ReplyLen)
	b[offOp] = byte(OpcodeBootReply)
	b[offHType] = htypeEthernet
	b[offHLen] = hlenEthernet
	copy(b[offXID:offXID+4], xid[:])
	putAddr(b[offYIAddr:offYIAddr+4], cfg.OfferAddr)
	putAddr(b[offSIAddr:offSIAddr+4], cfg.ServerAddr)
	copy(b[offCHAddr:offCHAddr+hlenEthernet], chaddr)

	server := addr4(cfg.ServerAddr)
	var mask [4]byte
	copy(mask[:], cfg.SubnetMask)
	var lease [4]byte
	binary.BigEndian.PutUint32(lease[:], cfg.LeaseTime)

	b = append(b, magicCookie[:]...)
	b = appendOption(b, OptionDHCPMessageType, byte(mt))
	b = appendOption(b, OptionServerIdentifier, server[:]...)
	b = appendOption(b, OptionIPAddressLeaseTime, lease[:]...)
	b = appendOption(b, OptionSubnetMask, mask[:]...)
	b = appendOption(b, OptionRouter, server[:]...)

	return append(b, byte(OptionEnd))
}

func appendOption(b []byte, c OptionCode, v ...byte) []byte {
	b = append(b, byte(c), byte(len(v)))
	return append(b, v...)
}

// addr4 returns the 4 byte form of a, or 0.0.0.0 when a is not IPv4.
func addr4(a netip.Addr) [4]byte {
	a = a.Unmap()
	if !a.Is4() {
		return [4]byte{}
	}
	return a.As4()
}

func putAddr(dst []byte, a netip.Addr) {
	v := addr4(a)
	copy(dst, v[:])
}
