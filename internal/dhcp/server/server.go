// Package server provides UDP listening and serving functionality.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/insomniacslk/dhcp/dhcpv4/server4"
	"github.com/usvlab/labdhcp/internal/dhcp/data"
	"github.com/usvlab/labdhcp/internal/dhcp/packet"
	"github.com/usvlab/labdhcp/internal/metric"
	"golang.org/x/net/ipv4"
)

// DefaultPollInterval bounds how long a blocked receive waits before the
// context is checked again.
const DefaultPollInterval = time.Second

// Handler is called with every datagram that decodes as a DHCP message.
type Handler interface {
	Handle(ctx context.Context, conn *ipv4.PacketConn, p data.Packet) error
}

// BindError is returned when the listening socket cannot be created.
type BindError struct {
	IfName string
	Addr   *net.UDPAddr
	Err    error
}

func (e *BindError) Error() string {
	if e.IfName != "" {
		return fmt.Sprintf("unable to bind DHCP server to %v on %v: %v", e.Addr, e.IfName, e.Err)
	}
	return fmt.Sprintf("unable to bind DHCP server to %v: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// DHCP represents a DHCPv4 server object.
//
// Datagrams are processed one at a time in the order they are received; the
// handlers run on the Serve goroutine.
type DHCP struct {
	Conn     net.PacketConn
	Handlers []Handler
	Logger   logr.Logger
	// PollInterval is the read deadline used for each receive.
	// Zero means DefaultPollInterval.
	PollInterval time.Duration
}

// NewServer binds addr, with SO_BROADCAST and SO_REUSEADDR set, and returns a
// server ready to Serve. When ifname is not empty the socket is bound to that
// interface. Failure is reported as a *BindError.
func NewServer(ifname string, addr *net.UDPAddr, handler ...Handler) (*DHCP, error) {
	conn, err := server4.NewIPv4UDPConn(ifname, addr)
	if err != nil {
		return nil, &BindError{IfName: ifname, Addr: addr, Err: err}
	}

	return &DHCP{
		Conn:     conn,
		Handlers: handler,
		Logger:   logr.Discard(),
	}, nil
}

// Serve reads datagrams until ctx is done or the connection is closed. The
// connection is closed when Serve returns. Errors are only returned when the
// connection cannot be set up for reading.
func (s *DHCP) Serve(ctx context.Context) error {
	if s.Logger.GetSink() == nil {
		s.Logger = logr.Discard()
	}
	poll := s.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	s.Logger.Info("Server listening on", "addr", s.Conn.LocalAddr())

	nConn := ipv4.NewPacketConn(s.Conn)
	defer func() {
		_ = nConn.Close()
	}()
	if err := nConn.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		s.Logger.Info("error setting control message", "err", err)
		return err
	}

	// Max UDP packet size is 65535. Max DHCPv4 packet size is 576. An ethernet frame is 1500 bytes.
	// The buffer is reused as datagrams are handled synchronously and decoding copies what it keeps.
	rbuf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := nConn.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}
		n, cm, peer, err := nConn.ReadFrom(rbuf)
		if err != nil {
			if s.stopOnReadError(ctx, err) {
				return nil
			}
			continue
		}
		s.dispatch(ctx, nConn, rbuf[:n], cm, peer)
	}
}

// stopOnReadError reports whether Serve should return after a failed receive.
// Only cancellation and a closed connection end the loop; deadline expiry is
// the normal poll and anything else is logged and the next receive is tried.
func (s *DHCP) stopOnReadError(ctx context.Context, err error) bool {
	var ne net.Error
	switch {
	case ctx.Err() != nil:
		return true
	case errors.Is(err, net.ErrClosed):
		s.Logger.Info("packet conn closed, stopping", "addr", s.Conn.LocalAddr())
		return true
	case errors.As(err, &ne) && ne.Timeout():
		return false
	}
	s.Logger.Error(err, "error reading from packet conn")
	metric.DHCPTotal.WithLabelValues("drop", "read_error").Inc()

	return false
}

// dispatch decodes one datagram and runs the handlers on it. Errors never
// escape; the receive loop carries on with the next datagram.
func (s *DHCP) dispatch(ctx context.Context, conn *ipv4.PacketConn, b []byte, cm *ipv4.ControlMessage, peer net.Addr) {
	m, err := packet.DecodeRequest(b)
	if err != nil {
		s.Logger.V(1).Info("dropping datagram", "peer", peer, "err", err)
		metric.DHCPTotal.WithLabelValues("drop", "malformed").Inc()
		return
	}

	md := &data.Metadata{}
	if cm != nil {
		md.IfIndex = cm.IfIndex
		if n, err := net.InterfaceByIndex(cm.IfIndex); err == nil {
			md.IfName = n.Name
		}
	}

	p := data.Packet{Peer: peer, Pkt: m, Md: md}
	for _, h := range s.Handlers {
		if err := h.Handle(ctx, conn, p); err != nil {
			s.Logger.Error(err, "handling DHCP packet", "mac", m.HardwareAddr().String(), "type", m.MessageType.String())
		}
	}
}

// Close closes the UDP listener.
func (s *DHCP) Close() error {
	return s.Conn.Close()
}
