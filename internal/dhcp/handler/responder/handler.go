package responder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/go-logr/logr"
	"github.com/usvlab/labdhcp/internal/backend/static"
	"github.com/usvlab/labdhcp/internal/dhcp/data"
	oteldhcp "github.com/usvlab/labdhcp/internal/dhcp/otel"
	"github.com/usvlab/labdhcp/internal/dhcp/packet"
	"github.com/usvlab/labdhcp/internal/metric"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/ipv4"
)

const tracerName = "github.com/usvlab/labdhcp"

// setDefaults will update the Handler struct to have default values so as
// to avoid panic for nil pointers and such.
func (h *Handler) setDefaults() {
	if h.Allocator == nil {
		h.Allocator = static.Backend{Addr: h.Config.OfferAddr}
	}
	if h.Log.GetSink() == nil {
		h.Log = logr.Discard()
	}
	if h.Destination == nil {
		h.Destination = BroadcastAddr()
	}
}

// Handle answers a DISCOVER with an OFFER and a REQUEST with an ACK. Any other
// message type is ignored and nil is returned.
//
// A reply is written exactly once. If the write fails a *SendError is returned.
// Returned errors are not logged here; that is left to the caller.
func (h *Handler) Handle(ctx context.Context, conn *ipv4.PacketConn, p data.Packet) error {
	h.setDefaults()
	if p.Pkt == nil {
		return errors.New("incoming packet is nil")
	}
	if conn == nil {
		return errors.New("connection is nil")
	}

	var replyType packet.MessageType
	switch p.Pkt.MessageType {
	case packet.MessageTypeDiscover:
		replyType = packet.MessageTypeOffer
	case packet.MessageTypeRequest:
		replyType = packet.MessageTypeAck
	default:
		metric.DHCPTotal.WithLabelValues("drop", "ignored").Inc()
		return nil
	}
	start := time.Now()
	metric.DHCPTotal.WithLabelValues("recv", p.Pkt.MessageType.String()).Inc()

	var ifName string
	if p.Md != nil {
		ifName = p.Md.IfName
	}
	mac := p.Pkt.HardwareAddr()
	log := h.Log.WithValues("mac", mac.String(), "xid", p.Pkt.TransactionID.String(), "interface", ifName)

	tracer := otel.Tracer(tracerName)
	var span trace.Span
	ctx, span = tracer.Start(
		ctx,
		fmt.Sprintf("DHCP Packet Received: %v", p.Pkt.MessageType.String()),
		trace.WithAttributes(h.encodeToAttributes(p.Pkt, "request")...),
		trace.WithAttributes(attribute.String("DHCP.server.ifname", ifName)),
	)
	defer span.End()
	if p.Peer != nil {
		span.SetAttributes(attribute.String("DHCP.peer", p.Peer.String()))
	}

	log.Info("received DHCP packet", "type", p.Pkt.MessageType.String())
	offer, err := h.allocate(ctx, mac)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("allocating address for %v: %w", mac, err)
	}
	cfg := h.Config
	cfg.OfferAddr = offer

	reply := packet.EncodeReply(p.Pkt.TransactionID, mac, replyType, cfg)
	log = log.WithValues("type", replyType.String(), "ipAddress", offer.String(), "destination", h.Destination.String())

	cm := &ipv4.ControlMessage{}
	if p.Md != nil {
		cm.IfIndex = p.Md.IfIndex
	}
	if _, err := conn.WriteTo(reply, cm, h.Destination); err != nil {
		serr := &SendError{Dst: h.Destination, Err: err}
		span.SetStatus(codes.Error, serr.Error())
		metric.DHCPTotal.WithLabelValues("send_error", replyType.String()).Inc()

		return serr
	}

	ev := data.Event{MAC: mac, Kind: p.Pkt.MessageType, Offered: offer}
	log.Info("sent DHCP response", "request", ev.Kind.String())
	metric.DHCPTotal.WithLabelValues("send", replyType.String()).Inc()
	metric.DHCPDuration.WithLabelValues(p.Pkt.MessageType.String()).Observe(time.Since(start).Seconds())
	if m, err := packet.DecodeRequest(reply); err == nil {
		span.SetAttributes(h.encodeToAttributes(m, "reply")...)
	}
	span.SetAttributes(ev.EncodeToAttributes()...)
	span.SetStatus(codes.Ok, "sent DHCP response")
	if h.Observer != nil {
		h.Observer(ev)
	}

	return nil
}

// allocate encapsulates the allocator call and opentelemetry handling.
func (h *Handler) allocate(ctx context.Context, mac net.HardwareAddr) (netip.Addr, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "Address allocation")
	defer span.End()

	a, err := h.Allocator.Allocate(ctx, mac)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())

		return a, err
	}
	span.SetAttributes(attribute.String("DHCP.allocated", a.String()))
	span.SetStatus(codes.Ok, "allocated address")

	return a, nil
}

// encodeToAttributes takes a DHCP message and returns opentelemetry key/value attributes.
func (h *Handler) encodeToAttributes(m *packet.Message, namespace string) []attribute.KeyValue {
	a := &oteldhcp.Encoder{Log: h.Log}

	return a.Encode(m, namespace, oteldhcp.AllEncoders()...)
}
