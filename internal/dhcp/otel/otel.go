// Package otel handles translating DHCP headers and options to otel key/value attributes.
package otel

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/go-logr/logr"
	"github.com/usvlab/labdhcp/internal/dhcp/packet"
	"go.opentelemetry.io/otel/attribute"
)

const keyNamespace = "DHCP"

// EncoderFunc turns one field of a DHCP message into an attribute.
type EncoderFunc func(m *packet.Message, namespace string) (attribute.KeyValue, error)

// Encoder holds the otel key/value attributes.
type Encoder struct {
	Log logr.Logger
}

type notFoundError struct {
	optName string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("%q not found in DHCP packet", e.optName)
}

func (e *notFoundError) found() bool {
	return true
}

type found interface {
	found() bool
}

// OptNotFound returns true if err is an option not found error.
func OptNotFound(err error) bool {
	te, ok := err.(found)
	return ok && te.found()
}

// Encode runs a slice of encoders against a DHCP message turning the values into opentelemetry attribute key/value pairs.
func (e *Encoder) Encode(m *packet.Message, namespace string, encoders ...EncoderFunc) []attribute.KeyValue {
	if e.Log.GetSink() == nil {
		e.Log = logr.Discard()
	}
	var attrs []attribute.KeyValue
	for _, elem := range encoders {
		kv, err := elem(m, namespace)
		if err != nil {
			e.Log.V(2).Info("opentelemetry attribute not added", "error", fmt.Sprintf("%v", err))
			continue
		}
		attrs = append(attrs, kv)
	}

	return attrs
}

// AllEncoders returns a slice of all available DHCP otel encoders.
func AllEncoders() []EncoderFunc {
	return []EncoderFunc{
		EncodeOpcode, EncodeTransactionID, EncodeCHADDR,
		EncodeOpt1, EncodeOpt3, EncodeOpt51,
		EncodeOpt53, EncodeOpt54,
	}
}

// EncodeOpcode takes the op header from a DHCP message and returns an OTEL key/value pair.
func EncodeOpcode(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	key := fmt.Sprintf("%v.%v.Header.op", keyNamespace, namespace)
	if m != nil {
		return attribute.String(key, m.Op.String()), nil
	}

	return attribute.KeyValue{}, &notFoundError{optName: key}
}

// EncodeTransactionID takes the xid header from a DHCP message and returns an OTEL key/value pair.
func EncodeTransactionID(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	key := fmt.Sprintf("%v.%v.Header.transactionID", keyNamespace, namespace)
	if m != nil {
		return attribute.String(key, m.TransactionID.String()), nil
	}

	return attribute.KeyValue{}, &notFoundError{optName: key}
}

// EncodeCHADDR takes the chaddr header from a DHCP message and returns an OTEL key/value pair.
func EncodeCHADDR(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	key := fmt.Sprintf("%v.%v.Header.chaddr", keyNamespace, namespace)
	if m != nil {
		return attribute.String(key, m.HardwareAddr().String()), nil
	}

	return attribute.KeyValue{}, &notFoundError{optName: key}
}

// EncodeOpt1 takes DHCP Opt 1 from a DHCP message and returns an OTEL key/value pair.
// See https://www.iana.org/assignments/bootp-dhcp-parameters/bootp-dhcp-parameters.xhtml
func EncodeOpt1(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	return encodeIPv4Opt(m, namespace, "Opt1.SubnetMask", packet.OptionSubnetMask)
}

// EncodeOpt3 takes DHCP Opt 3 from a DHCP message and returns an OTEL key/value pair.
func EncodeOpt3(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	return encodeIPv4Opt(m, namespace, "Opt3.DefaultGateway", packet.OptionRouter)
}

// EncodeOpt51 takes DHCP Opt 51 from a DHCP message and returns an OTEL key/value pair.
func EncodeOpt51(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	opt := "Opt51.LeaseTime"
	key := fmt.Sprintf("%v.%v.%v", keyNamespace, namespace, opt)
	if m != nil {
		if v := m.Options.Get(packet.OptionIPAddressLeaseTime); len(v) == 4 {
			return attribute.Int64(key, int64(binary.BigEndian.Uint32(v))), nil
		}
	}

	return attribute.KeyValue{}, &notFoundError{optName: opt}
}

// EncodeOpt53 takes DHCP Opt 53 from a DHCP message and returns an OTEL key/value pair.
func EncodeOpt53(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	opt := "Opt53.MessageType"
	key := fmt.Sprintf("%v.%v.%v", keyNamespace, namespace, opt)
	if m != nil && m.Options.Has(packet.OptionDHCPMessageType) {
		return attribute.String(key, m.MessageType.String()), nil
	}

	return attribute.KeyValue{}, &notFoundError{optName: opt}
}

// EncodeOpt54 takes DHCP Opt 54 from a DHCP message and returns an OTEL key/value pair.
func EncodeOpt54(m *packet.Message, namespace string) (attribute.KeyValue, error) {
	return encodeIPv4Opt(m, namespace, "Opt54.ServerIdentifier", packet.OptionServerIdentifier)
}

func encodeIPv4Opt(m *packet.Message, namespace, opt string, code packet.OptionCode) (attribute.KeyValue, error) {
	key := fmt.Sprintf("%v.%v.%v", keyNamespace, namespace, opt)
	if m != nil {
		if v := m.Options.Get(code); len(v) == net.IPv4len {
			return attribute.String(key, net.IP(v).String()), nil
		}
	}

	return attribute.KeyValue{}, &notFoundError{optName: opt}
}
