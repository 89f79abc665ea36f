package header

import (
	"encoding/binary"

	"github.com/YaoZengzeng/sockbridge/types"
)

const (
	versTCFL   = 0
	payloadLen = 4
	nextHdr    = 6
	hopLimit   = 7
	v6SrcAddr  = 8
	v6DstAddr  = 24
)

// IPv6Fields contains the fields of an IPv6 packet. It is used to describe the
// fields of a packet that needs to be encoded
type IPv6Fields struct {
	// TrafficClass is the "traffic class" field of an IPv6 packet
	TrafficClass uint8

	// FlowLabel is the "flow label" field of an IPv6 packet
	FlowLabel uint32

	// PayloadLength is the "payload length" field of an IPv6 packet
	PayloadLength uint16

	// NextHeader is the "next header" field of an IPv6 packet
	NextHeader uint8

	// HopLimit is the "hop limit" field of an IPv6 packet
	HopLimit uint8

	// SrcAddr is the "source ip address" of an IPv6 packet
	SrcAddr types.Address

	// DstAddr is the "destination ip address" of an IPv6 packet
	DstAddr types.Address
}

// IPv6 represents an ipv6 header stored in a byte array
// Most of the methods of IPv6 access to the underlying slice without
// checking the boundaries and could panic because of 'index out of range'
// Always call IsValid() to validate an instance of IPv6 before using other methods
type IPv6 []byte

const (
	// IPv6MinimumSize is the minimum size of a valid IPv6 packet
	IPv6MinimumSize = 40

	// IPv6AddressSize is the size, in bytes, of an IPv6 address
	IPv6AddressSize = 16

	// IPv6Version is the version of the ipv6 protocol
	IPv6Version = 6

	// IPv6DefaultHopLimit is the hop limit used when none is configured
	IPv6DefaultHopLimit = 64
)

// IPv6Unspecified is the all-zeroes address ::
const IPv6Unspecified = types.Address("\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")

// IPVersion returns the version of IP used in the given packet. It returns -1
// it the packet is not large enough to contain the version field
func IPVersion(b []byte) int {
	// Length must be at least offset+length of version field
	if len(b) < versTCFL+1 {
		return -1
	}
	return int(b[versTCFL] >> 4)
}

// PayloadLength returns the value of the "payload length" field of the ipv6
// header
func (b IPv6) PayloadLength() uint16 {
	return binary.BigEndian.Uint16(b[payloadLen:])
}

// HopLimit returns the value of the "hop limit" field of the ipv6 header
func (b IPv6) HopLimit() uint8 {
	return b[hopLimit]
}

// NextHeader returns the value of the "next header" field of the ipv6 header
func (b IPv6) NextHeader() uint8 {
	return b[nextHdr]
}

// TransportProtocol implements Network.TransportProtocol
func (b IPv6) TransportProtocol() uint8 {
	return b.NextHeader()
}

// Payload implements Network.Payload
func (b IPv6) Payload() []byte {
	return b[IPv6MinimumSize:][:b.PayloadLength()]
}

// SourceAddress returns the "source address" field of the ipv6 header
func (b IPv6) SourceAddress() types.Address {
	return types.Address(b[v6SrcAddr : v6SrcAddr+IPv6AddressSize])
}

// DestinationAddress returns the "destination address" field of the ipv6
// header
func (b IPv6) DestinationAddress() types.Address {
	return types.Address(b[v6DstAddr : v6DstAddr+IPv6AddressSize])
}

// TrafficClass returns the "traffic class" field of the ipv6 header
func (b IPv6) TrafficClass() uint8 {
	return uint8(binary.BigEndian.Uint32(b[versTCFL:]) >> 20)
}

// FlowLabel returns the "flow label" field of the ipv6 header
func (b IPv6) FlowLabel() uint32 {
	return binary.BigEndian.Uint32(b[versTCFL:]) & 0xfffff
}

// SetPayloadLength sets the "payload length" field of the ipv6 header
func (b IPv6) SetPayloadLength(payloadLength uint16) {
	binary.BigEndian.PutUint16(b[payloadLen:], payloadLength)
}

// SetNextHeader sets the value of the "next header" field of the ipv6 header
func (b IPv6) SetNextHeader(v uint8) {
	b[nextHdr] = v
}

// SetHopLimit sets the value of the "hop limit" field of the ipv6 header
func (b IPv6) SetHopLimit(v uint8) {
	b[hopLimit] = v
}

// SetSourceAddress sets the "source address" field of the ipv6 header. An
// empty address writes the unspecified address
func (b IPv6) SetSourceAddress(addr types.Address) {
	if addr == "" {
		addr = IPv6Unspecified
	}
	copy(b[v6SrcAddr:v6SrcAddr+IPv6AddressSize], addr)
}

// SetDestinationAddress sets the "destination address" field of the ipv6
// header. An empty address writes the unspecified address
func (b IPv6) SetDestinationAddress(addr types.Address) {
	if addr == "" {
		addr = IPv6Unspecified
	}
	copy(b[v6DstAddr:v6DstAddr+IPv6AddressSize], addr)
}

// Encode encodes all the fields of the ipv6 header
func (b IPv6) Encode(i *IPv6Fields) {
	v := uint32(IPv6Version)<<28 | uint32(i.TrafficClass)<<20 | i.FlowLabel&0xfffff
	binary.BigEndian.PutUint32(b[versTCFL:], v)
	b.SetPayloadLength(i.PayloadLength)
	b[nextHdr] = i.NextHeader
	b[hopLimit] = i.HopLimit
	b.SetSourceAddress(i.SrcAddr)
	b.SetDestinationAddress(i.DstAddr)
}

// IsValid performs basic validation on the packet: version 6 and a payload
// length that fits in pktSize
func (b IPv6) IsValid(pktSize int) bool {
	if len(b) < IPv6MinimumSize {
		return false
	}
	if IPVersion(b) != IPv6Version {
		return false
	}
	return int(b.PayloadLength())+IPv6MinimumSize <= pktSize
}
