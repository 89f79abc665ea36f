package header

import (
	"encoding/binary"
)

const (
	udpSrcPort  = 0
	udpDstPort  = 2
	udpLength   = 4
	udpChecksum = 6
)

// UDPFields contains the fields of a UDP packet. It is used to describe the
// fields of a packet that needs to be encoded
type UDPFields struct {
	// SrcPort is the "source port" field of a UDP packet
	SrcPort uint16

	// DstPort is the "destination port" field of a UDP packet
	DstPort uint16

	// Length is the "length" field of a UDP packet
	Length uint16

	// Checksum is the "checksum" field of a UDP packet
	Checksum uint16
}

const (
	// UDPMinimumSize is the minimum size of a valid UDP packet
	UDPMinimumSize = 8
)

// UDP represents a UDP header stored in a byte array
type UDP []byte

// SourcePort returns the "source port" field of the udp header
func (b UDP) SourcePort() uint16 {
	return binary.BigEndian.Uint16(b[udpSrcPort:])
}

// DestinationPort returns the "destination port" field of the udp header
func (b UDP) DestinationPort() uint16 {
	return binary.BigEndian.Uint16(b[udpDstPort:])
}

// Length returns the "length" field of the udp header
func (b UDP) Length() uint16 {
	return binary.BigEndian.Uint16(b[udpLength:])
}

// Checksum returns the "checksum" field of the udp header
func (b UDP) Checksum() uint16 {
	return binary.BigEndian.Uint16(b[udpChecksum:])
}

// Payload returns the data following the header
func (b UDP) Payload() []byte {
	return b[UDPMinimumSize:]
}

// SetSourcePort sets the "source port" field of the udp header
func (b UDP) SetSourcePort(port uint16) {
	binary.BigEndian.PutUint16(b[udpSrcPort:], port)
}

// SetDestinationPort sets the "destination port" field of the udp header
func (b UDP) SetDestinationPort(port uint16) {
	binary.BigEndian.PutUint16(b[udpDstPort:], port)
}

// SetLength sets the "length" field of the udp header
func (b UDP) SetLength(length uint16) {
	binary.BigEndian.PutUint16(b[udpLength:], length)
}

// SetChecksum sets the "checksum" field of the udp header
func (b UDP) SetChecksum(checksum uint16) {
	binary.BigEndian.PutUint16(b[udpChecksum:], checksum)
}

// CalculateChecksum calculates the checksum of the udp header, folding in
// the given partial checksum (pseudo header and payload)
func (b UDP) CalculateChecksum(partialChecksum uint16) uint16 {
	return Checksum(b[:UDPMinimumSize], partialChecksum)
}

// Encode encodes all the fields of the udp header
func (b UDP) Encode(u *UDPFields) {
	b.SetSourcePort(u.SrcPort)
	b.SetDestinationPort(u.DstPort)
	b.SetLength(u.Length)
	b.SetChecksum(u.Checksum)
}
