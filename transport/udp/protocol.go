package udp

import (
	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/types"
)

const (
	// ProtocolName is the string representation of the udp protocol name
	ProtocolName = "udp"

	// ProtocolNumber is the udp protocol number
	ProtocolNumber = header.UDPProtocolNumber

	// NetType is the net type of udp header snips
	NetType = types.NetTypeUDP
)

// MinimumPacketSize returns the minimum valid udp packet size
func MinimumPacketSize() int {
	return header.UDPMinimumSize
}

// ParsePorts returns the source and destination ports stored in the given udp
// packet
func ParsePorts(v []byte) (src, dst uint16, err error) {
	if len(v) < header.UDPMinimumSize {
		return 0, 0, types.ErrMalformedHeader
	}
	h := header.UDP(v)
	return h.SourcePort(), h.DestinationPort(), nil
}

// Checksum computes the checksum of a udp datagram, hdr followed by payload,
// between src and dst. The checksum field of hdr is treated as zero
func Checksum(hdr header.UDP, payload []byte, src, dst types.Address) uint16 {
	saved := hdr.Checksum()
	hdr.SetChecksum(0)
	defer hdr.SetChecksum(saved)

	length := uint16(header.UDPMinimumSize + len(payload))
	xsum := header.PseudoHeaderChecksum(ProtocolNumber, src, dst, length)
	xsum = header.Checksum(payload, xsum)
	c := ^hdr.CalculateChecksum(xsum)
	if c == 0 {
		// zero means no checksum on the wire
		c = 0xffff
	}
	return c
}
