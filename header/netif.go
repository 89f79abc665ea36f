package header

import (
	"encoding/binary"

	"github.com/YaoZengzeng/sockbridge/types"
)

const (
	netifSrcL2Len = 0
	netifDstL2Len = 1
	netifNic      = 2
	netifFlags    = 4
	netifLQI      = 5
	netifRSSI     = 6
)

// NetifMinimumSize is the size of the fixed part of the interface metadata
// header; the link layer addresses follow it
const NetifMinimumSize = 8

// Interface metadata flags
const (
	NetifFlagBroadcast uint8 = 0x80
	NetifFlagMulticast uint8 = 0x40
	NetifFlagMoreData  uint8 = 0x10
)

// NetifFields contains the fields of an interface metadata header
type NetifFields struct {
	// Nic is the interface the packet was received on or must leave by
	Nic types.NicId

	// Flags is a combination of the NetifFlag values
	Flags uint8

	// LQI is the link quality indicator of a received packet
	LQI uint8

	// RSSI is the received signal strength of a received packet
	RSSI int8

	// SrcL2Addr is the link layer source address
	SrcL2Addr []byte

	// DstL2Addr is the link layer destination address
	DstL2Addr []byte
}

// Netif is the interface metadata a packet carries between the link layer
// and the layers above. It never goes on the wire
type Netif []byte

// NetifSize returns the size of a metadata header with link layer addresses
// of the given lengths
func NetifSize(srcL2Len, dstL2Len int) int {
	return NetifMinimumSize + srcL2Len + dstL2Len
}

// Nic returns the interface identifier
func (b Netif) Nic() types.NicId {
	return types.NicId(binary.BigEndian.Uint16(b[netifNic:]))
}

// SetNic sets the interface identifier
func (b Netif) SetNic(nic types.NicId) {
	binary.BigEndian.PutUint16(b[netifNic:], uint16(nic))
}

// Flags returns the flags field
func (b Netif) Flags() uint8 {
	return b[netifFlags]
}

// LQI returns the link quality indicator
func (b Netif) LQI() uint8 {
	return b[netifLQI]
}

// RSSI returns the received signal strength
func (b Netif) RSSI() int8 {
	return int8(b[netifRSSI])
}

// SrcL2Addr returns the link layer source address
func (b Netif) SrcL2Addr() []byte {
	n := int(b[netifSrcL2Len])
	return b[NetifMinimumSize : NetifMinimumSize+n]
}

// DstL2Addr returns the link layer destination address
func (b Netif) DstL2Addr() []byte {
	off := NetifMinimumSize + int(b[netifSrcL2Len])
	return b[off : off+int(b[netifDstL2Len])]
}

// Encode encodes all the fields of the metadata header. b must be at least
// NetifSize(len(SrcL2Addr), len(DstL2Addr)) long
func (b Netif) Encode(f *NetifFields) {
	b[netifSrcL2Len] = uint8(len(f.SrcL2Addr))
	b[netifDstL2Len] = uint8(len(f.DstL2Addr))
	b.SetNic(f.Nic)
	b[netifFlags] = f.Flags
	b[netifLQI] = f.LQI
	b[netifRSSI] = uint8(f.RSSI)
	b[7] = 0
	n := copy(b[NetifMinimumSize:], f.SrcL2Addr)
	copy(b[NetifMinimumSize+n:], f.DstL2Addr)
}

// IsValid reports whether b holds a complete metadata header
func (b Netif) IsValid() bool {
	if len(b) < NetifMinimumSize {
		return false
	}
	return len(b) >= NetifSize(int(b[netifSrcL2Len]), int(b[netifDstL2Len]))
}
