// Package ipv6 builds the IPv6 headers of outbound packets. Importing it
// registers the builder for types.AFInet6 with the stack
package ipv6

import (
	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/types"
)

func init() {
	stack.RegisterHeaderBuilder(types.AFInet6, func() stack.HeaderBuilder {
		return &Builder{HopLimit: header.IPv6DefaultHopLimit}
	})
}

// Builder prepends IPv6 headers to payload chains
type Builder struct {
	// HopLimit is written to every header built
	HopLimit uint8
}

// NetType implements stack.HeaderBuilder.NetType
func (*Builder) NetType() types.NetType {
	return types.NetTypeIPv6
}

// Build implements stack.HeaderBuilder.Build. An empty address is written as
// the unspecified address; any other length than 16 bytes is rejected
func (b *Builder) Build(pool *pktbuf.Pool, payload *pktbuf.Snip, src, dst types.Address) (*pktbuf.Snip, error) {
	if !validAddress(src) || !validAddress(dst) {
		release(pool, payload)
		return nil, types.ErrBadAddress
	}

	length := pktbuf.Len(payload)
	if length > 0xffff {
		release(pool, payload)
		return nil, types.ErrMessageTooLong
	}

	hdr, err := pool.Add(payload, nil, header.IPv6MinimumSize, types.NetTypeIPv6)
	if err != nil {
		log.WithField("payload", length).Debug("ipv6: no room for header")
		release(pool, payload)
		return nil, err
	}

	header.IPv6(hdr.Data).Encode(&header.IPv6Fields{
		PayloadLength: uint16(length),
		NextHeader:    ProtocolNumber(payload),
		HopLimit:      b.HopLimit,
		SrcAddr:       src,
		DstAddr:       dst,
	})

	return hdr, nil
}

// SetNextHeader implements stack.HeaderBuilder.SetNextHeader
func (*Builder) SetNextHeader(hdr *pktbuf.Snip, nh uint8) {
	header.IPv6(hdr.Data).SetNextHeader(nh)
}

// ProtocolNumber returns the next header value for a payload chain
func ProtocolNumber(payload *pktbuf.Snip) uint8 {
	if payload == nil {
		return header.NoNextHeader
	}
	switch payload.Type {
	case types.NetTypeUDP:
		return header.UDPProtocolNumber
	default:
		return header.NoNextHeader
	}
}

func validAddress(a types.Address) bool {
	return len(a) == 0 || len(a) == header.IPv6AddressSize
}

func release(pool *pktbuf.Pool, pkt *pktbuf.Snip) {
	if pkt != nil {
		pool.Release(pkt)
	}
}
