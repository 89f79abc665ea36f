// Package netif builds the interface metadata snips that carry the
// interface a packet arrived on, or must leave by, between the link layer
// and the layers above
package netif

import (
	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/types"
)

// BuildHeader allocates a metadata snip with the given link layer addresses,
// either of which may be nil. The snip has no successor and its nic is
// NicAny
func BuildHeader(pool *pktbuf.Pool, src, dst []byte) (*pktbuf.Snip, error) {
	snip, err := pool.Add(nil, nil, header.NetifSize(len(src), len(dst)), types.NetTypeNetif)
	if err != nil {
		return nil, err
	}
	header.Netif(snip.Data).Encode(&header.NetifFields{
		Nic:       types.NicAny,
		SrcL2Addr: src,
		DstL2Addr: dst,
	})
	return snip, nil
}

// SetNic sets the interface of a metadata snip
func SetNic(snip *pktbuf.Snip, nic types.NicId) {
	header.Netif(snip.Data).SetNic(nic)
}

// Nic returns the interface of a metadata snip
func Nic(snip *pktbuf.Snip) types.NicId {
	return header.Netif(snip.Data).Nic()
}

// Flags returns the flags of a metadata snip
func Flags(snip *pktbuf.Snip) uint8 {
	return header.Netif(snip.Data).Flags()
}
