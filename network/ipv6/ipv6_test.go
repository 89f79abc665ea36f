package ipv6_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/network/ipv6"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/types"
)

const (
	srcAddr = types.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01")
	dstAddr = types.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02")
)

func TestRegistered(t *testing.T) {
	s := stack.New(stack.Options{})
	b, ok := s.HeaderBuilder(types.AFInet6)
	require.True(t, ok)
	assert.Equal(t, types.NetTypeIPv6, b.NetType())

	_, ok = s.HeaderBuilder(types.AFInet)
	assert.False(t, ok)
}

func TestBuildRoundTrip(t *testing.T) {
	pool := pktbuf.NewPool(1024)
	payload, err := pool.Add(nil, nil, 64, types.NetTypeUDP)
	require.NoError(t, err)

	b := &ipv6.Builder{HopLimit: 32}
	pkt, err := b.Build(pool, payload, srcAddr, dstAddr)
	require.NoError(t, err)
	assert.Same(t, payload, pkt.Next)

	b.SetNextHeader(pkt, 253)

	hdr := pktbuf.Search(pkt, types.NetTypeIPv6)
	require.NotNil(t, hdr)
	ip := header.IPv6(hdr.Data)
	require.True(t, ip.IsValid(pktbuf.Len(pkt)))
	assert.Equal(t, srcAddr, ip.SourceAddress())
	assert.Equal(t, dstAddr, ip.DestinationAddress())
	assert.Equal(t, uint8(253), ip.NextHeader())
	assert.Equal(t, uint8(32), ip.HopLimit())
	assert.Equal(t, uint16(64), ip.PayloadLength())

	pool.Release(pkt)
	assert.Equal(t, 0, pool.Outstanding())
}

func TestBuildUnspecifiedAddresses(t *testing.T) {
	pool := pktbuf.NewPool(1024)
	b := &ipv6.Builder{HopLimit: header.IPv6DefaultHopLimit}
	pkt, err := b.Build(pool, nil, "", "")
	require.NoError(t, err)

	ip := header.IPv6(pkt.Data)
	assert.Equal(t, header.IPv6Unspecified, ip.SourceAddress())
	assert.Equal(t, header.NoNextHeader, ip.NextHeader())
	assert.Equal(t, uint16(0), ip.PayloadLength())
	pool.Release(pkt)
}

func TestBuildFailureConsumesPayload(t *testing.T) {
	for _, tc := range []struct {
		name string
		pool int
		src  types.Address
		want error
	}{
		{"no memory", 64, srcAddr, types.ErrNoMemory},
		{"bad address", 1024, "\x01\x02", types.ErrBadAddress},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pool := pktbuf.NewPool(tc.pool)
			payload, err := pool.Add(nil, nil, 60, types.NetTypeUndef)
			require.NoError(t, err)

			b := &ipv6.Builder{}
			pkt, err := b.Build(pool, payload, tc.src, dstAddr)
			assert.Nil(t, pkt)
			assert.Equal(t, tc.want, err)
			assert.Equal(t, 0, pool.Outstanding())
		})
	}
}

func TestProtocolNumber(t *testing.T) {
	assert.Equal(t, header.NoNextHeader, ipv6.ProtocolNumber(nil))
	assert.Equal(t, header.UDPProtocolNumber, ipv6.ProtocolNumber(&pktbuf.Snip{Type: types.NetTypeUDP}))
	assert.Equal(t, header.NoNextHeader, ipv6.ProtocolNumber(&pktbuf.Snip{Type: types.NetTypeTest}))
}
