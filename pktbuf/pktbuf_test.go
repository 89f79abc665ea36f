package pktbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaoZengzeng/sockbridge/types"
)

func TestAddAndRelease(t *testing.T) {
	p := NewPool(128)

	payload, err := p.Add(nil, []byte("payload"), 7, types.NetTypeUndef)
	require.NoError(t, err)
	hdr, err := p.Add(payload, nil, 8, types.NetTypeUDP)
	require.NoError(t, err)

	assert.Equal(t, 2, p.Outstanding())
	assert.Equal(t, 15, p.Used())
	assert.Equal(t, 15, Len(hdr))
	assert.Equal(t, 2, Count(hdr))
	assert.Same(t, payload, Search(hdr, types.NetTypeUndef))
	assert.Same(t, payload, Last(hdr))
	assert.Nil(t, Search(hdr, types.NetTypeIPv6))
	assert.Equal(t, "payload", string(payload.Data))
	assert.Equal(t, make([]byte, 8), []byte(hdr.Data))

	p.Release(hdr)
	assert.Equal(t, 0, p.Outstanding())
	assert.Equal(t, 0, p.Used())
}

func TestAddExhausted(t *testing.T) {
	p := NewPool(16)

	payload, err := p.Add(nil, nil, 10, types.NetTypeUndef)
	require.NoError(t, err)

	hdr, err := p.Add(payload, nil, 10, types.NetTypeIPv6)
	assert.Nil(t, hdr)
	assert.Equal(t, types.ErrNoMemory, err)

	// The failed allocation must leave the chain to the caller.
	assert.Equal(t, 1, payload.Users())
	p.Release(payload)
	assert.Equal(t, 0, p.Outstanding())
}

func TestHoldSharesChain(t *testing.T) {
	p := NewPool(64)
	pkt, err := p.Add(nil, []byte("abc"), 3, types.NetTypeTest)
	require.NoError(t, err)

	p.Hold(pkt, 2)
	assert.Equal(t, 3, pkt.Users())

	p.Release(pkt)
	p.Release(pkt)
	assert.Equal(t, 1, p.Outstanding())
	p.Release(pkt)
	assert.Equal(t, 0, p.Outstanding())
}

func TestDoubleReleasePanics(t *testing.T) {
	p := NewPool(64)
	pkt, err := p.Add(nil, nil, 4, types.NetTypeTest)
	require.NoError(t, err)
	p.Release(pkt)

	assert.Panics(t, func() { p.Release(pkt) })
}

func TestForeignSnipPanics(t *testing.T) {
	a, b := NewPool(64), NewPool(64)
	pkt, err := a.Add(nil, nil, 4, types.NetTypeTest)
	require.NoError(t, err)

	assert.Panics(t, func() { b.Release(pkt) })
	a.Release(pkt)
}

func TestFlatten(t *testing.T) {
	p := NewPool(64)
	tail, err := p.Add(nil, []byte("world"), 5, types.NetTypeUndef)
	require.NoError(t, err)
	head, err := p.Add(tail, []byte("hello "), 6, types.NetTypeTest)
	require.NoError(t, err)

	assert.Equal(t, "hello world", string(Flatten(head)))
	vv := ToVectorisedView(head.Next)
	assert.Equal(t, 5, vv.Size())
	p.Release(head)
}
