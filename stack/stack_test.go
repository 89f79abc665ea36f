package stack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/neterr"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/types"
)

func newEntry(ctx uint32, size int) *stack.Entry {
	e := &stack.Entry{DemuxCtx: ctx, Target: &mbox.Mailbox{}}
	e.Target.Init(size)
	return e
}

func newPacket(t *testing.T, s *stack.Stack) *pktbuf.Snip {
	pkt, err := s.Pool().Add(nil, []byte("payload"), 7, types.NetTypeUndef)
	require.NoError(t, err)
	return pkt
}

func TestNewDefaults(t *testing.T) {
	s := stack.New(stack.Options{})
	assert.Equal(t, stack.DefaultMboxSize, s.MboxSize())
	assert.Equal(t, stack.DefaultPoolSize, s.Pool().Size())
	assert.Nil(t, s.NetErr())

	s = stack.New(stack.Options{ErrorReports: true})
	assert.NotNil(t, s.NetErr())

	assert.Panics(t, func() { stack.New(stack.Options{MboxSize: 6}) })
}

func TestRegistry(t *testing.T) {
	s := stack.New(stack.Options{})

	a := newEntry(80, 2)
	b := newEntry(80, 2)
	c := newEntry(stack.DemuxCtxAll, 2)
	s.Register(types.NetTypeUDP, a)
	s.Register(types.NetTypeUDP, b)
	s.Register(types.NetTypeUDP, c)
	s.Register(types.NetTypeIPv6, newEntry(80, 2))

	assert.Equal(t, 2, s.NumOf(types.NetTypeUDP, 80))
	assert.Equal(t, 1, s.NumOf(types.NetTypeUDP, stack.DemuxCtxAll))
	assert.Equal(t, 0, s.NumOf(types.NetTypeUDP, 81))
	assert.Equal(t, []*stack.Entry{a, b}, s.Lookup(types.NetTypeUDP, 80))

	s.Unregister(a)
	assert.False(t, a.Registered())
	assert.Equal(t, []*stack.Entry{b}, s.Lookup(types.NetTypeUDP, 80))

	// unregistering twice is harmless
	s.Unregister(a)

	// registering again moves the entry
	s.Register(types.NetTypeIPv6, b)
	assert.Equal(t, 0, s.NumOf(types.NetTypeUDP, 80))
	assert.Equal(t, 2, s.NumOf(types.NetTypeIPv6, 80))
}

func TestDispatchNoConsumer(t *testing.T) {
	s := stack.New(stack.Options{})
	pkt := newPacket(t, s)

	assert.Equal(t, 0, s.DispatchSend(types.NetTypeIPv6, stack.DemuxCtxAll, pkt))
	assert.Equal(t, 1, pkt.Users())
	s.Pool().Release(pkt)
	assert.Equal(t, 0, s.Pool().Outstanding())
}

func TestDispatchHoldsPerTarget(t *testing.T) {
	s := stack.New(stack.Options{})
	a := newEntry(stack.DemuxCtxAll, 2)
	b := newEntry(stack.DemuxCtxAll, 2)
	s.Register(types.NetTypeIPv6, a)
	s.Register(types.NetTypeIPv6, b)

	pkt := newPacket(t, s)
	assert.Equal(t, 2, s.DispatchReceive(types.NetTypeIPv6, stack.DemuxCtxAll, pkt))
	assert.Equal(t, 2, pkt.Users())

	for _, e := range []*stack.Entry{a, b} {
		msg, ok := e.Target.TryGet()
		require.True(t, ok)
		pm, ok := msg.(mbox.PacketMsg)
		require.True(t, ok)
		assert.Equal(t, mbox.TypeRcv, pm.Kind)
		assert.Same(t, pkt, pm.Pkt)
		s.Pool().Release(pm.Pkt)
	}
	assert.Equal(t, 0, s.Pool().Outstanding())
}

func TestDispatchFullTargetDrops(t *testing.T) {
	s := stack.New(stack.Options{ErrorReports: true})
	e := newEntry(stack.DemuxCtxAll, 1)
	require.True(t, e.Target.TryPut(mbox.RawMsg{}))
	s.Register(types.NetTypeIPv6, e)

	var inbox mbox.Mailbox
	inbox.Init(2)
	pkt := newPacket(t, s)
	s.NetErr().Reg(pkt, &inbox)

	assert.Equal(t, 1, s.DispatchSend(types.NetTypeIPv6, stack.DemuxCtxAll, pkt))
	assert.Equal(t, 0, s.Pool().Outstanding())

	msg, ok := inbox.TryGet()
	require.True(t, ok)
	report, ok := msg.(mbox.ErrReportMsg)
	require.True(t, ok)
	assert.NotEqual(t, neterr.Success, report.Status)
}

func TestNics(t *testing.T) {
	s := stack.New(stack.Options{})
	const addr = types.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01")

	_, err := s.CreateNic(types.NicAny, "any")
	assert.Equal(t, types.ErrUnknownNicId, err)

	n, err := s.CreateNic(1, "lo")
	require.NoError(t, err)
	assert.Equal(t, types.NicId(1), n.Id())
	assert.Equal(t, "lo", n.Name())

	_, err = s.CreateNic(1, "again")
	assert.Equal(t, types.ErrDuplicateNicId, err)

	assert.Equal(t, types.ErrUnknownNicId, s.AddAddress(2, addr))
	assert.Equal(t, types.ErrBadAddress, s.AddAddress(1, ""))
	require.NoError(t, s.AddAddress(1, addr))
	assert.Equal(t, []types.Address{addr}, n.Addresses())

	id, ok := s.FindNic(addr)
	assert.True(t, ok)
	assert.Equal(t, types.NicId(1), id)

	_, ok = s.FindNic("\x00")
	assert.False(t, ok)
}
