package udp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaoZengzeng/sockbridge/mbox"
	_ "github.com/YaoZengzeng/sockbridge/network/ipv6"
	"github.com/YaoZengzeng/sockbridge/ports"
	"github.com/YaoZengzeng/sockbridge/sock"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/types"
)

const localAddr = types.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01")

func newSock(t *testing.T) (*stack.Stack, *sock.Sock, *ports.PortManager) {
	s := stack.New(stack.Options{})
	return s, sock.New(s, nil), ports.NewPortManager()
}

func TestBind(t *testing.T) {
	s, k, pm := newSock(t)

	c, err := New(k, pm, types.Endpoint{Addr: localAddr, Port: 5683})
	require.NoError(t, err)
	assert.Equal(t, types.AFInet6, c.LocalEndpoint().Family)
	assert.Equal(t, 1, s.NumOf(types.NetTypeUDP, 5683))

	_, err = New(k, pm, types.Endpoint{Addr: localAddr, Port: 5683})
	assert.Equal(t, types.ErrPortInUse, err)

	c.Close()
	c.Close()
	assert.Equal(t, 0, s.NumOf(types.NetTypeUDP, 5683))

	c, err = New(k, pm, types.Endpoint{Addr: localAddr, Port: 5683})
	require.NoError(t, err)
	c.Close()
}

func TestBindEphemeral(t *testing.T) {
	s, k, pm := newSock(t)

	c, err := New(k, pm, types.Endpoint{})
	require.NoError(t, err)
	defer c.Close()

	port := c.LocalEndpoint().Port
	assert.NotZero(t, port)
	assert.Equal(t, 1, s.NumOf(types.NetTypeUDP, uint32(port)))
}

func TestBindIPv4(t *testing.T) {
	_, k, pm := newSock(t)
	_, err := New(k, pm, types.Endpoint{Family: types.AFInet})
	assert.Equal(t, types.ErrAddressFamilyNotSupported, err)
}

func TestRecvFromWouldBlockAndTimeout(t *testing.T) {
	_, k, pm := newSock(t)
	c, err := New(k, pm, types.Endpoint{})
	require.NoError(t, err)
	defer c.Close()

	_, _, err = c.RecvFrom(make([]byte, 4), 0)
	assert.Equal(t, types.ErrWouldBlock, err)

	_, _, err = c.RecvFrom(make([]byte, 4), 1000)
	assert.Equal(t, types.ErrTimeout, err)
}

func TestSendToNoConsumer(t *testing.T) {
	s, k, pm := newSock(t)
	c, err := New(k, pm, types.Endpoint{Addr: localAddr})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SendTo([]byte("x"), types.Endpoint{Family: types.AFInet6, Addr: localAddr})
	assert.Equal(t, types.ErrBadAddress, err)

	_, err = c.SendTo([]byte("x"), types.Endpoint{Family: types.AFInet6, Addr: localAddr, Port: 9})
	assert.Equal(t, types.ErrBadMessage, err)
	assert.Equal(t, 0, s.Pool().Outstanding())
}

func TestSendToBuildsUDPHeader(t *testing.T) {
	s, k, pm := newSock(t)
	c, err := New(k, pm, types.Endpoint{Addr: localAddr, Port: 7})
	require.NoError(t, err)
	defer c.Close()

	var out mbox.Mailbox
	out.Init(2)
	s.Register(types.NetTypeUDP, &stack.Entry{DemuxCtx: stack.DemuxCtxAll, Target: &out})

	n, err := c.SendTo([]byte("abc"), types.Endpoint{Family: types.AFInet6, Addr: localAddr, Port: 9})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	msg, ok := out.TryGet()
	require.True(t, ok)
	pkt := msg.(mbox.PacketMsg).Pkt
	assert.Equal(t, types.NetTypeIPv6, pkt.Type)
	require.NotNil(t, pkt.Next)
	assert.Equal(t, types.NetTypeUDP, pkt.Next.Type)
	assert.Equal(t, []byte{0, 7, 0, 9}, []byte(pkt.Next.Data[:4]))
	s.Pool().Release(pkt)
}

func TestClosedConn(t *testing.T) {
	_, k, pm := newSock(t)
	c, err := New(k, pm, types.Endpoint{})
	require.NoError(t, err)
	c.Close()

	_, _, err = c.RecvFrom(nil, 0)
	assert.Equal(t, types.ErrClosedForReceive, err)
	_, err = c.SendTo(nil, types.Endpoint{Port: 1})
	assert.Equal(t, types.ErrInvalidEndpointState, err)
}
