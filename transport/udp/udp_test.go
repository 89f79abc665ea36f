package udp_test

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/network/ipv6"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/transport/udp"
	"github.com/YaoZengzeng/sockbridge/types"
)

const (
	stackAddr = types.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01")
	stackPort = 1234
	testAddr  = types.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x02")
	testPort  = 4096
)

type testContext struct {
	t      *testing.T
	s      *stack.Stack
	l      *udp.Layer
	cancel context.CancelFunc
	g      *errgroup.Group
}

func newTestContext(t *testing.T) *testContext {
	s := stack.New(stack.Options{ErrorReports: true})
	l := udp.New(s)

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Run(ctx) })

	if n := s.NumOf(udp.NetType, stack.DemuxCtxAll); n != 1 {
		t.Fatalf("NumOf(udp) = %d, want 1", n)
	}

	return &testContext{t: t, s: s, l: l, cancel: cancel, g: g}
}

func (c *testContext) cleanup() {
	c.cancel()
	if err := c.g.Wait(); err != nil {
		c.t.Fatalf("layer failed: %v", err)
	}
}

func newPayload() []byte {
	b := make([]byte, 30+rand.Intn(100))
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	return b
}

// buildPacket builds the chain a socket hands to the udp layer
func (c *testContext) buildPacket(payload []byte) *pktbuf.Snip {
	pool := c.s.Pool()
	data, err := pool.Add(nil, payload, len(payload), types.NetTypeUndef)
	if err != nil {
		c.t.Fatalf("Add payload failed: %v", err)
	}
	hdr, err := pool.Add(data, nil, header.UDPMinimumSize, udp.NetType)
	if err != nil {
		c.t.Fatalf("Add udp header failed: %v", err)
	}
	header.UDP(hdr.Data).Encode(&header.UDPFields{SrcPort: stackPort, DstPort: testPort})

	b := &ipv6.Builder{HopLimit: header.IPv6DefaultHopLimit}
	pkt, err := b.Build(pool, hdr, stackAddr, testAddr)
	if err != nil {
		c.t.Fatalf("Build failed: %v", err)
	}
	return pkt
}

func TestSendFillsHeader(t *testing.T) {
	c := newTestContext(t)
	defer c.cleanup()

	var out mbox.Mailbox
	out.Init(4)
	c.s.Register(types.NetTypeIPv6, &stack.Entry{DemuxCtx: stack.DemuxCtxAll, Target: &out})

	payload := newPayload()
	if n := c.s.DispatchSend(udp.NetType, stack.DemuxCtxAll, c.buildPacket(payload)); n != 1 {
		t.Fatalf("DispatchSend = %d, want 1", n)
	}

	msg := out.Get()
	pkt := msg.(mbox.PacketMsg).Pkt
	defer c.s.Pool().Release(pkt)

	v := pktbuf.Flatten(pkt)
	ip := header.IPv6(v)
	if !ip.IsValid(len(v)) {
		t.Fatalf("invalid ipv6 packet")
	}
	u := header.UDP(ip.Payload())
	if got, want := u.Length(), uint16(header.UDPMinimumSize+len(payload)); got != want {
		t.Fatalf("Length = %d, want %d", got, want)
	}
	if got := u.SourcePort(); got != stackPort {
		t.Fatalf("SourcePort = %d, want %d", got, stackPort)
	}
	if !bytes.Equal(u.Payload(), payload) {
		t.Fatalf("Bad payload: got %x, want %x", u.Payload(), payload)
	}

	xsum := header.PseudoHeaderChecksum(udp.ProtocolNumber, stackAddr, testAddr, u.Length())
	xsum = header.Checksum(u.Payload(), xsum)
	if got := u.CalculateChecksum(xsum); got != 0xffff {
		t.Fatalf("checksum does not verify: %#x", got)
	}

	if st := c.l.Stats(); st.Sent != 1 || st.Dropped != 0 {
		t.Fatalf("Stats = %+v", st)
	}
}

func TestSendNoIPv6Consumer(t *testing.T) {
	c := newTestContext(t)
	defer c.cleanup()

	var inbox mbox.Mailbox
	inbox.Init(2)
	pkt := c.buildPacket(newPayload())
	c.s.NetErr().Reg(pkt, &inbox)

	if n := c.s.DispatchSend(udp.NetType, stack.DemuxCtxAll, pkt); n != 1 {
		t.Fatalf("DispatchSend = %d, want 1", n)
	}

	msg := inbox.Get()
	report, ok := msg.(mbox.ErrReportMsg)
	if !ok {
		t.Fatalf("unexpected message %#v", msg)
	}
	if report.Status != uint32(unix.EHOSTUNREACH) {
		t.Fatalf("Status = %d, want %d", report.Status, unix.EHOSTUNREACH)
	}

	// the layer releases after reporting
	deadline := time.Now().Add(time.Second)
	for c.s.Pool().Outstanding() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("packet was not released")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestParsePorts(t *testing.T) {
	if _, _, err := udp.ParsePorts(make([]byte, 4)); err != types.ErrMalformedHeader {
		t.Fatalf("ParsePorts short = %v, want %v", err, types.ErrMalformedHeader)
	}

	b := make([]byte, header.UDPMinimumSize)
	header.UDP(b).Encode(&header.UDPFields{SrcPort: 1, DstPort: 2})
	src, dst, err := udp.ParsePorts(b)
	if err != nil || src != 1 || dst != 2 {
		t.Fatalf("ParsePorts = %d, %d, %v", src, dst, err)
	}
}
