// Package udp implements the udp layer task. It takes outbound chains whose
// udp header snip was filled with ports by a socket, completes the length
// and checksum from the IPv6 header in front of it, and forwards them to the
// IPv6 consumer.
package udp

import (
	"context"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/types"
)

// Stats are the counters of a Layer
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Layer is the udp layer task of a stack
type Layer struct {
	stack *stack.Stack
	box   mbox.Mailbox
	entry stack.Entry

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// New creates the udp layer of s and registers it. Packets queue on the
// layer until Run is called
func New(s *stack.Stack) *Layer {
	l := &Layer{stack: s}
	l.box.Init(s.MboxSize())
	l.entry = stack.Entry{DemuxCtx: stack.DemuxCtxAll, Target: &l.box}
	s.Register(NetType, &l.entry)
	return l
}

// Run handles the layer's messages until ctx is done. The layer is
// unregistered when Run returns
func (l *Layer) Run(ctx context.Context) error {
	defer func() {
		l.stack.Unregister(&l.entry)
		l.drain()
	}()

	for {
		msg, err := l.box.GetContext(ctx)
		if err != nil {
			return nil
		}
		l.handle(msg)
	}
}

// Stats returns a snapshot of the layer's counters
func (l *Layer) Stats() Stats {
	return Stats{Sent: l.sent.Load(), Dropped: l.dropped.Load()}
}

func (l *Layer) handle(msg mbox.Msg) {
	pm, ok := msg.(mbox.PacketMsg)
	if !ok {
		log.WithField("type", msg.Type()).Debug("udp: ignoring message")
		return
	}
	if pm.Kind != mbox.TypeSnd {
		log.WithField("kind", pm.Kind).Warn("udp: unexpected packet")
		l.drop(pm.Pkt, uint32(unix.EPROTONOSUPPORT))
		return
	}
	l.send(pm.Pkt)
}

// send completes the udp header of pkt and forwards it
func (l *Layer) send(pkt *pktbuf.Snip) {
	hdr := pktbuf.Search(pkt, NetType)
	ip := pktbuf.Search(pkt, types.NetTypeIPv6)
	if hdr == nil || hdr.Size() < header.UDPMinimumSize || ip == nil {
		log.Debug("udp: outbound packet without udp or ipv6 header")
		l.drop(pkt, uint32(unix.EBADMSG))
		return
	}

	length := pktbuf.Len(hdr)
	if length > 0xffff {
		l.drop(pkt, uint32(unix.EMSGSIZE))
		return
	}

	u := header.UDP(hdr.Data)
	u.SetLength(uint16(length))
	iph := header.IPv6(ip.Data)
	u.SetChecksum(Checksum(u, pktbuf.Flatten(hdr.Next), iph.SourceAddress(), iph.DestinationAddress()))

	if l.stack.DispatchSend(types.NetTypeIPv6, stack.DemuxCtxAll, pkt) == 0 {
		log.Debug("udp: no ipv6 consumer")
		l.drop(pkt, uint32(unix.EHOSTUNREACH))
		return
	}
	l.sent.Add(1)
}

// drop reports status to the sender, if it waits for a report, and releases
// pkt
func (l *Layer) drop(pkt *pktbuf.Snip, status uint32) {
	if r := l.stack.NetErr(); r != nil {
		r.Report(pkt, status)
	}
	l.stack.Pool().Release(pkt)
	l.dropped.Add(1)
}

func (l *Layer) drain() {
	l.box.Drain(func(msg mbox.Msg) {
		if pm, ok := msg.(mbox.PacketMsg); ok {
			l.drop(pm.Pkt, uint32(unix.ENETDOWN))
		}
	})
}
