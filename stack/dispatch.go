package stack

import (
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/types"
)

// DispatchSend hands an outbound chain to every entry registered for
// (typ, ctx). It returns the number of entries found; when it is 0 the chain
// is untouched and still owned by the caller, otherwise ownership has moved
// to the stack
func (s *Stack) DispatchSend(typ types.NetType, ctx uint32, pkt *pktbuf.Snip) int {
	return s.dispatch(mbox.TypeSnd, typ, ctx, pkt)
}

// DispatchReceive hands an inbound chain to every entry registered for
// (typ, ctx), with the same ownership rules as DispatchSend
func (s *Stack) DispatchReceive(typ types.NetType, ctx uint32, pkt *pktbuf.Snip) int {
	return s.dispatch(mbox.TypeRcv, typ, ctx, pkt)
}

func (s *Stack) dispatch(kind mbox.MsgType, typ types.NetType, ctx uint32, pkt *pktbuf.Snip) int {
	entries := s.demux.lookup(typ, ctx)
	if len(entries) == 0 {
		return 0
	}

	// one reference per target
	if len(entries) > 1 {
		s.pool.Hold(pkt, len(entries)-1)
	}

	for _, e := range entries {
		if e.Target.TryPut(mbox.PacketMsg{Kind: kind, Pkt: pkt}) {
			continue
		}

		log.WithFields(log.Fields{
			"kind": kind,
			"type": typ,
			"ctx":  ctx,
		}).Debug("stack: target mailbox full, dropping packet")

		if kind == mbox.TypeSnd && s.reporter != nil {
			s.reporter.Report(pkt, uint32(unix.ENOBUFS))
		}
		s.pool.Release(pkt)
	}

	return len(entries)
}
