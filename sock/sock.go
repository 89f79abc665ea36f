// Package sock bridges sockets and the stack. A socket owns a registration:
// a mailbox the stack delivers packets for one (net type, demux context) key
// to. Recv waits on that mailbox for a packet, optionally bounded by a
// timeout, and Send builds the network header of an outbound payload and
// hands it to the stack, optionally waiting for the send-completion report.
//
// Packet chains are owned by one party at a time. Recv hands the chain it
// returns to the caller; Send consumes the payload on every path, so the
// caller never releases it after calling Send.
package sock

import (
	"math"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/link/netif"
	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/neterr"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/timer"
	"github.com/YaoZengzeng/sockbridge/types"
)

// NoTimeout makes Recv wait until a message arrives
const NoTimeout uint32 = math.MaxUint32

// timeoutMagic is the base of the value carried by timeout sentinels. Each
// armed timer adds the registration's generation to it
const timeoutMagic uint32 = 0xF38A0B63

// Stack is what a Sock needs from the networking stack. *stack.Stack
// implements it
type Stack interface {
	Pool() *pktbuf.Pool
	MboxSize() int
	NetErr() *neterr.Reporter
	HeaderBuilder(family types.AddressFamily) (stack.HeaderBuilder, bool)
	Register(typ types.NetType, e *stack.Entry)
	Unregister(e *stack.Entry)
	DispatchSend(typ types.NetType, ctx uint32, pkt *pktbuf.Snip) int
}

// Reg is a socket's registration with the stack. It is owned by the socket
// and must not be copied after Create
type Reg struct {
	// Mbox receives the packets delivered for the registration
	Mbox mbox.Mailbox

	entry stack.Entry
	gen   uint32
}

// Registered reports whether the registration is known to the stack
func (r *Reg) Registered() bool {
	return r.entry.Registered()
}

// DemuxCtx returns the demux context the registration was created for
func (r *Reg) DemuxCtx() uint32 {
	return r.entry.DemuxCtx
}

// Sock is the socket side of the bridge for one task. Its inbox is the task's
// default inbox, where send-completion reports arrive
type Sock struct {
	stack Stack
	inbox *mbox.Mailbox

	// sendMu serializes Send so a report is awaited by the send it
	// belongs to
	sendMu sync.Mutex
}

// New creates a Sock on s. If inbox is nil the Sock allocates its own. Socks
// of one task may share an inbox; each send waits for its own report
func New(s Stack, inbox *mbox.Mailbox) *Sock {
	if inbox == nil {
		inbox = &mbox.Mailbox{}
		inbox.Init(s.MboxSize())
	}
	return &Sock{stack: s, inbox: inbox}
}

// Pool returns the packet pool of the stack
func (s *Sock) Pool() *pktbuf.Pool {
	return s.stack.Pool()
}

// Inbox returns the task's default inbox
func (s *Sock) Inbox() *mbox.Mailbox {
	return s.inbox
}

// Create initializes reg's mailbox and registers it for (typ, demuxCtx).
// Creating a registration that is still registered moves it to the new key
func (s *Sock) Create(reg *Reg, typ types.NetType, demuxCtx uint32) {
	if reg.entry.Registered() {
		s.stack.Unregister(&reg.entry)
	}
	reg.Mbox.Init(s.stack.MboxSize())
	reg.entry.DemuxCtx = demuxCtx
	reg.entry.Target = &reg.Mbox
	s.stack.Register(typ, &reg.entry)

	log.WithFields(log.Fields{"type": typ, "ctx": demuxCtx}).Debug("sock: registered")
}

// Close unregisters reg and releases the packets still queued on it
func (s *Sock) Close(reg *Reg) {
	s.stack.Unregister(&reg.entry)
	if !reg.Mbox.Valid() {
		return
	}
	pool := s.stack.Pool()
	reg.Mbox.Drain(func(msg mbox.Msg) {
		if pm, ok := msg.(mbox.PacketMsg); ok {
			pool.Release(pm.Pkt)
		}
	})
}

// Recv waits for a packet on reg for timeout microseconds. A timeout of 0
// polls and NoTimeout waits forever. On success the chain is owned by the
// caller and, when remote is not nil, it is filled with the sender's
// address and the interface the packet arrived on
func (s *Sock) Recv(reg *Reg, timeout uint32, remote *types.Endpoint) (*pktbuf.Snip, error) {
	if !reg.Mbox.Valid() {
		return nil, types.ErrInvalidEndpointState
	}

	var (
		msg   mbox.Msg
		magic uint32
		armed bool
		t     timer.Timer
	)

	switch timeout {
	case 0:
		m, ok := reg.Mbox.TryGet()
		if !ok {
			return nil, types.ErrWouldBlock
		}
		msg = m
	case NoTimeout:
		msg = reg.Mbox.Get()
	default:
		reg.gen++
		magic = timeoutMagic + reg.gen
		armed = true
		t.Callback = expire
		t.Arg = timeoutArg{box: &reg.Mbox, magic: magic}
		t.Set(timeout)
		msg = reg.Mbox.Get()
	}
	t.Remove()

	switch m := msg.(type) {
	case mbox.PacketMsg:
		if m.Kind != mbox.TypeRcv {
			log.WithField("kind", m.Kind).Warn("sock: unexpected packet message")
			s.stack.Pool().Release(m.Pkt)
			return nil, types.ErrUnexpectedMessage
		}
		extract(m.Pkt, remote)
		return m.Pkt, nil
	case mbox.TimeoutMsg:
		if armed && m.Magic == magic {
			return nil, types.ErrTimeout
		}
		log.WithFields(log.Fields{"magic": m.Magic, "want": magic}).Debug("sock: stale timeout")
		return nil, types.ErrUnexpectedMessage
	default:
		log.WithField("type", msg.Type()).Debug("sock: unexpected message")
		return nil, types.ErrUnexpectedMessage
	}
}

type timeoutArg struct {
	box   *mbox.Mailbox
	magic uint32
}

// expire runs on the timer's goroutine. A full mailbox already holds data,
// so the sentinel is dropped
func expire(arg interface{}) {
	a := arg.(timeoutArg)
	a.box.TryPut(mbox.TimeoutMsg{Magic: a.magic})
}

// extract fills remote from the headers of an inbound chain. The stack only
// delivers chains with an IPv6 header, anything else is a bug
func extract(pkt *pktbuf.Snip, remote *types.Endpoint) {
	ip := pktbuf.Search(pkt, types.NetTypeIPv6)
	if ip == nil || ip.Size() < header.IPv6MinimumSize {
		panic("sock: inbound packet without IPv6 header")
	}
	if remote == nil {
		return
	}

	remote.Family = types.AFInet6
	remote.Addr = header.IPv6(ip.Data).SourceAddress()
	if nif := pktbuf.Search(pkt, types.NetTypeNetif); nif != nil {
		remote.Nic = netif.Nic(nif)
	} else {
		remote.Nic = types.NicAny
	}
}

// Send prepends a network header for local and remote to payload, with nh as
// its next header, and dispatches the packet. payload is consumed on every
// path. When the stack reports send completion Send waits for the report and
// returns a *types.ReportError if it is not a success. It returns the length
// of the payload
func (s *Sock) Send(payload *pktbuf.Snip, local, remote *types.Endpoint, nh uint8) (int, error) {
	pool := s.stack.Pool()
	payloadLen := pktbuf.Len(payload)

	if local.Family != remote.Family {
		release(pool, payload)
		return 0, types.ErrAddressFamilyNotSupported
	}

	b, ok := s.stack.HeaderBuilder(local.Family)
	if !ok {
		release(pool, payload)
		return 0, types.ErrAddressFamilyNotSupported
	}

	pkt, err := b.Build(pool, payload, local.Addr, remote.Addr)
	if err != nil {
		// payload is gone with the failed build
		return 0, err
	}

	typ := b.NetType()
	if payload != nil {
		if payload.Type == types.NetTypeUndef {
			payload.Type = typ
		} else {
			typ = payload.Type
		}
	}
	b.SetNextHeader(pkt, nh)

	nic := local.Nic
	if nic == types.NicAny {
		nic = remote.Nic
	}
	if nic != types.NicAny {
		nif, err := netif.BuildHeader(pool, nil, nil)
		if err != nil {
			pool.Release(pkt)
			return 0, types.ErrNoMemory
		}
		netif.SetNic(nif, nic)
		nif.Next = pkt
		pkt = nif
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	reporter := s.stack.NetErr()
	if reporter != nil {
		reporter.Reg(pkt, s.inbox)
	}

	if s.stack.DispatchSend(typ, stack.DemuxCtxAll, pkt) == 0 {
		log.WithField("type", typ).Debug("sock: no consumer for packet")
		if reporter != nil {
			reporter.Forget(pkt)
		}
		pool.Release(pkt)
		return 0, types.ErrBadMessage
	}

	if reporter != nil {
		msg := s.inbox.GetFunc(reportFor(pkt))
		if status := msg.(mbox.ErrReportMsg).Status; status != neterr.Success {
			return 0, &types.ReportError{Status: status}
		}
	}

	return payloadLen, nil
}

// reportFor matches the report of the send subscribed on pkt. Reports of
// other sends sharing the inbox stay queued
func reportFor(pkt *pktbuf.Snip) func(mbox.Msg) bool {
	return func(msg mbox.Msg) bool {
		r, ok := msg.(mbox.ErrReportMsg)
		return ok && r.Pkt == pkt
	}
}

func release(pool *pktbuf.Pool, pkt *pktbuf.Snip) {
	if pkt != nil {
		pool.Release(pkt)
	}
}
