// Package channel provides a link endpoint that hands outbound frames to a
// Go channel and builds inbound packet chains from injected frames
package channel

import (
	"context"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/YaoZengzeng/sockbridge/buffer"
	"github.com/YaoZengzeng/sockbridge/header"
	"github.com/YaoZengzeng/sockbridge/link/netif"
	"github.com/YaoZengzeng/sockbridge/link/sniffer"
	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/neterr"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/stack"
	"github.com/YaoZengzeng/sockbridge/types"
)

// Defaults used for zero Options fields
const (
	DefaultMTU       = 1280
	DefaultQueueSize = 64
	DefaultNic       = types.NicId(1)
)

// Options configures an Endpoint
type Options struct {
	// Nic is the id of the nic the endpoint creates
	Nic types.NicId

	// Name is the name of the nic
	Name string

	// MTU is the largest frame the endpoint transmits
	MTU uint32

	// QueueSize is the capacity of C
	QueueSize int

	// Loopback injects frames addressed to the stack back into it instead
	// of transmitting them
	Loopback bool

	// PacketsPerSecond paces transmission; 0 means unlimited
	PacketsPerSecond float64

	// Sniff logs every frame
	Sniff bool

	// Addresses are assigned to the nic
	Addresses []types.Address
}

// PacketInfo holds all the information about an outbound packet
type PacketInfo struct {
	Nic   types.NicId
	Frame buffer.View
}

// Stats are the counters of an Endpoint
type Stats struct {
	Sent     uint64
	Received uint64
	Dropped  uint64
}

// Endpoint is link layer endpoint that stores outbound packets in a channel
// and allows injection of inbound packets
type Endpoint struct {
	stack   *stack.Stack
	opts    Options
	box     mbox.Mailbox
	entry   stack.Entry
	limiter *rate.Limiter

	sent     atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64

	// C receives the transmitted frames. It is closed when Run returns
	C chan PacketInfo
}

// New creates a new channel endpoint and its nic on s, and registers the
// endpoint as a consumer of outbound IPv6 packets
func New(s *stack.Stack, opts Options) (*Endpoint, error) {
	if opts.Nic == types.NicAny {
		opts.Nic = DefaultNic
	}
	if opts.MTU == 0 {
		opts.MTU = DefaultMTU
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = DefaultQueueSize
	}

	if _, err := s.CreateNic(opts.Nic, opts.Name); err != nil {
		return nil, err
	}
	for _, addr := range opts.Addresses {
		if err := s.AddAddress(opts.Nic, addr); err != nil {
			return nil, err
		}
	}

	e := &Endpoint{
		stack: s,
		opts:  opts,
		C:     make(chan PacketInfo, opts.QueueSize),
	}
	e.box.Init(s.MboxSize())
	e.entry = stack.Entry{DemuxCtx: stack.DemuxCtxAll, Target: &e.box}
	if opts.PacketsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.PacketsPerSecond), 1)
	}
	s.Register(types.NetTypeIPv6, &e.entry)
	return e, nil
}

// Nic returns the id of the endpoint's nic
func (e *Endpoint) Nic() types.NicId {
	return e.opts.Nic
}

// MTU returns the value initialized during construction
func (e *Endpoint) MTU() uint32 {
	return e.opts.MTU
}

// Stats returns a snapshot of the endpoint's counters
func (e *Endpoint) Stats() Stats {
	return Stats{
		Sent:     e.sent.Load(),
		Received: e.received.Load(),
		Dropped:  e.dropped.Load(),
	}
}

// Run transmits the outbound IPv6 packets queued on the endpoint until ctx
// is done. It must be called once
func (e *Endpoint) Run(ctx context.Context) error {
	defer func() {
		e.stack.Unregister(&e.entry)
		e.box.Drain(func(msg mbox.Msg) {
			if pm, ok := msg.(mbox.PacketMsg); ok {
				e.drop(pm.Pkt, uint32(unix.ENETDOWN))
			}
		})
		close(e.C)
	}()

	for {
		msg, err := e.box.GetContext(ctx)
		if err != nil {
			return nil
		}
		pm, ok := msg.(mbox.PacketMsg)
		if !ok {
			continue
		}
		if pm.Kind != mbox.TypeSnd {
			e.drop(pm.Pkt, uint32(unix.EPROTONOSUPPORT))
			continue
		}
		e.transmit(ctx, pm.Pkt)
	}
}

// transmit flattens an outbound chain into a frame, reports the outcome to
// the sender and emits the frame
func (e *Endpoint) transmit(ctx context.Context, pkt *pktbuf.Snip) {
	nic := types.NicAny
	if pkt.Type == types.NetTypeNetif {
		nic = netif.Nic(pkt)
	}
	if nic != types.NicAny && nic != e.opts.Nic {
		if _, ok := e.stack.Nic(nic); ok {
			// the endpoint of that nic transmits it
			e.stack.Pool().Release(pkt)
			return
		}
		e.drop(pkt, uint32(unix.ENODEV))
		return
	}

	ip := pktbuf.Search(pkt, types.NetTypeIPv6)
	if ip == nil {
		e.drop(pkt, uint32(unix.EBADMSG))
		return
	}
	frame := pktbuf.Flatten(ip)
	if uint32(len(frame)) > e.opts.MTU {
		log.WithFields(log.Fields{"len": len(frame), "mtu": e.opts.MTU}).Debug("channel: frame exceeds mtu")
		e.drop(pkt, uint32(unix.EMSGSIZE))
		return
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			e.drop(pkt, uint32(unix.ENETDOWN))
			return
		}
	}

	if r := e.stack.NetErr(); r != nil {
		r.Report(pkt, neterr.Success)
	}
	e.stack.Pool().Release(pkt)
	e.sent.Add(1)

	if e.opts.Sniff {
		sniffer.LogPacket("send", e.opts.Nic, frame)
	}

	if e.opts.Loopback {
		dst := header.IPv6(frame).DestinationAddress()
		if to, ok := e.stack.FindNic(dst); ok {
			if err := e.Inject(to, frame); err != nil {
				log.WithError(err).Debug("channel: loopback delivery failed")
			}
			return
		}
	}

	select {
	case e.C <- PacketInfo{Nic: e.opts.Nic, Frame: frame}:
	case <-ctx.Done():
		e.dropped.Add(1)
	}
}

func (e *Endpoint) drop(pkt *pktbuf.Snip, status uint32) {
	if r := e.stack.NetErr(); r != nil {
		r.Report(pkt, status)
	}
	e.stack.Pool().Release(pkt)
	e.dropped.Add(1)
}

// Inject injects an inbound IPv6 frame received on nic. UDP datagrams are
// delivered to the registration of their destination port, anything else to
// the registrations for its next header value. The frame is copied
func (e *Endpoint) Inject(nic types.NicId, frame []byte) error {
	ip := header.IPv6(frame)
	if !ip.IsValid(len(frame)) {
		e.dropped.Add(1)
		return types.ErrMalformedHeader
	}
	if e.opts.Sniff {
		sniffer.LogPacket("recv", nic, frame)
	}

	payload := ip.Payload()
	nh := ip.NextHeader()
	typ, ctx := types.NetTypeIPv6, uint32(nh)

	var udp header.UDP
	if nh == header.UDPProtocolNumber {
		if len(payload) < header.UDPMinimumSize {
			e.dropped.Add(1)
			return types.ErrMalformedHeader
		}
		udp = header.UDP(payload)
		if l := int(udp.Length()); l < header.UDPMinimumSize || l > len(payload) {
			e.dropped.Add(1)
			return types.ErrMalformedHeader
		}
		udp = udp[:udp.Length()]
		if !validChecksum(ip, udp) {
			log.WithField("nic", nic).Debug("channel: bad udp checksum")
			e.dropped.Add(1)
			return types.ErrMalformedHeader
		}
		payload = udp.Payload()
		typ, ctx = types.NetTypeUDP, uint32(udp.DestinationPort())
	}

	pkt, err := e.buildInbound(nic, ip, udp, payload)
	if err != nil {
		e.dropped.Add(1)
		return err
	}

	if e.stack.DispatchReceive(typ, ctx, pkt) == 0 {
		log.WithFields(log.Fields{"type": typ, "ctx": ctx}).Debug("channel: no receiver")
		e.stack.Pool().Release(pkt)
		e.dropped.Add(1)
		return types.ErrBadMessage
	}
	e.received.Add(1)
	return nil
}

// buildInbound builds the chain netif -> ipv6 [-> udp] -> payload
func (e *Endpoint) buildInbound(nic types.NicId, ip header.IPv6, udp header.UDP, payload []byte) (*pktbuf.Snip, error) {
	pool := e.stack.Pool()

	pkt, err := pool.Add(nil, payload, len(payload), types.NetTypeUndef)
	if err != nil {
		return nil, err
	}

	if udp != nil {
		hdr, err := pool.Add(pkt, udp[:header.UDPMinimumSize], header.UDPMinimumSize, types.NetTypeUDP)
		if err != nil {
			pool.Release(pkt)
			return nil, err
		}
		pkt = hdr
	}

	hdr, err := pool.Add(pkt, ip[:header.IPv6MinimumSize], header.IPv6MinimumSize, types.NetTypeIPv6)
	if err != nil {
		pool.Release(pkt)
		return nil, err
	}
	pkt = hdr

	nif, err := netif.BuildHeader(pool, nil, nil)
	if err != nil {
		pool.Release(pkt)
		return nil, err
	}
	netif.SetNic(nif, nic)
	nif.Next = pkt
	return nif, nil
}

func validChecksum(ip header.IPv6, udp header.UDP) bool {
	if udp.Checksum() == 0 {
		return true
	}
	xsum := header.PseudoHeaderChecksum(header.UDPProtocolNumber, ip.SourceAddress(), ip.DestinationAddress(), uint16(len(udp)))
	xsum = header.Checksum(udp.Payload(), xsum)
	return udp.CalculateChecksum(xsum) == 0xffff
}
