// Package stack provides the glue between networking protocols and the
// consumers of the networking stack.
//
// A Stack owns the packet pool, the demultiplexing registry that routes
// packets by (net type, demux context) to mailboxes, the header builders of
// the supported address families and, when enabled, the send-completion
// reporter.
package stack

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/neterr"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
	"github.com/YaoZengzeng/sockbridge/types"
)

const (
	// DefaultMboxSize is the capacity of registration mailboxes
	DefaultMboxSize = 8

	// DefaultPoolSize is the size, in bytes, of the packet pool
	DefaultPoolSize = 6144
)

// Options configures a Stack. Zero values select the defaults
type Options struct {
	// MboxSize is the capacity of registration mailboxes. It must be a
	// power of two
	MboxSize int

	// PoolSize is the size, in bytes, of the packet pool
	PoolSize int

	// ErrorReports enables send-completion reports
	ErrorReports bool
}

// Stack is a networking stack, with its packet pool, demultiplexing registry
// and header builders
type Stack struct {
	opts     Options
	pool     *pktbuf.Pool
	demux    *demuxer
	reporter *neterr.Reporter
	builders map[types.AddressFamily]HeaderBuilder
	nics     *nicTable
}

// New allocates a new networking stack with every registered header builder.
// It panics if opts.MboxSize is not a power of two
func New(opts Options) *Stack {
	if opts.MboxSize == 0 {
		opts.MboxSize = DefaultMboxSize
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = DefaultPoolSize
	}
	if !mbox.IsPowerOfTwo(opts.MboxSize) {
		panic(fmt.Sprintf("stack: mailbox size %d is not a power of two", opts.MboxSize))
	}

	s := &Stack{
		opts:     opts,
		pool:     pktbuf.NewPool(opts.PoolSize),
		demux:    newDemuxer(),
		builders: newHeaderBuilders(),
		nics:     newNicTable(),
	}
	if opts.ErrorReports {
		s.reporter = neterr.NewReporter()
	}

	log.WithFields(log.Fields{
		"mbox":    opts.MboxSize,
		"pool":    opts.PoolSize,
		"neterr":  opts.ErrorReports,
		"builder": len(s.builders),
	}).Debug("stack: created")

	return s
}

// Pool returns the packet pool
func (s *Stack) Pool() *pktbuf.Pool {
	return s.pool
}

// MboxSize returns the capacity of registration mailboxes
func (s *Stack) MboxSize() int {
	return s.opts.MboxSize
}

// NetErr returns the send-completion reporter, or nil when reports are
// disabled
func (s *Stack) NetErr() *neterr.Reporter {
	return s.reporter
}

// HeaderBuilder returns the header builder of an address family
func (s *Stack) HeaderBuilder(family types.AddressFamily) (HeaderBuilder, bool) {
	b, ok := s.builders[family]
	return b, ok
}

// Register registers e under typ so that packets dispatched to
// (typ, e.DemuxCtx) are delivered to e.Target
func (s *Stack) Register(typ types.NetType, e *Entry) {
	s.demux.register(typ, e)
}

// Unregister removes e from the registry
func (s *Stack) Unregister(e *Entry) {
	s.demux.unregister(e)
}

// NumOf returns the number of entries registered for (typ, ctx)
func (s *Stack) NumOf(typ types.NetType, ctx uint32) int {
	return s.demux.numOf(typ, ctx)
}

// Lookup returns the entries registered for (typ, ctx) in registration order
func (s *Stack) Lookup(typ types.NetType, ctx uint32) []*Entry {
	return s.demux.lookup(typ, ctx)
}
