// Package pktbuf implements the packet buffer: packets are chains of snips,
// each snip holding the data of one protocol (interface metadata, a network
// header, a transport header, payload). Snips are reference counted by the
// Pool they were allocated from and the pool is bounded in bytes, so a full
// pool makes allocations fail instead of growing.
//
// Ownership of a chain is held by exactly one context at a time. Handing a
// chain to another component transfers ownership; the last owner releases
// it. Release panics on a snip without users since that means a chain was
// released twice.
package pktbuf

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/buffer"
	"github.com/YaoZengzeng/sockbridge/types"
)

// Snip is one segment of a packet chain
type Snip struct {
	// Next is the following snip in the chain, nil for the last one
	Next *Snip

	// Data holds the bytes of this snip
	Data buffer.View

	// Type is the protocol the data belongs to
	Type types.NetType

	// The following fields are protected by the pool's mutex
	users int
	size  int
	pool  *Pool
}

// Size returns the length of the snip's data
func (s *Snip) Size() int {
	return len(s.Data)
}

// Users returns the number of references held on the snip
func (s *Snip) Users() int {
	if s.pool == nil {
		return 0
	}
	s.pool.mu.Lock()
	defer s.pool.mu.Unlock()
	return s.users
}

// Pool allocates snips from a fixed budget of bytes
type Pool struct {
	mu          sync.Mutex
	size        int
	used        int
	outstanding int
}

// NewPool creates a pool that can hold at most size bytes of snip data
func NewPool(size int) *Pool {
	return &Pool{size: size}
}

// Size returns the capacity of the pool in bytes
func (p *Pool) Size() int {
	return p.size
}

// Used returns the number of bytes currently allocated
func (p *Pool) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Outstanding returns the number of snips currently allocated
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// Add allocates a new snip of the given size in front of next. If data is
// non-nil it is copied into the snip, otherwise the snip is zeroed.
//
// On failure next is left untouched and still owned by the caller.
func (p *Pool) Add(next *Snip, data []byte, size int, typ types.NetType) (*Snip, error) {
	if size < 0 || (data != nil && len(data) < size) {
		panic(fmt.Sprintf("pktbuf: bad snip size %d for %d bytes of data", size, len(data)))
	}

	p.mu.Lock()
	if p.used+size > p.size {
		used := p.used
		p.mu.Unlock()
		log.WithFields(log.Fields{"size": size, "used": used, "cap": p.size}).Debug("pktbuf: allocation failed")
		return nil, types.ErrNoMemory
	}
	p.used += size
	p.outstanding++
	p.mu.Unlock()

	s := &Snip{
		Next:  next,
		Data:  buffer.NewView(size),
		Type:  typ,
		users: 1,
		size:  size,
		pool:  p,
	}
	if data != nil {
		copy(s.Data, data[:size])
	}
	return s, nil
}

// Hold adds n references to every snip of pkt
func (p *Pool) Hold(pkt *Snip, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s := pkt; s != nil; s = s.Next {
		p.check(s)
		s.users += n
	}
}

// Release drops one reference from every snip of pkt. Snips whose last
// reference is dropped are returned to the pool; the caller must not touch
// the chain afterwards
func (p *Pool) Release(pkt *Snip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for s := pkt; s != nil; {
		p.check(s)
		if s.users == 0 {
			panic(fmt.Sprintf("pktbuf: release of free %v snip", s.Type))
		}
		next := s.Next
		s.users--
		if s.users == 0 {
			p.used -= s.size
			p.outstanding--
			s.Data = nil
			s.Next = nil
		}
		s = next
	}
}

func (p *Pool) check(s *Snip) {
	if s.pool != p {
		panic("pktbuf: snip does not belong to this pool")
	}
}

// Len returns the number of data bytes in the whole chain
func Len(pkt *Snip) int {
	n := 0
	for s := pkt; s != nil; s = s.Next {
		n += len(s.Data)
	}
	return n
}

// Count returns the number of snips in the chain
func Count(pkt *Snip) int {
	n := 0
	for s := pkt; s != nil; s = s.Next {
		n++
	}
	return n
}

// Search returns the first snip of the given type, or nil
func Search(pkt *Snip, typ types.NetType) *Snip {
	for s := pkt; s != nil; s = s.Next {
		if s.Type == typ {
			return s
		}
	}
	return nil
}

// Last returns the last snip of the chain
func Last(pkt *Snip) *Snip {
	if pkt == nil {
		return nil
	}
	s := pkt
	for s.Next != nil {
		s = s.Next
	}
	return s
}

// ToVectorisedView returns the data of the chain starting at pkt as a
// vectorised view. The views alias the snips
func ToVectorisedView(pkt *Snip) buffer.VectorisedView {
	var vv buffer.VectorisedView
	for s := pkt; s != nil; s = s.Next {
		vv.AppendView(s.Data)
	}
	return vv
}

// Flatten copies the data of the chain into a single view
func Flatten(pkt *Snip) buffer.View {
	vv := ToVectorisedView(pkt)
	return vv.ToView()
}
