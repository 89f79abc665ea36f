package stack

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/types"
)

// Nic represents a "network interface card" to which the networking stack is
// attached. The stack only keeps the addresses assigned to it; moving frames
// is the job of the link endpoint that created it
type Nic struct {
	id   types.NicId
	name string

	mu    sync.RWMutex
	addrs map[types.Address]struct{}
}

// Id returns the identifier of the nic
func (n *Nic) Id() types.NicId {
	return n.id
}

// Name returns the name of the nic
func (n *Nic) Name() string {
	return n.name
}

// hasAddress reports whether addr is assigned to the nic
func (n *Nic) hasAddress(addr types.Address) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.addrs[addr]
	return ok
}

// Addresses returns the addresses assigned to the nic
func (n *Nic) Addresses() []types.Address {
	n.mu.RLock()
	defer n.mu.RUnlock()
	addrs := make([]types.Address, 0, len(n.addrs))
	for a := range n.addrs {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

type nicTable struct {
	mu   sync.RWMutex
	nics map[types.NicId]*Nic
}

func newNicTable() *nicTable {
	return &nicTable{nics: make(map[types.NicId]*Nic)}
}

// CreateNic creates a nic with the given id. NicAny can not be used
func (s *Stack) CreateNic(id types.NicId, name string) (*Nic, error) {
	if id == types.NicAny {
		return nil, types.ErrUnknownNicId
	}

	s.nics.mu.Lock()
	defer s.nics.mu.Unlock()

	if _, ok := s.nics.nics[id]; ok {
		return nil, types.ErrDuplicateNicId
	}

	n := &Nic{
		id:    id,
		name:  name,
		addrs: make(map[types.Address]struct{}),
	}
	s.nics.nics[id] = n

	log.WithFields(log.Fields{"nic": id, "name": name}).Debug("stack: nic created")
	return n, nil
}

// Nic returns the nic with the given id
func (s *Stack) Nic(id types.NicId) (*Nic, bool) {
	s.nics.mu.RLock()
	defer s.nics.mu.RUnlock()
	n, ok := s.nics.nics[id]
	return n, ok
}

// AddAddress adds a new address to the nic, so that it starts accepting
// packets targeted at it
func (s *Stack) AddAddress(id types.NicId, addr types.Address) error {
	n, ok := s.Nic(id)
	if !ok {
		return types.ErrUnknownNicId
	}
	if addr == "" {
		return types.ErrBadAddress
	}

	n.mu.Lock()
	n.addrs[addr] = struct{}{}
	n.mu.Unlock()

	log.WithFields(log.Fields{"nic": id, "addr": addr}).Debug("stack: address added")
	return nil
}

// FindNic returns the nic the address is assigned to
func (s *Stack) FindNic(addr types.Address) (types.NicId, bool) {
	s.nics.mu.RLock()
	defer s.nics.mu.RUnlock()
	for id, n := range s.nics.nics {
		if n.hasAddress(addr) {
			return id, true
		}
	}
	return types.NicAny, false
}
