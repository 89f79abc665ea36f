package stack

import (
	"sync"

	"github.com/google/btree"
	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/types"
)

// DemuxCtxAll is the demultiplexing context matching every packet of a type
const DemuxCtxAll uint32 = 0xffff0000

// Entry ties a demultiplexing context to the mailbox that packets for it are
// delivered to. An Entry is registered under one net type at a time
type Entry struct {
	DemuxCtx uint32
	Target   *mbox.Mailbox

	typ types.NetType
	seq uint64
}

// Registered reports whether e is currently registered
func (e *Entry) Registered() bool {
	return e.seq != 0
}

func entryLess(a, b *Entry) bool {
	if a.DemuxCtx != b.DemuxCtx {
		return a.DemuxCtx < b.DemuxCtx
	}
	return a.seq < b.seq
}

// demuxer maps (net type, demux context) keys to the entries registered for
// them. Each net type has its own tree ordered by context, then by
// registration order, so lookups return targets in the order they
// registered
type demuxer struct {
	mu    sync.RWMutex
	seq   uint64
	types map[types.NetType]*btree.BTreeG[*Entry]
}

func newDemuxer() *demuxer {
	return &demuxer{types: make(map[types.NetType]*btree.BTreeG[*Entry])}
}

// register adds e under typ. Registering an entry again moves it to the new
// key
func (d *demuxer) register(typ types.NetType, e *Entry) {
	if e == nil || e.Target == nil {
		panic("stack: register entry without target")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if e.seq != 0 {
		log.WithFields(log.Fields{"type": e.typ, "ctx": e.DemuxCtx}).Warn("stack: entry registered twice")
		d.unregisterLocked(e)
	}

	t, ok := d.types[typ]
	if !ok {
		t = btree.NewG[*Entry](8, entryLess)
		d.types[typ] = t
	}

	d.seq++
	e.typ = typ
	e.seq = d.seq
	t.ReplaceOrInsert(e)
}

// unregister removes e. Unregistering an entry that is not registered does
// nothing
func (d *demuxer) unregister(e *Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.unregisterLocked(e)
}

func (d *demuxer) unregisterLocked(e *Entry) {
	if e.seq == 0 {
		return
	}
	if t, ok := d.types[e.typ]; ok {
		t.Delete(e)
		if t.Len() == 0 {
			delete(d.types, e.typ)
		}
	}
	e.seq = 0
}

// each calls f for every entry registered for (typ, ctx) until f returns
// false
func (d *demuxer) each(typ types.NetType, ctx uint32, f func(*Entry) bool) {
	t, ok := d.types[typ]
	if !ok {
		return
	}
	t.AscendGreaterOrEqual(&Entry{DemuxCtx: ctx}, func(e *Entry) bool {
		if e.DemuxCtx != ctx {
			return false
		}
		return f(e)
	})
}

func (d *demuxer) numOf(typ types.NetType, ctx uint32) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	d.each(typ, ctx, func(*Entry) bool {
		n++
		return true
	})
	return n
}

func (d *demuxer) lookup(typ types.NetType, ctx uint32) []*Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var entries []*Entry
	d.each(typ, ctx, func(e *Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries
}
