// Package neterr reports the outcome of sends back to the task that issued
// them. A sender subscribes its inbox to the chain before dispatching it; the
// layer that finally consumes the chain reports a status for it, which is
// delivered as an mbox.ErrReportMsg.
package neterr

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/YaoZengzeng/sockbridge/mbox"
	"github.com/YaoZengzeng/sockbridge/pktbuf"
)

// Success is the status reported for a packet that was sent
const Success uint32 = 0

// Reporter tracks which inboxes wait for a report on which snips
type Reporter struct {
	mu   sync.Mutex
	subs map[*pktbuf.Snip][]*mbox.Mailbox
}

// NewReporter creates an empty Reporter
func NewReporter() *Reporter {
	return &Reporter{subs: make(map[*pktbuf.Snip][]*mbox.Mailbox)}
}

// Reg subscribes inbox to a report on pkt. The subscription is attached to
// the head snip, so it survives lower layers prepending their own headers
func (r *Reporter) Reg(pkt *pktbuf.Snip, inbox *mbox.Mailbox) {
	if pkt == nil || inbox == nil {
		panic("neterr: nil packet or inbox")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[pkt] = append(r.subs[pkt], inbox)
}

// Subscribed reports whether any snip of pkt has a subscriber
func (r *Reporter) Subscribed(pkt *pktbuf.Snip) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := pkt; s != nil; s = s.Next {
		if len(r.subs[s]) != 0 {
			return true
		}
	}
	return false
}

type target struct {
	inbox *mbox.Mailbox
	snip  *pktbuf.Snip
}

// Report delivers status to every inbox subscribed to a snip of pkt and
// removes the subscriptions. It must be called before pkt is released.
// It never blocks: a report for a full inbox joins the inbox's overflow
func (r *Reporter) Report(pkt *pktbuf.Snip, status uint32) int {
	var targets []target

	r.mu.Lock()
	for s := pkt; s != nil; s = s.Next {
		if subs, ok := r.subs[s]; ok {
			for _, inbox := range subs {
				targets = append(targets, target{inbox, s})
			}
			delete(r.subs, s)
		}
	}
	r.mu.Unlock()

	for _, t := range targets {
		t.inbox.Post(mbox.ErrReportMsg{Status: status, Pkt: t.snip})
	}
	if len(targets) != 0 {
		log.WithFields(log.Fields{"status": status, "subscribers": len(targets)}).Debug("neterr: reported")
	}
	return len(targets)
}

// Forget drops the subscriptions on pkt without reporting
func (r *Reporter) Forget(pkt *pktbuf.Snip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := pkt; s != nil; s = s.Next {
		delete(r.subs, s)
	}
}

// Pending returns the number of snips with subscribers
func (r *Reporter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
