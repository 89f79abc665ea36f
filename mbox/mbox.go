// Package mbox implements bounded mailboxes: fixed capacity FIFO queues of
// tagged messages that tasks use to talk to each other. The capacity is a
// power of two so the ring indices can be masked.
//
// TryPut never blocks and never fails other than by reporting a full queue,
// which makes it safe to call from timer callbacks. Messages put into a full
// mailbox wait in an overflow list behind the queued ones and move in as
// receivers free slots; selective receives see them too.
package mbox

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/constraints"

	"github.com/YaoZengzeng/sockbridge/waiter"
)

// IsPowerOfTwo reports whether v is a positive power of two
func IsPowerOfTwo[T constraints.Integer](v T) bool {
	return v > 0 && v&(v-1) == 0
}

// Mailbox is a bounded FIFO of messages. The zero value is not usable until
// Init is called
type Mailbox struct {
	mu    sync.Mutex
	buf   []Msg
	mask  int
	head  int
	count int

	// overflow is non-empty only while the ring is full
	overflow []overflowMsg

	waiters waiter.Queue
}

type overflowMsg struct {
	msg Msg

	// done is closed once msg is in the ring or taken. nil for Post
	done chan struct{}
}

// Init (re)initializes the mailbox with room for capacity messages. Queued
// messages are dropped. It panics if capacity is not a power of two
func (m *Mailbox) Init(capacity int) {
	if !IsPowerOfTwo(capacity) {
		panic(fmt.Sprintf("mbox: capacity %d is not a power of two", capacity))
	}
	m.mu.Lock()
	m.buf = make([]Msg, capacity)
	m.mask = capacity - 1
	m.head = 0
	m.count = 0
	for _, o := range m.overflow {
		o.release()
	}
	m.overflow = nil
	m.mu.Unlock()
	m.waiters.Notify(waiter.EventOut)
}

// Valid reports whether the mailbox has been initialized with a power of two
// capacity
func (m *Mailbox) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf != nil && m.mask == len(m.buf)-1 && IsPowerOfTwo(len(m.buf))
}

// Cap returns the capacity of the mailbox
func (m *Mailbox) Cap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buf)
}

// Len returns the number of queued messages, not counting the overflow
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Overflow returns the number of messages waiting for room
func (m *Mailbox) Overflow() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.overflow)
}

// TryPut queues msg if there is room. It returns false if the mailbox is
// full or uninitialized
func (m *Mailbox) TryPut(msg Msg) bool {
	m.mu.Lock()
	if m.buf == nil || m.count == len(m.buf) {
		m.mu.Unlock()
		return false
	}
	m.buf[(m.head+m.count)&m.mask] = msg
	m.count++
	m.mu.Unlock()

	m.waiters.Notify(waiter.EventIn)
	return true
}

// Put queues msg, blocking while the mailbox is full. A receiver that takes
// a message hands the freed slot to the oldest blocked Put
func (m *Mailbox) Put(msg Msg) {
	done := make(chan struct{})
	if m.post(msg, done) {
		return
	}
	<-done
}

// Post queues msg without blocking. If the mailbox is full msg joins the
// overflow and is delivered in order as slots free up
func (m *Mailbox) Post(msg Msg) {
	m.post(msg, nil)
}

// post reports whether msg went straight into the ring
func (m *Mailbox) post(msg Msg, done chan struct{}) bool {
	m.mu.Lock()
	queued := m.buf != nil && m.count < len(m.buf)
	if queued {
		m.buf[(m.head+m.count)&m.mask] = msg
		m.count++
	} else {
		m.overflow = append(m.overflow, overflowMsg{msg: msg, done: done})
	}
	m.mu.Unlock()

	m.waiters.Notify(waiter.EventIn)
	return queued
}

func (o overflowMsg) release() {
	if o.done != nil {
		close(o.done)
	}
}

// TryGet dequeues the oldest message. ok is false if the mailbox is empty
func (m *Mailbox) TryGet() (msg Msg, ok bool) {
	return m.tryGetFunc(nil)
}

// Get dequeues the oldest message, blocking until one is queued
func (m *Mailbox) Get() Msg {
	return m.GetFunc(nil)
}

// GetFunc dequeues the oldest message for which match returns true, blocking
// until one is queued. Messages that do not match stay queued in their
// original order. A nil match accepts any message. match runs with the
// mailbox locked and must not call into it
func (m *Mailbox) GetFunc(match func(Msg) bool) Msg {
	if msg, ok := m.tryGetFunc(match); ok {
		return msg
	}

	e, ch := waiter.NewChannelEntry(nil)
	m.waiters.EventRegister(&e, waiter.EventIn)
	defer m.waiters.EventUnregister(&e)

	for {
		if msg, ok := m.tryGetFunc(match); ok {
			return msg
		}
		<-ch
	}
}

// GetContext dequeues the oldest message, blocking until one is queued or
// ctx is done
func (m *Mailbox) GetContext(ctx context.Context) (Msg, error) {
	if msg, ok := m.tryGetFunc(nil); ok {
		return msg, nil
	}

	e, ch := waiter.NewChannelEntry(nil)
	m.waiters.EventRegister(&e, waiter.EventIn)
	defer m.waiters.EventUnregister(&e)

	for {
		if msg, ok := m.tryGetFunc(nil); ok {
			return msg, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Drain dequeues every queued message, overflow included, and passes it to f
func (m *Mailbox) Drain(f func(Msg)) {
	for {
		msg, ok := m.TryGet()
		if !ok {
			return
		}
		f(msg)
	}
}

func (m *Mailbox) tryGetFunc(match func(Msg) bool) (Msg, bool) {
	m.mu.Lock()
	for i := 0; i < m.count; i++ {
		idx := (m.head + i) & m.mask
		msg := m.buf[idx]
		if match != nil && !match(msg) {
			continue
		}
		if i == 0 {
			m.buf[idx] = nil
			m.head = (m.head + 1) & m.mask
		} else {
			// Close the gap so the remaining messages keep their order.
			for j := i; j < m.count-1; j++ {
				m.buf[(m.head+j)&m.mask] = m.buf[(m.head+j+1)&m.mask]
			}
			m.buf[(m.head+m.count-1)&m.mask] = nil
		}
		m.count--

		if len(m.overflow) != 0 {
			o := m.overflow[0]
			m.overflow = m.overflow[1:]
			m.buf[(m.head+m.count)&m.mask] = o.msg
			m.count++
			o.release()
		}
		m.mu.Unlock()

		m.waiters.Notify(waiter.EventOut)
		return msg, true
	}

	for i, o := range m.overflow {
		if match != nil && !match(o.msg) {
			continue
		}
		m.overflow = append(m.overflow[:i], m.overflow[i+1:]...)
		o.release()
		m.mu.Unlock()
		return o.msg, true
	}
	m.mu.Unlock()
	return nil, false
}
