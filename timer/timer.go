// Package timer provides one-shot timers with microsecond offsets. Callbacks
// run on their own goroutine, outside of the task that armed the timer, and
// must not block
package timer

import (
	"sync"
	"time"
)

// Duration converts a microsecond offset into a time.Duration
func Duration(us uint32) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// Timer is a one-shot timer. Callback and Arg must be set before Set is
// called. The zero value is an unarmed timer
type Timer struct {
	Callback func(arg interface{})
	Arg      interface{}

	mu sync.Mutex
	t  *time.Timer
}

// Set arms the timer to fire offset microseconds from now. A pending
// expiry is replaced
func (t *Timer) Set(offset uint32) {
	if t.Callback == nil {
		panic("timer: nil callback")
	}
	cb, arg := t.Callback, t.Arg

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.t = time.AfterFunc(Duration(offset), func() { cb(arg) })
}

// Remove disarms the timer. It returns true if this prevented the callback
// from running; false means the callback already ran, is running, or the
// timer was never armed
func (t *Timer) Remove() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t == nil {
		return false
	}
	stopped := t.t.Stop()
	t.t = nil
	return stopped
}
