package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFires(t *testing.T) {
	fired := make(chan interface{}, 1)
	tm := Timer{Callback: func(arg interface{}) { fired <- arg }, Arg: "x"}

	before := time.Now()
	tm.Set(20000)

	select {
	case arg := <-fired:
		if arg != "x" {
			t.Fatalf("callback arg = %v, want x", arg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
	if d := time.Since(before); d < 15*time.Millisecond {
		t.Fatalf("timer fired after %v, want at least 15ms", d)
	}
	if tm.Remove() {
		t.Fatalf("Remove() = true after the timer fired")
	}
}

func TestRemovePreventsCallback(t *testing.T) {
	var calls int32
	tm := Timer{Callback: func(interface{}) { atomic.AddInt32(&calls, 1) }}

	tm.Set(50000)
	if !tm.Remove() {
		t.Fatalf("Remove() = false for a pending timer")
	}
	time.Sleep(80 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("callback ran %d times after Remove", n)
	}
	if tm.Remove() {
		t.Fatalf("second Remove() = true")
	}
}

func TestSetReplaces(t *testing.T) {
	var calls int32
	tm := Timer{Callback: func(interface{}) { atomic.AddInt32(&calls, 1) }}

	tm.Set(1000000)
	tm.Set(10000)
	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("callback ran %d times, want 1", n)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(1500); got != 1500*time.Microsecond {
		t.Fatalf("Duration(1500) = %v", got)
	}
}
