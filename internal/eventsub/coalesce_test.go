package eventsub

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCoalescerFiresAfterGrace(t *testing.T) {
	c := NewCoalescer(20 * time.Millisecond)
	defer c.Stop()

	var fired atomic.Int32
	c.Schedule("user1", func() { fired.Add(1) })

	if got := fired.Load(); got != 0 {
		t.Fatalf("fired %d times before grace window, want 0", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("fired %d times after grace window, want 1", got)
	}
}

func TestCoalescerCancelPreventsFire(t *testing.T) {
	c := NewCoalescer(20 * time.Millisecond)
	defer c.Stop()

	var fired atomic.Int32
	c.Schedule("user1", func() { fired.Add(1) })

	if !c.Cancel("user1") {
		t.Fatal("Cancel returned false for a pending action")
	}

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("fired %d times after cancel, want 0", got)
	}
}

func TestCoalescerCancelUnknownUser(t *testing.T) {
	c := NewCoalescer(20 * time.Millisecond)
	defer c.Stop()

	if c.Cancel("nobody") {
		t.Fatal("Cancel returned true with nothing pending")
	}
}

func TestCoalescerRescheduleReplaces(t *testing.T) {
	c := NewCoalescer(20 * time.Millisecond)
	defer c.Stop()

	var first, second atomic.Int32
	c.Schedule("user1", func() { first.Add(1) })
	c.Schedule("user1", func() { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if got := first.Load(); got != 0 {
		t.Fatalf("replaced action fired %d times, want 0", got)
	}
	if got := second.Load(); got != 1 {
		t.Fatalf("replacement fired %d times, want 1", got)
	}
}

func TestCoalescerStopCancelsAll(t *testing.T) {
	c := NewCoalescer(20 * time.Millisecond)

	var fired atomic.Int32
	c.Schedule("user1", func() { fired.Add(1) })
	c.Schedule("user2", func() { fired.Add(1) })
	c.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("fired %d times after Stop, want 0", got)
	}
}
