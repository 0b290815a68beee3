package loop

import (
	"testing"
	"time"
)

func TestManualPostRunsOnDrain(t *testing.T) {
	m := NewManual()

	ran := 0
	m.Post(func() {
		ran++
		m.Post(func() { ran++ })
	})
	if ran != 0 {
		t.Fatal("Post must not run work before Drain")
	}

	m.Drain()
	if ran != 2 {
		t.Errorf("expected nested posts to drain, ran=%d", ran)
	}
}

func TestManualAdvanceFiresInDeadlineOrder(t *testing.T) {
	m := NewManual()

	var order []string
	m.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	m.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(200*time.Millisecond, func() {
		order = append(order, "b")
		// Scheduled inside the window: fires during the same Advance.
		m.AfterFunc(50*time.Millisecond, func() { order = append(order, "b2") })
	})

	m.Advance(250 * time.Millisecond)
	want := []string{"a", "b", "b2"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
	if m.Now() != 250*time.Millisecond {
		t.Errorf("clock = %v, want 250ms", m.Now())
	}
	if m.PendingTimers() != 1 {
		t.Errorf("expected 1 pending timer, got %d", m.PendingTimers())
	}

	m.Advance(time.Second)
	if order[len(order)-1] != "c" {
		t.Errorf("expected last timer to fire, got %v", order)
	}
}

func TestManualStop(t *testing.T) {
	m := NewManual()

	fired := false
	stop := m.AfterFunc(time.Millisecond, func() { fired = true })
	if !stop() {
		t.Error("first stop should succeed")
	}
	if stop() {
		t.Error("second stop should report already stopped")
	}

	m.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}

	stop = m.AfterFunc(time.Millisecond, func() {})
	m.Advance(time.Second)
	if stop() {
		t.Error("stop after firing should return false")
	}
}
