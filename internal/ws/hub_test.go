package ws

import (
	"testing"
	"time"
)

func TestHubDeliversToRunSubscribers(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("r1", 4)
	defer cancel()
	other, cancelOther := h.Subscribe("r2", 4)
	defer cancelOther()

	h.Broadcast("r1", "hello", false)

	select {
	case got := <-ch:
		if got != "hello" {
			t.Fatalf("got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case got := <-other:
		t.Fatalf("cross-run delivery: %v", got)
	default:
	}
}

func TestHubSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("r1", 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.Broadcast("r1", 1, false)
		h.Broadcast("r1", 2, false)
		h.Broadcast("r1", 3, false)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
}

func TestHubCancelIsIdempotent(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("r1", 1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// broadcasting after cancel must not panic
	h.Broadcast("r1", "x", false)
}
