// Package ws delivers run lifecycle events to websocket subscribers. The
// hub is one possible transport behind the engine's Broadcaster; the engine
// never depends on it.
package ws

import (
	"sync"
	"time"
)

// completedRunRetention keeps a finished run's feed open briefly so late
// subscribers and in-flight writes drain before channels close.
const completedRunRetention = 30 * time.Second

type subscriber struct {
	ch chan any
}

// Hub fans events out to per-run subscribers. Sends never block: a slow
// subscriber drops events rather than stalling the run.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a buffered feed for one run. The returned cancel
// func is idempotent and closes the channel.
func (h *Hub) Subscribe(runID string, size int) (<-chan any, func()) {
	if size <= 0 {
		size = 1
	}
	sub := &subscriber{ch: make(chan any, size)}
	h.mu.Lock()
	set, ok := h.subs[runID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[runID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[runID]; ok {
				if _, live := set[sub]; live {
					delete(set, sub)
					close(sub.ch)
				}
				if len(set) == 0 {
					delete(h.subs, runID)
				}
			}
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Broadcast delivers one event to every subscriber of the run. When
// terminal is set, the run's feeds are torn down after a retention window.
func (h *Hub) Broadcast(runID string, event any, terminal bool) {
	h.mu.Lock()
	for sub := range h.subs[runID] {
		select {
		case sub.ch <- event:
		default: // non-blocking
		}
	}
	h.mu.Unlock()

	if terminal {
		time.AfterFunc(completedRunRetention, func() { h.closeRun(runID) })
	}
}

func (h *Hub) closeRun(runID string) {
	h.mu.Lock()
	set := h.subs[runID]
	delete(h.subs, runID)
	h.mu.Unlock()
	for sub := range set {
		close(sub.ch)
	}
}
