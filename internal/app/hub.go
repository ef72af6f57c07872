package app

import (
	"sync"

	"github.com/relabs-tech/watch_companion/internal/activity"
)

// Snapshot is the combined view served to the web page and the display.
type Snapshot struct {
	Companion     CompanionState  `json:"companion"`
	HaveCompanion bool            `json:"have_companion"`
	Worker        activity.Status `json:"worker"`
	HaveWorker    bool            `json:"have_worker"`
}

// Hub keeps the latest companion and worker status and fans updates out to
// subscribers. A slow subscriber only ever sees the newest snapshot.
type Hub struct {
	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Snapshot]struct{})}
}

func (h *Hub) SetCompanion(s CompanionState) {
	h.mu.Lock()
	h.snap.Companion = s
	h.snap.HaveCompanion = true
	h.broadcastLocked()
	h.mu.Unlock()
}

func (h *Hub) SetWorker(s activity.Status) {
	h.mu.Lock()
	h.snap.Worker = s
	h.snap.HaveWorker = true
	h.broadcastLocked()
	h.mu.Unlock()
}

func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

// Subscribe returns a channel of snapshots and a function that ends the
// subscription.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) broadcastLocked() {
	for ch := range h.subs {
		// drop the stale snapshot, if any
		select {
		case <-ch:
		default:
		}
		ch <- h.snap
	}
}
