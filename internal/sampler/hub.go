package sampler

import (
	"sync"
	"time"

	"github.com/aleister1102/hostpulse/internal/models"
)

// Hub holds the latest published snapshot and fans it out to subscribers.
// A subscriber channel has a buffer of one; a slow reader only ever sees
// the newest snapshot.
type Hub struct {
	mu     sync.RWMutex
	latest models.Snapshot
	subs   map[chan models.Snapshot]struct{}
	closed bool
	now    func() time.Time
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan models.Snapshot]struct{}),
		now:  time.Now,
	}
}

// Update applies fn to the snapshot, stamps it and broadcasts a copy.
func (h *Hub) Update(fn func(s *models.Snapshot)) models.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return h.latest.Clone()
	}
	fn(&h.latest)
	h.latest.UpdatedAt = h.now()

	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- h.latest.Clone():
		default:
		}
	}
	return h.latest.Clone()
}

// Latest returns a copy of the current snapshot.
func (h *Hub) Latest() models.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest.Clone()
}

// Subscribe returns a channel that receives a snapshot after every update.
// The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() <-chan models.Snapshot {
	ch := make(chan models.Snapshot, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(sub <-chan models.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		if ch == sub {
			delete(h.subs, ch)
			close(ch)
			return
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription. Later updates are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
