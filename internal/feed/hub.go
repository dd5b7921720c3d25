// Package feed publishes the merged player state to renderers over gRPC.
package feed

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/sotamapper/internal/observability"
	"github.com/cory-johannsen/sotamapper/internal/player"
)

// Hub is a player.Notifier that remembers the latest State and fans it out to
// subscribers. Publishing never blocks: a subscriber that has not consumed
// its previous State has it replaced by the newer one.
//
// Invariant: each subscriber channel holds at most one pending State.
type Hub struct {
	logger  *zap.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	latest player.Opt[player.State]
	subs   map[uint64]chan player.State
	nextID uint64
}

// NewHub creates a Hub with no State and no subscribers.
//
// Precondition: logger must be non-nil; metrics may be nil.
func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		logger:  logger,
		metrics: metrics,
		subs:    make(map[uint64]chan player.State),
	}
}

// OnPlayerStateChanged implements player.Notifier.
func (h *Hub) OnPlayerStateChanged(s player.State) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = player.Some(s)
	for id, ch := range h.subs {
		select {
		case ch <- s:
		default:
			// Replace the stale pending State. Only the publisher sends, and
			// it holds mu, so the second send cannot block.
			select {
			case <-ch:
			default:
			}
			ch <- s
			h.logger.Debug("subscriber lagging, replaced pending state", zap.Uint64("subscriber", id))
		}
	}
}

// Latest returns the most recently published State.
//
// Postcondition: ok is false until the first publication.
func (h *Hub) Latest() (player.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest.Get()
}

// Subscribe registers a subscriber. The channel is primed with the latest
// State when one exists. The returned cancel func unregisters the subscriber
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan player.State, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan player.State, 1)
	if s, ok := h.latest.Get(); ok {
		ch <- s
	}
	h.subs[id] = ch
	h.metrics.AddSubscribers(1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
			h.metrics.AddSubscribers(-1)
		})
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
