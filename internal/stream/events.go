// Package stream provides asynchronous event distribution from the engine
// to control and UI layers.
package stream

import (
	"sync"
	"time"

	"paper-trader/internal/models"
)

// ExitEvent announces a closed position. The engine publishes these so the
// surrounding control layer can consume exits asynchronously instead of
// being called back under engine locks.
type ExitEvent struct {
	Trade models.ClosedTrade
	// Cycle identifies the monitor cycle that produced the exit; zero for
	// manual closes.
	Cycle uint64
}

// HubConfig holds configuration for the event hub.
type HubConfig struct {
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{SubscriberBufferSize: 100}
}

// Hub fans out exit events to multiple subscribers. Publishing never
// blocks: a subscriber that cannot keep up drops events and the drop is
// counted against it.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	published uint64
	dropped   uint64
}

type subscriber struct {
	ch        chan ExitEvent
	dropped   int
	createdAt time.Time
}

// NewHub creates a new event hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a new event hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = 1
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a subscriber and returns its event channel. The
// channel is closed when the subscriber unsubscribes or the hub closes.
func (h *Hub) Subscribe(id string) <-chan ExitEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		ch := make(chan ExitEvent)
		close(ch)
		return ch
	}

	if existing, ok := h.subscribers[id]; ok {
		return existing.ch
	}

	sub := &subscriber{
		ch:        make(chan ExitEvent, h.config.SubscriberBufferSize),
		createdAt: time.Now(),
	}
	h.subscribers[id] = sub
	return sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(sub.ch)
	}
}

// Publish delivers an event to every subscriber without blocking.
func (h *Hub) Publish(event ExitEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.published++
	for _, sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			sub.dropped++
			h.dropped++
		}
	}
}

// Stats returns hub counters.
func (h *Hub) Stats() (published, dropped uint64, subscribers int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.published, h.dropped, len(h.subscribers)
}

// Close shuts the hub down and closes all subscriber channels. It is
// idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.ch)
	}
}
