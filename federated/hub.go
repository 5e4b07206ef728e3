package federated

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSubscriptionBuffer = 8

// Hub holds the current identity and broadcasts every change.
type Hub struct {
	mu      sync.Mutex
	current *Identity
	subs    map[*Subscription]struct{}
	buffer  int
	now     func() time.Time
}

// NewHub returns a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscribe registers a subscription and immediately queues the current state.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		events: make(chan Event, h.buffer),
		done:   make(chan struct{}),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
	sub.offer(Event{Identity: h.current.clone(), At: h.now()})
	return sub
}

// Publish replaces the current identity and notifies every subscription.
func (h *Hub) Publish(identity *Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = identity.clone()
	at := h.now()
	for sub := range h.subs {
		sub.offer(Event{Identity: identity.clone(), At: at})
	}
}

// Current returns a copy of the current identity.
func (h *Hub) Current() *Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.clone()
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

// Subscription is one consumer of a [Hub].
type Subscription struct {
	id     string
	events chan Event
	done   chan struct{}
	hub    *Hub
	once   sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

// Events is closed after Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed when the subscription is released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the subscription. Further calls are no-ops.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.hub != nil {
			s.hub.remove(s)
		}
		close(s.done)
		close(s.events)
	})
}

// offer never blocks: when the buffer is full the oldest pending event is dropped.
// Called with hub.mu held, which also excludes a concurrent Close.
func (s *Subscription) offer(ev Event) {
	select {
	case s.events <- ev:
		return
	default:
	}
	select {
	case <-s.events:
	default:
	}
	select {
	case s.events <- ev:
	default:
	}
}
