package events

import (
	"sync"
)

const defaultBuffer = 64

// Hub fans values of T out to every current subscriber.
type Hub[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan T
	dropped uint64
	closed  bool
}

// NewHub constructs an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[uint64]chan T)}
}

// Subscribe registers a buffered subscriber. The returned function removes
// the subscription and closes the channel; calling it more than once is safe.
func (h *Hub[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan T, buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers value to every subscriber with room in its buffer.
func (h *Hub[T]) Publish(value T) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- value:
		default:
			h.dropped++
		}
	}
}

// Subscribers returns the number of attached subscribers.
func (h *Hub[T]) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (h *Hub[T]) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close detaches and closes every subscriber. Later subscriptions receive an
// already closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
