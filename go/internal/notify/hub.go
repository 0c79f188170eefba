package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub is a Notifier that forwards to in-process subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]func(Notification)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]func(Notification))}
}

func (h *Hub) Notify(_ context.Context, n Notification) {
	h.mu.Lock()
	subs := make([]func(Notification), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

// Subscribe adds fn. The returned func removes it.
func (h *Hub) Subscribe(fn func(Notification)) (unsubscribe func()) {
	id := uuid.New()
	h.mu.Lock()
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}
