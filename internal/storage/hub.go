package storage

import (
	"context"
	"sync"

	"guest-checkin/internal/models"
)

const subscriberBuffer = 64

// Hub fans change events out to in-process subscribers.
// A subscriber that falls behind loses events and receives a resync before the next one.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch     chan models.ChangeEvent
	lagged bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber until ctx is done
func (h *Hub) Subscribe(ctx context.Context) <-chan models.ChangeEvent {
	sub := &subscriber{ch: make(chan models.ChangeEvent, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.ch)
		h.mu.Unlock()
	}()
	return sub.ch
}

// Publish delivers ev to every subscriber without blocking
func (h *Hub) Publish(ev models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if sub.lagged {
			select {
			case sub.ch <- models.ChangeEvent{Type: models.ChangeResync}:
				sub.lagged = false
			default:
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			sub.lagged = true
		}
	}
}

// Subscribers returns the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
