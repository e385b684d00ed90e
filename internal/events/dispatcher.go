package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Handler receives published status changes. Errors are logged, never returned
// to the publisher.
type Handler func(context.Context, StatusChange) error

// Publisher is the narrow interface services depend on.
type Publisher interface {
	Publish(ctx context.Context, ev StatusChange)
}

// Dispatcher fans status changes out to subscribers.
type Dispatcher interface {
	Publisher
	Subscribe(h Handler) (unsubscribe func())
}

type inMemoryDispatcher struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handler
	log    *slog.Logger
}

// NewInMemoryDispatcher returns a synchronous dispatcher. Subscribers run in
// registration order on the publisher's goroutine and must not block.
func NewInMemoryDispatcher(log *slog.Logger) Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &inMemoryDispatcher{subs: make(map[int]Handler), log: log}
}

func (d *inMemoryDispatcher) Publish(ctx context.Context, ev StatusChange) {
	d.mu.RLock()
	ids := make([]int, 0, len(d.subs))
	for id := range d.subs {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, d.subs[id])
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			d.log.Warn("status change subscriber failed", "entity", ev.Entity, "entity_id", ev.EntityID, "err", err)
		}
	}
}

func (d *inMemoryDispatcher) Subscribe(h Handler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = h
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, StatusChange) {}
