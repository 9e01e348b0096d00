package realtime

import (
	"context"
	"sync"

	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// Handler must not block; slow work belongs on the handler's own goroutine.
type Handler func(ctx context.Context, ev Event)

// Publisher is the narrow view producers depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type subscription struct {
	id uint64
	h  Handler
}

// Bus is an in-process publish/subscribe point. Handlers for a kind run
// synchronously, in subscription order, on the publisher's goroutine.
type Bus struct {
	log *logger.Logger

	mu     sync.RWMutex
	nextID uint64
	byKind map[Kind][]subscription
	all    []subscription
	closed bool
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		log:    log.With("component", "EventBus"),
		byKind: make(map[Kind][]subscription),
	}
}

// Subscribe registers h for one kind and returns its unsubscribe func.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byKind[kind] = append(b.byKind[kind], subscription{id: id, h: h})
	return func() { b.unsubscribe(kind, id) }
}

// SubscribeAll registers h for every kind.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, h: h})
	return func() { b.unsubscribe("", id) }
}

func (b *Bus) unsubscribe(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if kind == "" {
		b.all = removeSub(b.all, id)
		return
	}
	b.byKind[kind] = removeSub(b.byKind[kind], id)
	if len(b.byKind[kind]) == 0 {
		delete(b.byKind, kind)
	}
}

func removeSub(subs []subscription, id uint64) []subscription {
	out := subs[:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.byKind[ev.Kind])+len(b.all))
	for _, s := range b.byKind[ev.Kind] {
		handlers = append(handlers, s.h)
	}
	for _, s := range b.all {
		handlers = append(handlers, s.h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, ev)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event handler panic", "kind", ev.Kind, "panic", r)
		}
	}()
	h(ctx, ev)
}

// Close drops every subscription; later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.byKind = make(map[Kind][]subscription)
	b.all = nil
}
