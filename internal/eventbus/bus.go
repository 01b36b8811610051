package eventbus

import (
	"context"
	"log"
	"sync"
	"time"
)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-process, synchronous pub/sub bus. A nil *Bus is valid and discards
// everything published to it.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscription
}

func New() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers handler for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers one handler for every topic in topics.
func (b *Bus) SubscribeAll(handler Handler, topics ...Topic) (unsubscribe func()) {
	cancels := make([]func(), 0, len(topics))
	for _, t := range topics {
		cancels = append(cancels, b.Subscribe(t, handler))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Publish delivers payload to the subscribers of topic, in subscription order, on
// the caller's goroutine. The run ID is taken from ctx. A panicking handler is
// logged and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, topic Topic, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := b.subs[topic]
	b.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	event := Event{
		Topic:     topic,
		RunID:     RunIDFrom(ctx),
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, s := range subs {
		deliver(s.handler, event)
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[eventbus] handler for %s panicked: %v", e.Topic, r)
		}
	}()
	h(e)
}
