package main

import (
	"context"
	"errors"
	"sync"
)

const defaultQueueSize = 16

var ErrBusClosed = errors.New("event bus closed")

// Bus is the bounded, ordered hand-off between producers and the router.
// A full bus blocks publishers instead of dropping events.
type Bus struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func NewBus(size int) *Bus {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Bus{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Publish enqueues e, waiting for a free slot while the bus is full. A
// publisher still waiting when the bus is closed gets ErrBusClosed.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.events <- e:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is the receive side, owned by the router.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Len reports the number of queued events.
func (b *Bus) Len() int {
	return len(b.events)
}

// Close stops accepting events and releases waiting publishers. Queued
// events are still delivered.
func (b *Bus) Close() {
	b.once.Do(func() {
		close(b.done)

		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		close(b.events)
	})
}
