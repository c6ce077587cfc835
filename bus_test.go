package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBus_PublishAndReceiveInOrder(t *testing.T) {
	bus := NewBus(4)
	ctx := context.Background()

	for i, text := range []string{"a", "b", "c"} {
		if err := bus.Publish(ctx, ChatMessage{Text: text}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if bus.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", bus.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		got := (<-bus.Events()).(ChatMessage)
		if got.Text != want {
			t.Errorf("expected %q, got %q", want, got.Text)
		}
	}
}

func TestBus_DefaultSize(t *testing.T) {
	bus := NewBus(0)
	if cap(bus.events) != defaultQueueSize {
		t.Fatalf("expected capacity %d, got %d", defaultQueueSize, cap(bus.events))
	}
}

func TestBus_BackpressureBlocksUntilDrained(t *testing.T) {
	const capacity = 3
	bus := NewBus(capacity)
	ctx := context.Background()

	for i := 0; i < capacity; i++ {
		if err := bus.Publish(ctx, ChatMessage{Text: "fill"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	// A full bus neither drops nor errors: the publisher waits.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := bus.Publish(short, ChatMessage{Text: "overflow"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected publish to block until deadline, got %v", err)
	}
	if bus.Len() != capacity {
		t.Fatalf("expected %d queued, got %d", capacity, bus.Len())
	}

	done := make(chan error, 1)
	go func() {
		done <- bus.Publish(ctx, ChatMessage{Text: "late"})
	}()

	select {
	case err := <-done:
		t.Fatalf("publish returned before a slot was freed: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	<-bus.Events()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("publish after drain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publish still blocked after a slot was freed")
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus(2)
	ctx := context.Background()

	if err := bus.Publish(ctx, ChatMessage{Text: "queued"}); err != nil {
		t.Fatal(err)
	}
	bus.Close()
	bus.Close()

	if err := bus.Publish(ctx, ChatMessage{Text: "after"}); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("expected ErrBusClosed, got %v", err)
	}

	e, ok := <-bus.Events()
	if !ok || e.(ChatMessage).Text != "queued" {
		t.Fatalf("expected queued event to survive close, got %v %v", e, ok)
	}
	if _, ok := <-bus.Events(); ok {
		t.Fatal("expected channel closed after drain")
	}
}

func TestBus_CloseReleasesBlockedPublisher(t *testing.T) {
	bus := NewBus(1)
	ctx := context.Background()

	if err := bus.Publish(ctx, ChatMessage{Text: "queued"}); err != nil {
		t.Fatal(err)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- bus.Publish(ctx, ChatMessage{Text: "waiting"})
	}()

	select {
	case err := <-blocked:
		t.Fatalf("publish returned on a full bus: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	closed := make(chan struct{})
	go func() {
		bus.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a waiting publisher")
	}
	select {
	case err := <-blocked:
		if !errors.Is(err, ErrBusClosed) {
			t.Fatalf("expected ErrBusClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting publisher was not released")
	}

	e, ok := <-bus.Events()
	if !ok || e.(ChatMessage).Text != "queued" {
		t.Fatalf("expected queued event to survive close, got %v %v", e, ok)
	}
	if _, ok := <-bus.Events(); ok {
		t.Fatal("expected channel closed after drain")
	}
}
