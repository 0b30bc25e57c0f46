package events_test

import (
	"testing"

	"subtrans/internal/events"
)

func TestHubFanOut(t *testing.T) {
	hub := events.NewHub[int]()
	a, cancelA := hub.Subscribe(4)
	b, cancelB := hub.Subscribe(4)
	defer cancelB()

	hub.Publish(1)
	if got := <-a; got != 1 {
		t.Fatalf("subscriber a got %d", got)
	}
	if got := <-b; got != 1 {
		t.Fatalf("subscriber b got %d", got)
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", hub.Subscribers())
	}
	hub.Publish(2)
	if got := <-b; got != 2 {
		t.Fatalf("subscriber b got %d", got)
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := events.NewHub[string]()
	slow, cancel := hub.Subscribe(1)
	defer cancel()

	for _, value := range []string{"a", "b", "c"} {
		hub.Publish(value)
	}
	if got := <-slow; got != "a" {
		t.Fatalf("got %q, want first event", got)
	}
	if hub.Dropped() != 2 {
		t.Fatalf("dropped = %d, want 2", hub.Dropped())
	}
}

func TestHubClose(t *testing.T) {
	hub := events.NewHub[int]()
	ch, cancel := hub.Subscribe(1)
	hub.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	cancel()
	late, _ := hub.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatal("subscription after close should be closed")
	}
	hub.Publish(1)
}
