package client

import (
	"testing"
	"time"
)

func TestStateSetClearSnapshot(t *testing.T) {
	s := NewState()

	if _, ok := s.Snapshot(); ok {
		t.Fatal("fresh state should be logged out")
	}
	if got := s.AccessToken(); got != "" {
		t.Fatalf("AccessToken = %q, want empty", got)
	}

	sess := Session{AccessToken: "a1", RefreshToken: "r1", User: User{ID: "u1"}}
	s.Set(sess)

	got, ok := s.Snapshot()
	if !ok || got != sess {
		t.Fatalf("Snapshot = %+v, %v", got, ok)
	}
	if s.AccessToken() != "a1" {
		t.Fatalf("AccessToken = %q", s.AccessToken())
	}

	s.Clear()
	if _, ok := s.Snapshot(); ok {
		t.Fatal("state should be logged out after Clear")
	}
}

func TestStateSubscribeEvents(t *testing.T) {
	s := NewState()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Set(Session{AccessToken: "a1", User: User{ID: "u1"}})
	ev := waitEvent(t, ch)
	if ev.Type != EventUpdated || ev.User.ID != "u1" {
		t.Fatalf("event = %+v", ev)
	}

	s.Clear()
	ev = waitEvent(t, ch)
	if ev.Type != EventLoggedOut || ev.User.ID != "u1" {
		t.Fatalf("event = %+v", ev)
	}

	// Clearing an empty state emits nothing.
	s.Clear()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStateUnsubscribeStopsDelivery(t *testing.T) {
	s := NewState()
	ch, cancel := s.Subscribe()
	cancel()

	s.Set(Session{AccessToken: "a1"})
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStateSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewState()
	_, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 32; i++ {
			s.Set(Session{AccessToken: "a"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Set blocked on a full subscriber queue")
	}
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
