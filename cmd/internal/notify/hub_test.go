package notify

import (
	"log/slog"
	"testing"
	"time"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub(slog.New(slog.DiscardHandler))

	a := newSubscriber("user-1", 4)
	b := newSubscriber("user-1", 4)
	other := newSubscriber("user-2", 4)
	h.attach(a)
	h.attach(b)
	h.attach(other)

	h.SessionsRevoked("user-1")

	for _, sub := range []*subscriber{a, b} {
		select {
		case ev := <-sub.send:
			if ev.Type != EventSessionRevoked {
				t.Fatalf("event type = %q", ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	select {
	case ev := <-other.send:
		t.Fatalf("unrelated user received %q", ev.Type)
	default:
	}
}

func TestHubDetachStopsDelivery(t *testing.T) {
	h := NewHub(slog.New(slog.DiscardHandler))

	sub := newSubscriber("user-1", 4)
	h.attach(sub)
	if got := h.Subscribers("user-1"); got != 1 {
		t.Fatalf("Subscribers = %d, want 1", got)
	}

	h.detach(sub)
	sub.close()

	h.SessionsRevoked("user-1")
	select {
	case ev := <-sub.send:
		t.Fatalf("detached subscriber received %q", ev.Type)
	default:
	}
	if got := h.Subscribers("user-1"); got != 0 {
		t.Fatalf("Subscribers = %d, want 0", got)
	}
}

func TestHubFullQueueDoesNotBlock(t *testing.T) {
	h := NewHub(slog.New(slog.DiscardHandler))

	sub := newSubscriber("user-1", 1)
	h.attach(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.SessionsRevoked("user-1")
		h.SessionsRevoked("user-1")
		h.SessionsRevoked("user-1")
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SessionsRevoked blocked on a full queue")
	}
}
