package notify

import (
	"log/slog"
	"sync"
	"time"
)

// EventSessionRevoked is pushed when a user's sessions were revoked
// out-of-band: logout everywhere, or a login from another device
// displacing the previous session.
const EventSessionRevoked = "session_revoked"

// Event is the wire shape pushed to subscribers.
type Event struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
}

// subscriber is one connected client of a user.
//
// send is intentionally never closed by the hub; done signals shutdown.
type subscriber struct {
	userID string
	send   chan Event

	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(userID string, queueSize int) *subscriber {
	if queueSize <= 0 {
		queueSize = 8
	}
	return &subscriber{
		userID: userID,
		send:   make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Hub fans session events out to the subscribers of each user.
// It satisfies the session service's RevocationNotifier and never blocks.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	byUser map[string]map[*subscriber]struct{}
}

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:    log,
		byUser: make(map[string]map[*subscriber]struct{}),
	}
}

func (h *Hub) attach(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.byUser[sub.userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.byUser[sub.userID] = set
	}
	set[sub] = struct{}{}
}

// detach removes the subscriber from the fan-out before it is closed,
// so SessionsRevoked never races a closing client.
func (h *Hub) detach(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.byUser[sub.userID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.byUser, sub.userID)
	}
}

// SessionsRevoked enqueues a session_revoked event for every subscriber
// of the user. Full queues are skipped; the event is advisory.
func (h *Hub) SessionsRevoked(userID string) {
	ev := Event{Type: EventSessionRevoked, TS: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.byUser[userID] {
		select {
		case <-sub.done:
		case sub.send <- ev:
		default:
			h.log.Info("notify.drop", "user_id", userID, "type", ev.Type)
		}
	}
}

// Subscribers reports the number of live subscribers for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}
