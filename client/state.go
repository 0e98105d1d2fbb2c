package client

import (
	"sync"
	"time"
)

// User mirrors the user object returned by the service.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is the credential pair plus profile held by the SDK.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         User
}

// EventType describes a session state transition.
type EventType string

const (
	// EventUpdated fires when a session is set or rotated.
	EventUpdated EventType = "updated"
	// EventLoggedOut fires when the session is cleared, locally or
	// because the server revoked it.
	EventLoggedOut EventType = "logged_out"
)

// Event is delivered to State subscribers.
type Event struct {
	Type EventType
	User User
}

// State holds the current session and fans out transitions.
//
// All methods are safe for concurrent use. Subscriber channels are
// buffered and never block state changes; a slow subscriber misses
// intermediate events, not the final state, which it can read back via
// Snapshot.
type State struct {
	mu     sync.RWMutex
	sess   Session
	active bool
	subs   map[chan Event]struct{}
}

// NewState returns an empty, logged-out State.
func NewState() *State {
	return &State{subs: make(map[chan Event]struct{})}
}

// Set installs a session and notifies subscribers.
func (s *State) Set(sess Session) {
	s.mu.Lock()
	s.sess = sess
	s.active = true
	s.mu.Unlock()

	s.publish(Event{Type: EventUpdated, User: sess.User})
}

// Clear drops the session and notifies subscribers. Clearing an already
// empty state is a no-op.
func (s *State) Clear() {
	s.mu.Lock()
	wasActive := s.active
	user := s.sess.User
	s.sess = Session{}
	s.active = false
	s.mu.Unlock()

	if wasActive {
		s.publish(Event{Type: EventLoggedOut, User: user})
	}
}

// Snapshot returns the current session and whether one is held.
func (s *State) Snapshot() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess, s.active
}

// AccessToken returns the current access token, empty when logged out.
func (s *State) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return ""
	}
	return s.sess.AccessToken
}

// Subscribe registers for session events. The returned cancel func must
// be called to release the channel.
func (s *State) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 4)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *State) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
