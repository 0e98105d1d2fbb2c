package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory user directory for tests and DB-less dev.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]UserAuth
	byEmail map[string]string // normalized email -> user id
	links   map[string]string // provider + "\x00" + subject -> user id
}

// NewMemoryStore creates an empty in-memory user directory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]UserAuth),
		byEmail: make(map[string]string),
		links:   make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return User{}, ErrInvalidInput
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return User{}, ErrEmailTaken
	}

	u := User{ID: NewID(), Email: email, DisplayName: in.DisplayName, CreatedAt: in.Now}
	s.byID[u.ID] = UserAuth{User: u, PasswordHash: &hash}
	s.byEmail[email] = u.ID
	return u, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ua, ok := s.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return ua.User, nil
}

func (s *MemoryStore) GetAuthByEmail(_ context.Context, email string) (UserAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) FindOrCreateBySubject(_ context.Context, provider, subject, email string, displayName *string, now time.Time) (User, error) {
	email = NormalizeEmail(email)
	if provider == "" || subject == "" || email == "" {
		return User{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := provider + "\x00" + subject
	if id, ok := s.links[key]; ok {
		return s.byID[id].User, nil
	}

	if id, ok := s.byEmail[email]; ok {
		s.links[key] = id
		return s.byID[id].User, nil
	}

	u := User{ID: NewID(), Email: email, DisplayName: displayName, CreatedAt: now}
	s.byID[u.ID] = UserAuth{User: u}
	s.byEmail[email] = u.ID
	s.links[key] = u.ID
	return u, nil
}
