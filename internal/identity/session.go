// Package identity wraps the authentication provider behind a subscribable
// session: the current user (or none) plus change notifications delivered
// exactly once per sign-in/sign-out transition, in order.
package identity

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// User is the opaque authenticated identity produced by the provider.
type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Credentials are the inputs to the interactive sign-in flow.
type Credentials struct {
	Email    string
	Password string
}

// Provider performs the interactive sign-in flow and resolves to a user.
type Provider interface {
	SignIn(ctx context.Context, creds Credentials) (*User, error)
}

// subscriber pairs a callback with its registration id so delivery order
// follows registration order.
type subscriber struct {
	id int
	fn func(*User)
}

// Session tracks the signed-in user and notifies subscribers of transitions.
type Session struct {
	provider Provider

	// notifyMu serializes transitions so subscribers observe them in order,
	// one at a time.
	notifyMu sync.Mutex

	mu      sync.Mutex
	current *User
	nextID  int
	subs    []subscriber
}

// NewSession creates a session with no signed-in user.
func NewSession(provider Provider) *Session {
	return &Session{provider: provider}
}

// Subscribe registers fn and invokes it immediately with the current user.
// Afterwards fn is invoked once per sign-in/sign-out transition. The returned
// function unsubscribes.
func (s *Session) Subscribe(fn func(*User)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	current := s.current
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Current returns the signed-in user, or nil when anonymous.
func (s *Session) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SignIn runs the provider's sign-in flow. On success the new user is
// announced to subscribers before SignIn returns. Failures are logged and
// returned to the caller; no transition is announced.
func (s *Session) SignIn(ctx context.Context, creds Credentials) (*User, error) {
	user, err := s.provider.SignIn(ctx, creds)
	if err != nil {
		log.Printf("[identity] sign-in failed: %v", err)
		return nil, err
	}

	s.transition(user)
	return user, nil
}

// SignOut clears the signed-in user. Subscribers observe the transition to
// none through the subscription; nothing is delivered synchronously to the
// caller beyond the return itself.
func (s *Session) SignOut() {
	s.transition(nil)
}

// transition updates the current user and delivers the change to every
// subscriber in registration order.
func (s *Session) transition(user *User) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = user
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(user)
	}
}
