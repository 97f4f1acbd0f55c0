// Package identity supplies the current user to components that need one.
// Identity is always passed explicitly; nothing in the module reads a global
// "current user".
package identity

import "sync"

// Provider exposes the current user id and notifies on change.
type Provider interface {
	CurrentUser() (string, bool)
	OnChange(fn func(userID string)) (cancel func())
}

// Session is an in-process Provider whose user is set by the transport that
// authenticated the caller. An empty id means signed out.
type Session struct {
	mu        sync.Mutex
	userID    string
	listeners map[int]func(string)
	nextID    int
}

func NewSession(userID string) *Session {
	return &Session{userID: userID, listeners: make(map[int]func(string))}
}

func (s *Session) CurrentUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

// SetUser switches the session user and notifies listeners when it changed.
func (s *Session) SetUser(userID string) {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	listeners := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(userID)
	}
}

func (s *Session) SignOut() {
	s.SetUser("")
}

func (s *Session) OnChange(fn func(userID string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
