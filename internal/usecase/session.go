package usecase

import (
	"sync"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

// Session holds the viewer identity and credential shared by every open game view.
// Views subscribe to learn when a credential becomes available mid-session.
type Session struct {
	mu     sync.RWMutex
	viewer *domain.Participant
	token  string
	subs   map[int]chan string
	nextID int
}

// NewSession creates an anonymous session
func NewSession() *Session {
	return &Session{
		subs: make(map[int]chan string),
	}
}

// Viewer returns a copy of the current identity, or nil for a spectator
func (s *Session) Viewer() *domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.viewer == nil {
		return nil
	}
	p := *s.viewer
	return &p
}

// Token returns the current credential, or "" when anonymous
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Login records the viewer and credential and tells every subscribed view
func (s *Session) Login(p domain.Participant, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = &p
	s.setToken(token)
}

// UseToken adopts a credential whose owner is not known yet. The viewer is
// filled in once the server acknowledges it.
func (s *Session) UseToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = nil
	s.setToken(token)
}

// setToken must be called with mu held
func (s *Session) setToken(token string) {
	s.token = token
	for _, ch := range s.subs {
		// Keep only the latest credential if the view has not picked up the last one
		select {
		case <-ch:
		default:
		}
		ch <- token
	}
}

// Identify records who the current credential belongs to without announcing a
// new credential. It does nothing if the viewer is already known.
func (s *Session) Identify(p domain.Participant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewer != nil || s.token == "" {
		return false
	}
	s.viewer = &p
	return true
}

// Logout forgets the viewer. Connections already upgraded stay as they are.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = nil
	s.token = ""
}

// Subscribe returns a channel receiving each new credential and a func to stop
func (s *Session) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan string, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
