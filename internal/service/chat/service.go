package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/cat-chatroom/internal/model/chat"
	"github.com/zhouzirui/cat-chatroom/internal/model/persona"
)

var ErrSessionNotFound = errors.New("session not found")

// Service owns the per-session conversation state, keyed by session ID.
type Service struct {
	mu       sync.RWMutex
	persona  persona.Persona
	sessions map[string]*State
}

// NewService bootstraps the in-memory session store for the given persona.
func NewService(p persona.Persona) *Service {
	return &Service{
		persona:  p,
		sessions: make(map[string]*State),
	}
}

// Persona returns the persona every session is seeded from.
func (s *Service) Persona() persona.Persona {
	return s.persona
}

// Initialize returns the state for sessionID, creating it with personaName when missing.
// An empty sessionID provisions a new one; an empty personaName uses the default name.
// The boolean reports whether the state was created by this call.
func (s *Service) Initialize(_ context.Context, sessionID, personaName string) (*State, bool) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[sessionID]; ok {
		return st, false
	}

	st := s.newStateLocked(sessionID, personaName)
	return st, true
}

// Get retrieves the state for sessionID.
func (s *Service) Get(_ context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

// Reset reseeds the session's transcripts with personaName, creating the session when missing.
// A running turn of the session is cancelled and its result discarded.
func (s *Service) Reset(_ context.Context, sessionID, personaName string) *State {
	name := s.resolveName(personaName)

	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = s.newStateLocked(sessionID, name)
		s.mu.Unlock()
		return st
	}
	s.mu.Unlock()

	st.reset(name, s.persona.SystemPrompt(name))
	return st
}

// Destroy discards the session state.
func (s *Service) Destroy(_ context.Context, sessionID string) error {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	st.mu.Lock()
	st.supersedeLocked()
	st.mu.Unlock()
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) newStateLocked(sessionID, personaName string) *State {
	name := s.resolveName(personaName)
	session := chat.Session{
		ID:          sessionID,
		PersonaName: name,
		CreatedAt:   time.Now().UTC(),
	}
	st := newState(session, s.persona.SystemPrompt(name))
	s.sessions[sessionID] = st
	return st
}

func (s *Service) resolveName(personaName string) string {
	if name := strings.TrimSpace(personaName); name != "" {
		return name
	}
	return s.persona.Name
}
