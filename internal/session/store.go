package session

import (
	"sync"
	"time"
)

// Turn is one (question, answer) exchange in a conversation.
type Turn struct {
	Question string
	Answer   string
	At       time.Time
}

// Store keeps per-session conversation history. Sessions are created
// lazily on first use and live for the process lifetime. Appends are
// serialized per session, so concurrent chats on the same session never
// interleave a turn.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	maxTurns int
}

type entry struct {
	mu    sync.Mutex
	turns []Turn
}

// NewStore creates a Store. maxTurns bounds a session's history; 0
// keeps the full history.
func NewStore(maxTurns int) *Store {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &Store{
		sessions: make(map[string]*entry),
		maxTurns: maxTurns,
	}
}

// History returns a copy of the session's turns in conversation order,
// or an empty slice for an unseen session.
func (s *Store) History(sessionID string) []Turn {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Turn(nil), e.turns...)
}

// Append adds one turn to the session, dropping the oldest turns when
// the configured bound is exceeded.
func (s *Store) Append(sessionID, question, answer string) {
	e := s.get(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = append(e.turns, Turn{Question: question, Answer: answer, At: time.Now()})
	if s.maxTurns > 0 && len(e.turns) > s.maxTurns {
		e.turns = append([]Turn(nil), e.turns[len(e.turns)-s.maxTurns:]...)
	}
}

func (s *Store) get(sessionID string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e
	}
	e = &entry{}
	s.sessions[sessionID] = e
	return e
}
