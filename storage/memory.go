// In-memory turn storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions

package storage

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryStorage implements TurnStore using an in-memory map.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	order    []string
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		sessions: make(map[string][]Turn),
	}
}

// AppendTurn stores turn at the end of its session.
func (s *InMemoryStorage) AppendTurn(ctx context.Context, turn Turn) (Turn, error) {
	if turn.SessionID == "" {
		return Turn{}, fmt.Errorf("turn has no session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[turn.SessionID]
	turn = stamp(turn, len(turns))
	s.sessions[turn.SessionID] = append(turns, turn)
	s.touch(turn.SessionID)
	return turn, nil
}

// Turns returns a copy of the session's turns.
func (s *InMemoryStorage) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	copied := make([]Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

// LastTurn returns the most recent turn of the session.
func (s *InMemoryStorage) LastTurn(ctx context.Context, sessionID string) (*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if len(turns) == 0 {
		return nil, nil
	}
	last := turns[len(turns)-1]
	return &last, nil
}

// Delete deletes a session and its turns.
func (s *InMemoryStorage) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	s.drop(sessionID)
	return nil
}

// ListSessions lists session IDs, most recently updated first.
func (s *InMemoryStorage) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		sessions = append(sessions, s.order[i])
	}
	return sessions, nil
}

// Exists checks if a session exists.
func (s *InMemoryStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[sessionID]
	return ok, nil
}

// touch moves sessionID to the most-recent end of order. Caller holds mu.
func (s *InMemoryStorage) touch(sessionID string) {
	s.drop(sessionID)
	s.order = append(s.order, sessionID)
}

func (s *InMemoryStorage) drop(sessionID string) {
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

var _ TurnStore = (*InMemoryStorage)(nil)
