// Package storage persists analysis conversations so a later invocation can
// resume a paged search.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Turn numbering and id assignment owned by the backend
// - Continuation metadata kept as an opaque JSON string

package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/patchscout/model"
)

// Turn is one request/response exchange in a session.
type Turn struct {
	ID        string
	SessionID string
	Index     int
	Flow      string
	// Request is what the user typed, possibly the continuation keyword.
	Request string
	// Subject is the query or error text the turn analysed.
	Subject      string
	Response     string
	Continuation string
	CreatedAt    time.Time
}

// Resume decodes the turn's continuation metadata. A turn without one yields
// nil.
func (t Turn) Resume() (*model.Continuation, error) {
	return model.ParseContinuation(t.Continuation)
}

// TurnStore defines the interface for storing conversation turns.
// Implementations can use different backends (memory, database).
type TurnStore interface {
	// AppendTurn stores turn at the end of its session and returns it with
	// ID, Index and CreatedAt filled in.
	AppendTurn(ctx context.Context, turn Turn) (Turn, error)

	// Turns returns a session's turns in order.
	// Returns empty slice (not nil) if session doesn't exist.
	Turns(ctx context.Context, sessionID string) ([]Turn, error)

	// LastTurn returns the most recent turn, or nil if the session has none.
	LastTurn(ctx context.Context, sessionID string) (*Turn, error)

	// Delete deletes a session and its turns.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs, most recently updated first.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}

func stamp(turn Turn, index int) Turn {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.Index = index
	return turn
}
