package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTurnStore runs the behaviour every TurnStore backend shares.
func testTurnStore(t *testing.T, newStore func(t *testing.T) TurnStore) {
	ctx := context.Background()

	t.Run("AppendNumbersTurns", func(t *testing.T) {
		store := newStore(t)

		first, err := store.AppendTurn(ctx, Turn{SessionID: "s1", Flow: "commit_search", Request: "who touched tabs", Subject: "who touched tabs", Response: "see abc"})
		require.NoError(t, err)
		second, err := store.AppendTurn(ctx, Turn{SessionID: "s1", Flow: "commit_search", Request: "continue", Subject: "who touched tabs", Response: "none"})
		require.NoError(t, err)

		assert.Equal(t, 0, first.Index)
		assert.Equal(t, 1, second.Index)
		assert.NotEmpty(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)
		assert.False(t, first.CreatedAt.IsZero())

		turns, err := store.Turns(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, "see abc", turns[0].Response)
		assert.Equal(t, "continue", turns[1].Request)
		assert.Equal(t, "who touched tabs", turns[1].Subject)
	})

	t.Run("LastTurnCarriesContinuation", func(t *testing.T) {
		store := newStore(t)

		last, err := store.LastTurn(ctx, "s1")
		require.NoError(t, err)
		assert.Nil(t, last)

		_, err = store.AppendTurn(ctx, Turn{SessionID: "s1", Flow: "build_error", Request: "q", Subject: "q", Response: "r"})
		require.NoError(t, err)
		_, err = store.AppendTurn(ctx, Turn{
			SessionID:    "s1",
			Flow:         "build_error",
			Request:      "q",
			Subject:      "q",
			Response:     "r",
			Continuation: `{"after":"abc","page":2,"startVersion":"1.0.0.0","endVersion":"1.0.1.0"}`,
		})
		require.NoError(t, err)

		last, err = store.LastTurn(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, 1, last.Index)

		c, err := last.Resume()
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "abc", c.After)
		assert.Equal(t, 2, c.Page)
		assert.Equal(t, "1.0.1.0", c.EndVersion)
	})

	t.Run("MissingSessionIsEmpty", func(t *testing.T) {
		store := newStore(t)

		turns, err := store.Turns(ctx, "nope")
		require.NoError(t, err)
		assert.NotNil(t, turns)
		assert.Empty(t, turns)

		exists, err := store.Exists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("DeleteRemovesTurns", func(t *testing.T) {
		store := newStore(t)

		_, err := store.AppendTurn(ctx, Turn{SessionID: "s1", Flow: "f", Request: "q", Subject: "q", Response: "r"})
		require.NoError(t, err)
		exists, err := store.Exists(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, store.Delete(ctx, "s1"))

		exists, err = store.Exists(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, exists)
		turns, err := store.Turns(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, turns)

		turn, err := store.AppendTurn(ctx, Turn{SessionID: "s1", Flow: "f", Request: "q", Subject: "q", Response: "r"})
		require.NoError(t, err)
		assert.Equal(t, 0, turn.Index)
	})

	t.Run("ListSessionsMostRecentFirst", func(t *testing.T) {
		store := newStore(t)

		for _, id := range []string{"s1", "s2", "s1"} {
			_, err := store.AppendTurn(ctx, Turn{SessionID: id, Flow: "f", Request: "q", Subject: "q", Response: "r"})
			require.NoError(t, err)
		}

		sessions, err := store.ListSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, sessions)
	})

	t.Run("RejectsMissingSessionID", func(t *testing.T) {
		store := newStore(t)
		_, err := store.AppendTurn(ctx, Turn{Flow: "f"})
		assert.Error(t, err)
	})
}

func TestInMemoryStorage(t *testing.T) {
	testTurnStore(t, func(t *testing.T) TurnStore {
		return NewInMemoryStorage()
	})
}

func TestInMemoryStorageReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStorage()
	_, err := store.AppendTurn(ctx, Turn{SessionID: "s1", Response: "original"})
	require.NoError(t, err)

	turns, err := store.Turns(ctx, "s1")
	require.NoError(t, err)
	turns[0].Response = "mutated"

	last, err := store.LastTurn(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", last.Response)
}

func TestTurnWithoutContinuation(t *testing.T) {
	c, err := Turn{}.Resume()
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = Turn{Continuation: "{not json"}.Resume()
	assert.Error(t, err)
}
