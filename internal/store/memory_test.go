package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secure.notes/internal/models"
)

func newNote(token string, ttl time.Duration) *models.Note {
	now := time.Now()
	n := &models.Note{Token: token, Data: "envelope-" + token, CreatedAt: now}
	if ttl != 0 {
		n.ExpiresAt = now.Add(ttl)
	}
	return n
}

func TestMemoryStore_TakeIsAtMostOnce(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, newNote("a", time.Hour)))

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Take(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "envelope-a", got.Data)

	_, err = s.Take(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err = s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ConcurrentTakeHasOneWinner(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, newNote("race", 0)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Take(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_SaveConflict(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, newNote("dup", 0)))
	assert.ErrorIs(t, s.Save(ctx, newNote("dup", 0)), ErrConflict)
}

func TestMemoryStore_ExpiredNoteIsGone(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, newNote("old", time.Hour)))
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	ok, err := s.Exists(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Take(ctx, "old")
	assert.ErrorIs(t, err, ErrExpired)

	_, err = s.Take(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CleanupRemovesExpired(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, newNote("old", time.Minute)))
	require.NoError(t, s.Save(ctx, newNote("fresh", 3*time.Hour)))
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	s.cleanup()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.NotContains(t, s.notes, "old")
	assert.Contains(t, s.notes, "fresh")
}
