package store

import (
	"context"
	"sync"
	"time"

	"secure.notes/internal/models"
)

var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	notes         map[string]*models.Note
	mu            sync.Mutex
	cleanupCancel context.CancelFunc
	now           func() time.Time
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	store := &MemoryStore{
		notes:         make(map[string]*models.Note),
		cleanupCancel: cancel,
		now:           time.Now,
	}
	go store.cleanupLoop(ctx, cleanupInterval)
	return store
}

func (s *MemoryStore) Save(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[note.Token]; ok {
		return ErrConflict
	}

	cp := *note
	s.notes[note.Token] = &cp
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, token string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.notes, token)

	if note.Expired(s.now()) {
		return nil, ErrExpired
	}
	return note, nil
}

func (s *MemoryStore) Exists(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[token]
	return ok && !note.Expired(s.now()), nil
}

func (s *MemoryStore) Close() error {
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = make(map[string]*models.Note)
	return nil
}

func (s *MemoryStore) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, note := range s.notes {
		if note.Expired(now) {
			delete(s.notes, token)
		}
	}
}
