package store

import (
	"context"
	"errors"

	"secure.notes/internal/models"
)

var (
	ErrNotFound = errors.New("note not found")
	ErrExpired  = errors.New("note has expired")
	ErrConflict = errors.New("note token already in use")
)

// Store keeps opaque note envelopes until their single read.
type Store interface {
	Save(ctx context.Context, note *models.Note) error
	// Take returns the note and deletes it atomically. For any token at
	// most one Take ever succeeds; later calls get ErrNotFound.
	Take(ctx context.Context, token string) (*models.Note, error)
	Exists(ctx context.Context, token string) (bool, error)
	Close() error
}
