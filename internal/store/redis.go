package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"secure.notes/internal/models"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Save(ctx context.Context, note *models.Note) error {
	data, err := encode(note)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !note.ExpiresAt.IsZero() {
		ttl = time.Until(note.ExpiresAt)
		if ttl <= 0 {
			return ErrExpired
		}
	}

	ok, err := r.client.SetNX(ctx, noteKey(note.Token), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// Take relies on GETDEL, so two concurrent readers can never both win.
func (r *RedisStore) Take(ctx context.Context, token string) (*models.Note, error) {
	data, err := r.client.GetDel(ctx, noteKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	note, err := decode(data)
	if err != nil {
		return nil, err
	}

	if note.Expired(time.Now()) {
		return nil, ErrExpired
	}
	return note, nil
}

func (r *RedisStore) Exists(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, noteKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func noteKey(token string) string {
	return "note:" + token
}

func encode(note *models.Note) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(note); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*models.Note, error) {
	var note models.Note
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&note); err != nil {
		return nil, err
	}
	return &note, nil
}
