// Package flow runs the two user-facing procedures around a note: composing
// one into a share link, and opening a link back into plaintext. Each is an
// explicit state machine; encryption happens here, the store only ever sees
// ciphertext.
package flow

import (
	"context"
	"errors"
	"strings"
	"time"

	"secure.notes/internal/client"
	"secure.notes/internal/crypto"
	"secure.notes/internal/link"
	"secure.notes/internal/logger"
)

// DefaultTimeout bounds each store call when none is configured.
const DefaultTimeout = 15 * time.Second

//go:generate mockgen -source=service.go -destination=../mock/store_mock.go -package=mock

// Store is the remote half of the protocol. FetchAndDelete must consume the
// note: a second call for the same token reports client.ErrNotFound.
type Store interface {
	Create(ctx context.Context, ciphertext string) (string, error)
	FetchAndDelete(ctx context.Context, token string) (string, error)
}

type Service struct {
	store   Store
	cipher  *crypto.Cipher
	origin  string
	timeout time.Duration
	logger  *logger.Logger
}

// NewService wires the store, the cipher and the origin share links start
// with. A non-positive timeout means DefaultTimeout.
func NewService(store Store, cipher *crypto.Cipher, origin string, timeout time.Duration, log *logger.Logger) (*Service, error) {
	if store == nil || cipher == nil {
		return nil, errors.New("flow: store and cipher are required")
	}
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return nil, errors.New("flow: origin is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		store:   store,
		cipher:  cipher,
		origin:  origin,
		timeout: timeout,
		logger:  log,
	}, nil
}

// NewComposer starts a fresh create flow.
func (s *Service) NewComposer() *Composer {
	return &Composer{svc: s, state: Composing}
}

// Open captures the token and fragment from rawLink and returns a Reader
// waiting for the user's go-ahead. Nothing is fetched yet.
func (s *Service) Open(rawLink string) (*Reader, error) {
	in, err := link.Parse(rawLink)
	if err != nil {
		s.logger.Debug().Err(err).Str("link", link.Hide(rawLink)).Msg("unusable note link")
		return nil, err
	}

	return &Reader{
		svc:      s,
		state:    AwaitingConfirmation,
		token:    in.Token,
		password: in.Password,
		inLink:   in.HasPassword,
		hidden:   in.Hidden,
	}, nil
}

func (s *Service) create(ctx context.Context, ciphertext string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := s.store.Create(ctx, ciphertext)
	if err != nil {
		s.logger.Debug().Err(err).Msg("store create failed")
		return "", &StorageError{Op: OpCreate, Err: err}
	}
	return token, nil
}

func (s *Service) fetch(ctx context.Context, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.store.FetchAndDelete(ctx, token)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			s.logger.Debug().Msg("note already consumed")
			return "", ErrNoteDestroyed
		}
		s.logger.Debug().Err(err).Msg("store fetch failed")
		return "", &StorageError{Op: OpFetch, Err: err}
	}
	return data, nil
}
