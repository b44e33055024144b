package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"secure.notes/internal/link"
	"secure.notes/internal/password"
)

type CreateState int

const (
	Composing CreateState = iota
	Validating
	ValidationFailed
	Encrypting
	Storing
	LinkReady
)

func (s CreateState) String() string {
	switch s {
	case Composing:
		return "composing"
	case Validating:
		return "validating"
	case ValidationFailed:
		return "validation_failed"
	case Encrypting:
		return "encrypting"
	case Storing:
		return "storing"
	case LinkReady:
		return "link_ready"
	default:
		return fmt.Sprintf("create_state(%d)", int(s))
	}
}

func (s CreateState) inFlight() bool {
	return s == Validating || s == Encrypting || s == Storing
}

// Draft is what the user typed. Password and Confirm only count when
// CustomPassword is set; otherwise a password is generated.
type Draft struct {
	Message        string
	CustomPassword bool
	Password       string
	Confirm        string
}

// Created is the outcome of a successful Submit. Generated passwords are
// already inside Link; chosen ones must be shared separately.
type Created struct {
	Link      string
	Password  string
	Generated bool
}

// Composer turns a Draft into a share link:
//
//	Composing -> Validating -> ValidationFailed
//	                        -> Encrypting -> Storing -> LinkReady
//
// A store failure falls back to Composing.
type Composer struct {
	svc *Service

	mu      sync.Mutex
	state   CreateState
	created *Created
}

func (c *Composer) State() CreateState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Created returns the last link made, or nil before LinkReady.
func (c *Composer) Created() *Created {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.created == nil {
		return nil
	}
	out := *c.created
	return &out
}

// Submit validates d, encrypts the message and stores the ciphertext.
// Validation failures never reach the store.
func (c *Composer) Submit(ctx context.Context, d Draft) (*Created, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}

	secret, generated, err := c.svc.resolvePassword(d)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			c.set(ValidationFailed)
		} else {
			c.set(Composing)
		}
		return nil, err
	}

	c.set(Encrypting)
	ciphertext, err := c.svc.cipher.Encrypt(d.Message, secret)
	if err != nil {
		c.set(Composing)
		return nil, &CryptoError{Op: OpEncrypt, Err: err}
	}

	c.set(Storing)
	token, err := c.svc.create(ctx, ciphertext)
	if err != nil {
		c.set(Composing)
		return nil, err
	}

	shareLink, err := link.Build(c.svc.origin, token, secret, generated)
	if err != nil {
		c.set(Composing)
		return nil, &StorageError{Op: OpCreate, Err: err}
	}

	created := &Created{Link: shareLink, Password: secret, Generated: generated}

	c.mu.Lock()
	c.state = LinkReady
	c.created = created
	c.mu.Unlock()

	c.svc.logger.Debug().Str("link", link.Hide(shareLink)).Bool("generated", generated).Msg("note created")

	out := *created
	return &out, nil
}

// Reset discards the last link and starts over.
func (c *Composer) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.inFlight() {
		return ErrBusy
	}
	c.state = Composing
	c.created = nil
	return nil
}

func (c *Composer) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.inFlight():
		return ErrBusy
	case c.state == LinkReady:
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, c.state)
	}
	c.state = Validating
	return nil
}

func (c *Composer) set(s CreateState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// resolvePassword applies the checks in the order the user sees them:
// message, policy, confirmation.
func (s *Service) resolvePassword(d Draft) (string, bool, error) {
	if strings.TrimSpace(d.Message) == "" {
		return "", false, invalid(MsgEmptyMessage)
	}

	if !d.CustomPassword {
		generated, err := password.Generate()
		if err != nil {
			return "", false, &CryptoError{Op: OpEncrypt, Err: err}
		}
		return generated, true, nil
	}

	if err := password.Validate(d.Password); err != nil {
		return "", false, err
	}
	if d.Password != d.Confirm {
		return "", false, invalid(MsgPasswordMismatch)
	}
	return d.Password, false, nil
}
