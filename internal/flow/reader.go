package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type ReadState int

const (
	AwaitingConfirmation ReadState = iota
	AutoDecrypting
	AwaitingPassword
	Decrypting
	Unlocked
	DecryptFailed
	Destroyed
)

func (s ReadState) String() string {
	switch s {
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case AutoDecrypting:
		return "auto_decrypting"
	case AwaitingPassword:
		return "awaiting_password"
	case Decrypting:
		return "decrypting"
	case Unlocked:
		return "unlocked"
	case DecryptFailed:
		return "decrypt_failed"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("read_state(%d)", int(s))
	}
}

func (s ReadState) inFlight() bool {
	return s == AutoDecrypting || s == Decrypting
}

// fetchResult records the one fetch a Reader is allowed to make.
type fetchResult struct {
	ciphertext string
	err        error
}

// Reader opens one note link:
//
//	AwaitingConfirmation -> AutoDecrypting   (password in link)
//	                     -> AwaitingPassword -> Decrypting
//	AutoDecrypting, Decrypting -> Unlocked | DecryptFailed | Destroyed
//	DecryptFailed -> Decrypting
//
// The store is asked for the note at most once. Its ciphertext stays here
// so a mistyped password can be retried without another fetch.
type Reader struct {
	svc *Service

	mu        sync.Mutex
	state     ReadState
	token     string
	password  string
	inLink    bool
	hidden    string
	fetch     *fetchResult
	plaintext string
}

func (r *Reader) State() ReadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Hidden is the address to display for this note. It carries neither the
// token nor the password.
func (r *Reader) Hidden() string {
	return r.hidden
}

// PasswordInLink reports whether the link carried a generated password.
func (r *Reader) PasswordInLink() bool {
	return r.inLink
}

// Password is the password currently held: the one from the link, or the
// last one submitted. It is cleared after a failed attempt.
func (r *Reader) Password() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.password
}

// Plaintext is the decrypted note once Unlocked, otherwise empty.
func (r *Reader) Plaintext() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Unlocked {
		return ""
	}
	return r.plaintext
}

// Confirm is the user agreeing to read, and so destroy, the note. With a
// password in the link it decrypts straight away; otherwise the Reader
// moves to AwaitingPassword and nothing is fetched yet.
func (r *Reader) Confirm(ctx context.Context) error {
	r.mu.Lock()
	if r.state.inFlight() {
		r.mu.Unlock()
		return ErrBusy
	}
	if r.state != AwaitingConfirmation {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, state)
	}

	if !r.inLink {
		r.state = AwaitingPassword
		r.mu.Unlock()
		return nil
	}

	r.state = AutoDecrypting
	secret := r.password
	r.mu.Unlock()

	return r.unlock(ctx, secret)
}

// SubmitPassword tries pw against the note. An empty pw is rejected
// without any transition.
func (r *Reader) SubmitPassword(ctx context.Context, pw string) error {
	r.mu.Lock()
	if r.state.inFlight() {
		r.mu.Unlock()
		return ErrBusy
	}
	if r.state != AwaitingPassword && r.state != DecryptFailed {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: submit password from %s", ErrInvalidTransition, state)
	}
	if pw == "" {
		r.mu.Unlock()
		return invalid(MsgPasswordRequired)
	}

	r.state = Decrypting
	r.password = pw
	r.mu.Unlock()

	return r.unlock(ctx, pw)
}

// Close drops the password, ciphertext and plaintext held in memory.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.password = ""
	r.plaintext = ""
	if r.fetch != nil {
		r.fetch.ciphertext = ""
	}
}

func (r *Reader) unlock(ctx context.Context, secret string) error {
	ciphertext, err := r.ciphertext(ctx)
	if err != nil {
		if errors.Is(err, ErrNoteDestroyed) {
			r.finish(Destroyed, "")
		} else {
			r.finish(DecryptFailed, "")
		}
		return err
	}

	plaintext, err := r.svc.cipher.Decrypt(ciphertext, secret)
	if err != nil {
		r.svc.logger.Debug().Str("link", r.hidden).Msg("note decryption failed")
		r.finish(DecryptFailed, "")
		return &CryptoError{Op: OpDecrypt, Err: err}
	}

	r.finish(Unlocked, plaintext)
	r.svc.logger.Debug().Str("link", r.hidden).Msg("note unlocked")
	return nil
}

// ciphertext performs the fetch on first use and replays its outcome
// afterwards.
func (r *Reader) ciphertext(ctx context.Context) (string, error) {
	r.mu.Lock()
	if done := r.fetch; done != nil {
		data, err := done.ciphertext, done.err
		r.mu.Unlock()
		return data, err
	}
	r.mu.Unlock()

	data, err := r.svc.fetch(ctx, r.token)

	r.mu.Lock()
	r.fetch = &fetchResult{ciphertext: data, err: err}
	r.mu.Unlock()
	return data, err
}

func (r *Reader) finish(s ReadState, plaintext string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = s
	r.plaintext = plaintext
	if s != Unlocked {
		r.password = ""
	}
	if s == Destroyed && r.fetch != nil {
		r.fetch.ciphertext = ""
	}
}
