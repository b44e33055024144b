package flow

import (
	"errors"
	"fmt"

	"secure.notes/internal/link"
	"secure.notes/internal/password"
)

// Messages shown to the user. Anything more specific goes to the debug log.
const (
	MsgEmptyMessage     = "Please enter a message"
	MsgPasswordMismatch = "Passwords do not match"
	MsgCreateFailed     = "Failed to create note"
	MsgPasswordRequired = "Password is required to decrypt this note."
	MsgDecryptFailed    = "Failed to decrypt note. The password may be incorrect or the note may have been destroyed."
	MsgDestroyed        = "This note has been permanently destroyed and cannot be recovered."
	MsgNoteNotFound     = "Note not found."
	MsgBusy             = "Please wait for the current operation to finish."
	MsgUnexpected       = "Something went wrong."
)

const (
	OpCreate  = "create"
	OpFetch   = "fetch"
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
)

var (
	ErrNoteDestroyed     = errors.New("note destroyed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrBusy              = errors.New("operation in progress")
)

// ValidationError is recoverable input trouble. It never costs a network
// call and never changes what is stored.
type ValidationError = password.ValidationError

func invalid(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// StorageError wraps a failed call to the note store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CryptoError wraps an encryption or decryption failure. On decrypt the
// cause is always the one undiscriminated cipher error.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// UserMessage maps err to the short text a user should see.
func UserMessage(err error) string {
	var (
		vErr *ValidationError
		sErr *StorageError
		cErr *CryptoError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return vErr.Message
	case errors.Is(err, ErrNoteDestroyed):
		return MsgDestroyed
	case errors.Is(err, link.ErrInvalidLink), errors.Is(err, link.ErrMissingToken):
		return MsgNoteNotFound
	case errors.As(err, &sErr):
		if sErr.Op == OpCreate {
			return MsgCreateFailed
		}
		return MsgDecryptFailed
	case errors.As(err, &cErr):
		if cErr.Op == OpEncrypt {
			return MsgCreateFailed
		}
		return MsgDecryptFailed
	case errors.Is(err, ErrBusy):
		return MsgBusy
	default:
		return MsgUnexpected
	}
}
