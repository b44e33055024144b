// Package crypto implements the note envelope: Argon2id turns the note
// password into an AES-256-GCM key, and salt, nonce and KDF parameters are
// packed together with the sealed text into one base64url string.
//
// Envelope layout before encoding:
//
//	version(1) | time(4) | memoryKiB(4) | threads(1) | salt(16) | nonce(12) | ciphertext+tag
//
// The first ten bytes are authenticated as additional data.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	envelopeVersion = 1
	headerSize      = 10
	saltSize        = 16
	nonceSize       = 12 // GCM standard nonce size
	tagSize         = 16
	keySize         = 32

	maxTime    = 10
	maxMemory  = 1 << 20 // KiB, 1 GiB
	maxThreads = 16
)

var (
	// ErrDecryptFailed covers every way a note can fail to open. A wrong
	// password and a damaged envelope are reported identically.
	ErrDecryptFailed = errors.New("failed to decrypt note")

	ErrEmptyPlaintext = errors.New("plaintext is empty")
	ErrEmptyPassword  = errors.New("password is empty")
	ErrInvalidParams  = errors.New("invalid key derivation parameters")
)

// Params are the Argon2id cost settings written into every envelope.
type Params struct {
	Time      uint32 `yaml:"time" env:"TIME"`
	MemoryKiB uint32 `yaml:"memory_kib" env:"MEMORY_KIB"`
	Threads   uint8  `yaml:"threads" env:"THREADS"`
}

// DefaultParams follow the OWASP Argon2id recommendation: one pass over
// 64 MiB with four lanes.
var DefaultParams = Params{
	Time:      1,
	MemoryKiB: 64 * 1024,
	Threads:   4,
}

func (p Params) Validate() error {
	switch {
	case p.Time < 1 || p.Time > maxTime:
		return fmt.Errorf("%w: time %d out of range 1..%d", ErrInvalidParams, p.Time, maxTime)
	case p.Threads < 1 || p.Threads > maxThreads:
		return fmt.Errorf("%w: threads %d out of range 1..%d", ErrInvalidParams, p.Threads, maxThreads)
	case p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > maxMemory:
		return fmt.Errorf("%w: memory %d KiB out of range %d..%d", ErrInvalidParams, p.MemoryKiB, 8*uint32(p.Threads), maxMemory)
	}
	return nil
}

// Cipher seals and opens notes with a fixed set of KDF parameters. Opening
// always uses the parameters recorded in the envelope.
type Cipher struct {
	params Params
}

func NewCipher(params Params) (*Cipher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Cipher{params: params}, nil
}

var defaultCipher = &Cipher{params: DefaultParams}

// Encrypt seals plaintext under password with the default parameters.
func Encrypt(plaintext, password string) (string, error) {
	return defaultCipher.Encrypt(plaintext, password)
}

// Decrypt opens an envelope produced by any Cipher.
func Decrypt(envelope, password string) (string, error) {
	return defaultCipher.Decrypt(envelope, password)
}

func (c *Cipher) Params() Params {
	return c.params
}

func (c *Cipher) Encrypt(plaintext, password string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}
	if password == "" {
		return "", ErrEmptyPassword
	}

	header := encodeHeader(c.params)

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("salt generation failed: %w", err)
	}

	gcm, err := newGCM(deriveKey(password, salt, c.params))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}

	blob := make([]byte, 0, headerSize+saltSize+nonceSize+len(plaintext)+tagSize)
	blob = append(blob, header...)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(plaintext), header)

	return base64.RawURLEncoding.EncodeToString(blob), nil
}

func (c *Cipher) Decrypt(envelope, password string) (string, error) {
	if password == "" {
		return "", ErrDecryptFailed
	}

	blob, err := base64.RawURLEncoding.DecodeString(envelope)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(blob) < headerSize+saltSize+nonceSize+tagSize {
		return "", ErrDecryptFailed
	}

	header := blob[:headerSize]
	params, err := decodeHeader(header)
	if err != nil {
		return "", ErrDecryptFailed
	}

	salt := blob[headerSize : headerSize+saltSize]
	nonce := blob[headerSize+saltSize : headerSize+saltSize+nonceSize]
	sealed := blob[headerSize+saltSize+nonceSize:]

	gcm, err := newGCM(deriveKey(password, salt, params))
	if err != nil {
		return "", ErrDecryptFailed
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, header)
	if err != nil {
		return "", ErrDecryptFailed
	}

	// An empty or non-text result is never a note we produced.
	if len(plaintext) == 0 || !utf8.Valid(plaintext) {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

func deriveKey(password string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}
	return gcm, nil
}

func encodeHeader(p Params) []byte {
	header := make([]byte, headerSize)
	header[0] = envelopeVersion
	binary.BigEndian.PutUint32(header[1:5], p.Time)
	binary.BigEndian.PutUint32(header[5:9], p.MemoryKiB)
	header[9] = p.Threads
	return header
}

func decodeHeader(header []byte) (Params, error) {
	if header[0] != envelopeVersion {
		return Params{}, fmt.Errorf("unsupported envelope version %d", header[0])
	}

	p := Params{
		Time:      binary.BigEndian.Uint32(header[1:5]),
		MemoryKiB: binary.BigEndian.Uint32(header[5:9]),
		Threads:   header[9],
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
