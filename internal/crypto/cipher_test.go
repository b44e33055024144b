package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// testParams keep Argon2id cheap enough for property runs.
var testParams = Params{Time: 1, MemoryKiB: 64, Threads: 1}

func newTestCipher(t testing.TB) *Cipher {
	t.Helper()
	c, err := NewCipher(testParams)
	require.NoError(t, err)
	return c
}

func passwordGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9!@#$%^&*()_+]{8,24}`)
}

func TestCipher_RoundTrip_Properties(t *testing.T) {
	c := newTestCipher(t)

	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.StringN(1, 256, -1).Draw(t, "plaintext")
		password := passwordGen().Draw(t, "password")

		envelope, err := c.Encrypt(plaintext, password)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}

		got, err := c.Decrypt(envelope, password)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	})
}

func TestCipher_WrongPassword_Properties(t *testing.T) {
	c := newTestCipher(t)

	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.StringN(1, 64, -1).Draw(t, "plaintext")
		k1 := passwordGen().Draw(t, "k1")
		k2 := passwordGen().Filter(func(s string) bool { return s != k1 }).Draw(t, "k2")

		envelope, err := c.Encrypt(plaintext, k1)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}

		got, err := c.Decrypt(envelope, k2)
		if err != ErrDecryptFailed {
			t.Fatalf("expected ErrDecryptFailed, got %v (plaintext %q)", err, got)
		}
		if got != "" {
			t.Fatalf("wrong password produced output %q", got)
		}
	})
}

func TestCipher_EncryptIsRandomized(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("hello", "Abcdef1!")
	require.NoError(t, err)
	b, err := c.Encrypt("hello", "Abcdef1!")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipher_EncryptRejectsEmptyInput(t *testing.T) {
	c := newTestCipher(t)

	_, err := c.Encrypt("", "Abcdef1!")
	assert.ErrorIs(t, err, ErrEmptyPlaintext)

	_, err = c.Encrypt("hello", "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestCipher_DecryptFailuresAreIndistinguishable(t *testing.T) {
	c := newTestCipher(t)

	envelope, err := c.Encrypt("secret", "Abcdef1!")
	require.NoError(t, err)
	blob, err := base64.RawURLEncoding.DecodeString(envelope)
	require.NoError(t, err)

	mutate := func(fn func(b []byte)) string {
		cp := append([]byte(nil), blob...)
		fn(cp)
		return base64.RawURLEncoding.EncodeToString(cp)
	}

	tests := []struct {
		name     string
		envelope string
		password string
	}{
		{name: "wrong password", envelope: envelope, password: "wrong1!A"},
		{name: "empty password", envelope: envelope, password: ""},
		{name: "not base64", envelope: "***", password: "Abcdef1!"},
		{name: "empty envelope", envelope: "", password: "Abcdef1!"},
		{name: "truncated", envelope: envelope[:20], password: "Abcdef1!"},
		{name: "flipped ciphertext byte", envelope: mutate(func(b []byte) { b[len(b)-1] ^= 0x01 }), password: "Abcdef1!"},
		{name: "flipped salt byte", envelope: mutate(func(b []byte) { b[headerSize] ^= 0x01 }), password: "Abcdef1!"},
		{name: "unknown version", envelope: mutate(func(b []byte) { b[0] = 9 }), password: "Abcdef1!"},
		{name: "tampered params", envelope: mutate(func(b []byte) { b[8]++ }), password: "Abcdef1!"},
		{name: "params over cap", envelope: mutate(func(b []byte) { b[1] = 0xff }), password: "Abcdef1!"},
		{name: "foreign string", envelope: "U2FsdGVkX1+vupppZksvRf5pq5g5XjFRlipRkwB0K1Y=", password: "Abcdef1!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decrypt(tt.envelope, tt.password)
			assert.Equal(t, ErrDecryptFailed, err)
			assert.Empty(t, got)
		})
	}
}

func TestCipher_EmptyPlaintextEnvelopeIsFailure(t *testing.T) {
	// Hand-build a valid envelope around an empty message.
	header := encodeHeader(testParams)
	salt := make([]byte, saltSize)
	nonce := make([]byte, nonceSize)
	_, _ = rand.Read(salt)
	_, _ = rand.Read(nonce)

	gcm, err := newGCM(deriveKey("Abcdef1!", salt, testParams))
	require.NoError(t, err)

	blob := append(append(append([]byte{}, header...), salt...), nonce...)
	blob = gcm.Seal(blob, nonce, nil, header)

	c := newTestCipher(t)
	_, err = c.Decrypt(base64.RawURLEncoding.EncodeToString(blob), "Abcdef1!")
	assert.Equal(t, ErrDecryptFailed, err)
}

func TestCipher_OpensWithEnvelopeParams(t *testing.T) {
	sealer := newTestCipher(t)
	opener, err := NewCipher(Params{Time: 2, MemoryKiB: 128, Threads: 2})
	require.NoError(t, err)

	envelope, err := sealer.Encrypt("hello", "Abcdef1!")
	require.NoError(t, err)

	got, err := opener.Decrypt(envelope, "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestNewCipher_RejectsBadParams(t *testing.T) {
	tests := []Params{
		{Time: 0, MemoryKiB: 64, Threads: 1},
		{Time: 11, MemoryKiB: 64, Threads: 1},
		{Time: 1, MemoryKiB: 64, Threads: 0},
		{Time: 1, MemoryKiB: 8, Threads: 4},
		{Time: 1, MemoryKiB: maxMemory + 1, Threads: 1},
	}
	for _, p := range tests {
		_, err := NewCipher(p)
		assert.ErrorIs(t, err, ErrInvalidParams, "params %+v", p)
	}

	assert.NoError(t, DefaultParams.Validate())
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateID()
		assert.Len(t, id, 22)
		assert.NotContains(t, id, "/")
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}
