package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

const idLength = 16

// GenerateID returns a random URL-safe note token.
func GenerateID() string {
	bytes := make([]byte, idLength)
	if _, err := rand.Read(bytes); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
