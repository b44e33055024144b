// Package password holds the note password policy: how generated
// passwords are produced and which user-chosen passwords are accepted.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/Picocrypt/zxcvbn-go"
)

const (
	// GeneratedLength is the length of every generated password.
	GeneratedLength = 16
	// MinLength is the shortest accepted user-chosen password, in characters.
	MinLength = 8

	lower   = "abcdefghijklmnopqrstuvwxyz"
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
	Special = "!@#$%^&*()_+"

	alphabet = lower + upper + digits + Special

	// maxAttempts bounds rejection sampling before the fallback repair kicks in.
	maxAttempts = 64
)

var classes = []string{lower, upper, digits, Special}

// ValidationError is a policy violation with a message fit for the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type rule struct {
	ok      func(string) bool
	message string
}

// Order matters: only the first violated rule is reported.
var rules = []rule{
	{
		ok:      func(p string) bool { return utf8.RuneCountInString(p) >= MinLength },
		message: fmt.Sprintf("Password must be at least %d characters long", MinLength),
	},
	{
		ok:      func(p string) bool { return strings.ContainsAny(p, lower) },
		message: "Password must contain at least one lowercase letter",
	},
	{
		ok:      func(p string) bool { return strings.ContainsAny(p, upper) },
		message: "Password must contain at least one uppercase letter",
	},
	{
		ok:      func(p string) bool { return strings.ContainsAny(p, digits) },
		message: "Password must contain at least one number",
	},
	{
		ok:      func(p string) bool { return strings.ContainsAny(p, Special) },
		message: "Password must contain at least one special character (" + Special + ")",
	},
}

// Validate returns a *ValidationError for the first rule password breaks,
// or nil.
func Validate(password string) error {
	for _, r := range rules {
		if !r.ok(password) {
			return &ValidationError{Message: r.message}
		}
	}
	return nil
}

// Generate returns a random password of GeneratedLength characters that
// always satisfies Validate.
func Generate() (string, error) {
	buf := make([]byte, GeneratedLength)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := fill(buf, alphabet); err != nil {
			return "", err
		}
		if len(missingClasses(buf)) == 0 {
			return string(buf), nil
		}
	}

	// Unlucky streak: patch in one character per missing class at distinct
	// positions, chosen at random.
	if err := repair(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Strength is the zxcvbn score of password, from 0 (weak) to 4 (strong).
// It is advisory only.
func Strength(password string) int {
	if password == "" {
		return 0
	}
	return zxcvbn.PasswordStrength(password, nil).Score
}

func fill(buf []byte, set string) error {
	for i := range buf {
		c, err := pick(set)
		if err != nil {
			return err
		}
		buf[i] = c
	}
	return nil
}

func pick(set string) (byte, error) {
	n, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[n], nil
}

func randInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("crypto/rand failed: %w", err)
	}
	return int(n.Int64()), nil
}

func missingClasses(buf []byte) []string {
	var missing []string
	for _, class := range classes {
		if !strings.ContainsAny(string(buf), class) {
			missing = append(missing, class)
		}
	}
	return missing
}

func repair(buf []byte) error {
	missing := missingClasses(buf)
	if len(missing) == 0 {
		return nil
	}

	// Only overwrite positions whose class occurs more than once, so a
	// repair never removes the last representative of another class.
	used := make(map[int]bool)
	for _, class := range missing {
		start, err := randInt(len(buf))
		if err != nil {
			return err
		}

		pos := -1
		for i := range buf {
			p := (start + i) % len(buf)
			if !used[p] && replaceable(buf, p) {
				pos = p
				break
			}
		}
		if pos < 0 {
			return fmt.Errorf("no position left to place a %q character", class[:1])
		}

		c, err := pick(class)
		if err != nil {
			return err
		}
		buf[pos] = c
		used[pos] = true
	}
	return nil
}

func replaceable(buf []byte, pos int) bool {
	class := classOf(buf[pos])
	count := 0
	for _, b := range buf {
		if classOf(b) == class {
			count++
		}
	}
	return count > 1
}

func classOf(b byte) int {
	for i, class := range classes {
		if strings.IndexByte(class, b) >= 0 {
			return i
		}
	}
	return -1
}
