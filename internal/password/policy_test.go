package password

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestGenerate_AlwaysValid_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p, err := Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(p) != GeneratedLength {
			t.Fatalf("length %d, want %d", len(p), GeneratedLength)
		}
		for _, c := range p {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("character %q outside alphabet", c)
			}
		}
		if err := Validate(p); err != nil {
			t.Fatalf("generated password %q rejected: %v", p, err)
		}
	})
}

func TestGenerate_ManyIterations(t *testing.T) {
	for i := 0; i < 2000; i++ {
		p, err := Generate()
		require.NoError(t, err)
		require.NoError(t, Validate(p), p)
	}
}

func TestRepair_FillsMissingClasses(t *testing.T) {
	tests := []string{
		"aaaaaaaaaaaaaaaa",
		"aaaaaaaaAAAAAAAA",
		"aaaaAAAA11111111",
		"!!!!!!!!!!!!!!!!",
	}
	for _, in := range tests {
		buf := []byte(in)
		require.NoError(t, repair(buf))
		assert.Len(t, buf, GeneratedLength)
		assert.NoError(t, Validate(string(buf)), "repaired %q -> %q", in, buf)
	}
}

func TestRepair_KeepsCompletePassword(t *testing.T) {
	buf := []byte("aB3!aB3!aB3!aB3!")
	require.NoError(t, repair(buf))
	assert.Equal(t, "aB3!aB3!aB3!aB3!", string(buf))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantMsg  string
	}{
		{name: "valid", password: "Abcdef1!"},
		{name: "valid long generated style", password: "x9(Q_t+Lm2@wZr#e"},
		{name: "seven chars", password: "short1!", wantMsg: "Password must be at least 8 characters long"},
		{name: "empty", password: "", wantMsg: "Password must be at least 8 characters long"},
		{name: "length checked before classes", password: "ABC", wantMsg: "Password must be at least 8 characters long"},
		{name: "no lowercase", password: "ABCDEF1!", wantMsg: "Password must contain at least one lowercase letter"},
		{name: "no uppercase", password: "abcdef1!", wantMsg: "Password must contain at least one uppercase letter"},
		{name: "no digit", password: "Abcdefg!", wantMsg: "Password must contain at least one number"},
		{name: "no special", password: "Abcdefg1", wantMsg: "Password must contain at least one special character (!@#$%^&*()_+)"},
		{name: "special outside set", password: "Abcdefg1-", wantMsg: "Password must contain at least one special character (!@#$%^&*()_+)"},
		{name: "multibyte counted as characters", password: "Ab1!éé", wantMsg: "Password must be at least 8 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.password)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantMsg, verr.Message)
		})
	}
}

func TestStrength(t *testing.T) {
	assert.Equal(t, 0, Strength(""))

	weak := Strength("Password1!")
	strong := Strength("x9(Q_t+Lm2@wZr#e")
	assert.GreaterOrEqual(t, strong, weak)
	assert.LessOrEqual(t, strong, 4)
}
