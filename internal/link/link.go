// Package link builds and parses note share links.
//
//	<origin>/notes/<token>            password shared out of band
//	<origin>/notes/<token>#<password> generated password carried in the fragment
//
// Browsers never send the fragment, so the generated password stays off
// the wire. Once a link is parsed only its hidden form is shown again.
package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	NotesPrefix = "/notes/"
	ReadPrefix  = "/read/"

	// Placeholder replaces the token in the visible address after capture.
	Placeholder = "hidden"
)

var (
	ErrInvalidLink  = errors.New("invalid note link")
	ErrMissingToken = errors.New("note link has no token")
)

// Incoming is what a reader needs from an opened link.
type Incoming struct {
	Token       string
	Password    string
	HasPassword bool
	// Hidden is the address to show from now on: no token, no fragment.
	Hidden string
}

// Build returns the share link for token. The password is appended as the
// fragment only when it was generated; a chosen password never appears.
func Build(origin, token, password string, generated bool) (string, error) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return "", fmt.Errorf("%w: empty origin", ErrInvalidLink)
	}
	if err := checkToken(token); err != nil {
		return "", err
	}

	link := origin + NotesPrefix + token
	if generated {
		if password == "" {
			return "", fmt.Errorf("%w: generated password is empty", ErrInvalidLink)
		}
		link += "#" + password
	}
	return link, nil
}

// Parse reads the token and fragment out of raw exactly once. The fragment
// is everything after the first '#', matching location.hash; generated
// passwords may contain '#' themselves.
func Parse(raw string) (Incoming, error) {
	raw = strings.TrimSpace(raw)
	base, fragment, hasFragment := strings.Cut(raw, "#")

	u, err := url.Parse(base)
	if err != nil {
		return Incoming{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}

	token, err := tokenAfterPrefix(u.EscapedPath())
	if err != nil {
		return Incoming{}, err
	}

	in := Incoming{
		Token:       token,
		Password:    fragment,
		HasPassword: hasFragment && fragment != "",
	}
	in.Hidden = hiddenAddress(u)
	return in, nil
}

// TokenFromNoteLink extracts the token from the noteLink returned by the
// store: the whole opaque segment after the last /notes/.
func TokenFromNoteLink(noteLink string) (string, error) {
	base, _, _ := strings.Cut(strings.TrimSpace(noteLink), "#")
	base, _, _ = strings.Cut(base, "?")

	i := strings.LastIndex(base, NotesPrefix)
	if i < 0 {
		return "", fmt.Errorf("%w: %q has no %s segment", ErrMissingToken, Hide(noteLink), NotesPrefix)
	}

	token := strings.TrimSuffix(base[i+len(NotesPrefix):], "/")
	if err := checkToken(token); err != nil {
		return "", err
	}
	return token, nil
}

// Hide returns raw with its token and fragment replaced, for logs and
// terminal output.
func Hide(raw string) string {
	base, _, _ := strings.Cut(strings.TrimSpace(raw), "#")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ReadPrefix + Placeholder
	}
	return hiddenAddress(u)
}

func hiddenAddress(u *url.URL) string {
	if u.Scheme == "" || u.Host == "" {
		return ReadPrefix + Placeholder
	}
	return u.Scheme + "://" + u.Host + ReadPrefix + Placeholder
}

func tokenAfterPrefix(path string) (string, error) {
	idx, prefix := -1, ""
	for _, p := range []string{NotesPrefix, ReadPrefix} {
		if i := strings.LastIndex(path, p); i > idx {
			idx, prefix = i, p
		}
	}
	if idx < 0 {
		return "", ErrMissingToken
	}

	escaped := strings.TrimSuffix(path[idx+len(prefix):], "/")
	token, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if err := checkToken(token); err != nil {
		return "", err
	}
	return token, nil
}

func checkToken(token string) error {
	switch {
	case token == "":
		return ErrMissingToken
	case token == Placeholder:
		return fmt.Errorf("%w: link was already opened", ErrMissingToken)
	case strings.ContainsAny(token, "/#?"):
		return fmt.Errorf("%w: malformed token", ErrInvalidLink)
	}
	return nil
}
