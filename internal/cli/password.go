package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"golang.org/x/term"
)

// IO is where the CLI reads and writes. Zero fields fall back to the
// process streams and the system clipboard.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// ReadSecret prompts and reads one password. The default hides input
	// when In is a terminal.
	ReadSecret func(prompt string) (string, error)
	// Copy puts text on the clipboard.
	Copy func(text string) error
}

func (s IO) withDefaults() IO {
	if s.In == nil {
		s.In = os.Stdin
	}
	if s.Out == nil {
		s.Out = os.Stdout
	}
	if s.Err == nil {
		s.Err = os.Stderr
	}
	if s.Copy == nil {
		s.Copy = clipboard.WriteAll
	}
	return s
}

// terminalFd returns the descriptor behind In when it is a terminal.
func (a *app) terminalFd() (int, bool) {
	f, ok := a.io.In.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// canPromptSecret reports whether readSecret can ask for a password
// without consuming the message input.
func (a *app) canPromptSecret() bool {
	if a.io.ReadSecret != nil {
		return true
	}
	_, ok := a.terminalFd()
	return ok
}

// readSecret reads a password without echo. Falls back to a plain line
// read if stdin is not a terminal.
func (a *app) readSecret(prompt string) (string, error) {
	if a.io.ReadSecret != nil {
		return a.io.ReadSecret(prompt)
	}

	fmt.Fprint(a.io.Err, prompt)

	if fd, ok := a.terminalFd(); ok {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.io.Err) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	return a.readLine()
}

// readLine returns the next line of input without its line ending. At end
// of input it returns an empty line.
func (a *app) readLine() (string, error) {
	line, err := a.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) confirm(prompt string) (bool, error) {
	fmt.Fprint(a.io.Err, prompt)
	answer, err := a.readLine()
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func strengthLabel(score int) string {
	switch score {
	case 0:
		return "very weak"
	case 1:
		return "weak"
	case 2:
		return "fair"
	case 3:
		return "good"
	default:
		return "strong"
	}
}
