// Package cli is the notes command line: it creates self-destructing notes
// and reads them back from share links.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"secure.notes/config"
	"secure.notes/internal/client"
	"secure.notes/internal/crypto"
	"secure.notes/internal/flow"
	"secure.notes/internal/logger"
)

// Version is set by main.go
var Version = "dev"

// userError shows the flow's user-facing message instead of the cause.
type userError struct {
	err error
}

func (e *userError) Error() string {
	return flow.UserMessage(e.err)
}

func (e *userError) Unwrap() error {
	return e.err
}

type app struct {
	io    IO
	lines *bufio.Reader

	configPath string
	apiURL     string
	origin     string
	timeout    time.Duration
	logLevel   string

	cfg    *config.Config
	logger *logger.Logger
}

// NewRootCommand builds the command tree around streams.
func NewRootCommand(streams IO) *cobra.Command {
	streams = streams.withDefaults()
	a := &app{
		io:     streams,
		lines:  bufio.NewReader(streams.In),
		logger: logger.Nop(),
	}

	root := &cobra.Command{
		Use:   "notes",
		Short: "Self-destructing encrypted notes",
		Long: `notes encrypts a message on this machine and stores only the ciphertext.
The share link can be read exactly once; reading it destroys the note.

  - Argon2id derives the key from the password
  - AES-256-GCM encrypts and authenticates the note
  - A generated password travels in the link fragment, never to the server`,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to config file (YAML)")
	flags.StringVar(&a.apiURL, "api", "", "Note store URL (overrides client.api_url)")
	flags.StringVar(&a.origin, "origin", "", "Origin share links start with (overrides client.origin)")
	flags.DurationVar(&a.timeout, "timeout", 0, "Timeout for each store request (overrides client.timeout)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	root.AddCommand(
		a.newCreateCommand(),
		a.newReadCommand(),
		a.newStatusCommand(),
		a.newGenpassCommand(),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, streams IO, args []string) int {
	root := NewRootCommand(streams)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	cfg, err = cfg.WithOverrides(config.Config{
		Client: config.ClientConfig{
			APIURL:  a.apiURL,
			Origin:  a.origin,
			Timeout: a.timeout,
		},
	})
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	a.cfg = cfg
	a.logger = logger.New("notes", a.io.Err, a.logLevel)
	return nil
}

func (a *app) newClient() (*client.Client, error) {
	return client.New(a.cfg.Client.APIURL, a.cfg.Client.Timeout)
}

func (a *app) newService() (*flow.Service, error) {
	c, err := a.newClient()
	if err != nil {
		return nil, err
	}

	cipher, err := crypto.NewCipher(a.cfg.Crypto)
	if err != nil {
		return nil, err
	}

	return flow.NewService(c, cipher, a.cfg.Client.Origin, a.cfg.Client.Timeout, a.logger)
}

// fail wraps flow errors so the user sees their short message.
func fail(err error) error {
	var (
		vErr *flow.ValidationError
		sErr *flow.StorageError
		cErr *flow.CryptoError
	)
	if errors.As(err, &vErr) || errors.As(err, &sErr) || errors.As(err, &cErr) ||
		errors.Is(err, flow.ErrNoteDestroyed) || errors.Is(err, flow.ErrBusy) {
		return &userError{err: err}
	}
	if msg := flow.UserMessage(err); msg == flow.MsgNoteNotFound {
		return &userError{err: err}
	}
	return err
}
