package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"secure.notes/internal/flow"
)

type readOptions struct {
	yes  bool
	copy bool
}

func (a *app) newReadCommand() *cobra.Command {
	opts := &readOptions{}

	cmd := &cobra.Command{
		Use:   "read LINK",
		Short: "Read a note and destroy it",
		Long: `Fetch the note behind LINK, destroy it on the server and decrypt it here.

If the link carries a password the note opens straight away; otherwise you are
asked for it. A wrong password can be retried: the ciphertext is kept in memory
and the server is not asked again. An empty password gives up.

Quote the link in your shell: generated passwords contain characters such as
'#', '&' and '*'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRead(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask before destroying the note")
	cmd.Flags().BoolVarP(&opts.copy, "copy", "c", false, "Copy the plaintext to the clipboard")
	return cmd
}

func (a *app) runRead(cmd *cobra.Command, rawLink string, opts *readOptions) error {
	svc, err := a.newService()
	if err != nil {
		return err
	}

	r, err := svc.Open(rawLink)
	if err != nil {
		return fail(err)
	}
	defer r.Close()

	fmt.Fprintln(a.io.Err, "Opening", r.Hidden())

	if !opts.yes {
		ok, err := a.confirm("Reading this note will destroy it. Continue? [y/N]: ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.io.Err, "Cancelled. The note was not read.")
			return nil
		}
	}

	ctx := cmd.Context()

	err = r.Confirm(ctx)
	switch {
	case err == nil:
	case isRetryable(err):
		fmt.Fprintln(a.io.Err, flow.UserMessage(err))
	default:
		return fail(err)
	}

	for r.State() != flow.Unlocked {
		pw, err := a.readSecret("Password: ")
		if err != nil {
			return err
		}

		err = r.SubmitPassword(ctx, pw)
		switch {
		case err == nil:
		case isRetryable(err):
			fmt.Fprintln(a.io.Err, flow.UserMessage(err))
		default:
			return fail(err)
		}
	}

	plaintext := r.Plaintext()
	fmt.Fprintln(a.io.Out, plaintext)
	fmt.Fprintln(a.io.Err, "This note has been destroyed on the server.")

	if opts.copy {
		if err := a.io.Copy(plaintext); err != nil {
			a.logger.Warn().Err(err).Msg("clipboard unavailable")
			fmt.Fprintln(a.io.Err, "Could not copy the note to the clipboard.")
		}
	}
	return nil
}

// isRetryable is a wrong password or corrupted note: the ciphertext is in
// hand, so another password can be tried locally.
func isRetryable(err error) bool {
	var cErr *flow.CryptoError
	return errors.As(err, &cErr)
}
