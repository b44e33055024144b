package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"secure.notes/internal/flow"
	"secure.notes/internal/password"
)

var errPasswordNeedsTerminal = errors.New("--password reads the password from the terminal; pass the message with -m when stdin is redirected")

type createOptions struct {
	message  string
	password bool
	copy     bool
}

func (a *app) newCreateCommand() *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Encrypt a message and print its one-time link",
		Long: `Encrypt a message and store the ciphertext. The printed link can be
opened exactly once.

Without --password a strong password is generated and carried in the link
fragment. With --password you choose one (asked twice, hidden) and must share
it separately; the link alone cannot open the note.

Examples:
  # Generated password, link carries everything
  notes create -m "the door code is 4711"

  # Message from a file
  notes create < secret.txt

  # Chosen password, asked for on the terminal
  notes create -m "the door code is 4711" --password

  # Put the link on the clipboard
  notes create -m "hello" --copy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCreate(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "Message to encrypt (default: read stdin)")
	cmd.Flags().BoolVarP(&opts.password, "password", "p", false, "Choose the password instead of generating one")
	cmd.Flags().BoolVarP(&opts.copy, "copy", "c", false, "Copy the link to the clipboard")
	return cmd
}

func (a *app) runCreate(cmd *cobra.Command, opts *createOptions) error {
	draft := flow.Draft{Message: opts.message}
	fromStdin := !cmd.Flags().Changed("message")

	if fromStdin && opts.password && !a.canPromptSecret() {
		return errPasswordNeedsTerminal
	}

	if fromStdin {
		data, err := io.ReadAll(a.lines)
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}
		draft.Message = string(data)
	}

	if opts.password {
		pw, err := a.readSecret("Password: ")
		if err != nil {
			return err
		}
		confirm, err := a.readSecret("Confirm password: ")
		if err != nil {
			return err
		}
		draft.CustomPassword = true
		draft.Password = pw
		draft.Confirm = confirm

		if password.Validate(pw) == nil {
			fmt.Fprintf(a.io.Err, "Password strength: %s\n", strengthLabel(password.Strength(pw)))
		}
	}

	svc, err := a.newService()
	if err != nil {
		return err
	}

	created, err := svc.NewComposer().Submit(cmd.Context(), draft)
	if err != nil {
		return fail(err)
	}

	fmt.Fprintln(a.io.Out, created.Link)
	fmt.Fprintln(a.io.Err, "This note will self-destruct after it is read once.")
	if !created.Generated {
		fmt.Fprintln(a.io.Err, "The password is not part of the link. Share it separately.")
	}

	if opts.copy {
		if err := a.io.Copy(created.Link); err != nil {
			a.logger.Warn().Err(err).Msg("clipboard unavailable")
			fmt.Fprintln(a.io.Err, "Could not copy the link to the clipboard.")
		} else {
			fmt.Fprintln(a.io.Err, "Link copied to clipboard.")
		}
	}
	return nil
}
