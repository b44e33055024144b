package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"secure.notes/internal/link"
)

func (a *app) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status LINK",
		Short: "Check whether a note can still be read",
		Long:  "Ask the store whether the note behind LINK still exists. The note is not read and not destroyed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd.Context(), args[0])
		},
	}
}

func (a *app) runStatus(ctx context.Context, rawLink string) error {
	in, err := link.Parse(rawLink)
	if err != nil {
		return fail(err)
	}

	c, err := a.newClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Client.Timeout)
	defer cancel()

	exists, err := c.Status(ctx, in.Token)
	if err != nil {
		a.logger.Debug().Err(err).Str("link", in.Hidden).Msg("status check failed")
		return errors.New("could not reach the note store")
	}

	if exists {
		fmt.Fprintln(a.io.Out, "available")
		fmt.Fprintln(a.io.Err, "The note has not been read yet.")
	} else {
		fmt.Fprintln(a.io.Out, "gone")
		fmt.Fprintln(a.io.Err, "The note has been read, has expired or never existed.")
	}
	return nil
}
