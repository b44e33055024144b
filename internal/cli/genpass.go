package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"secure.notes/internal/password"
)

func (a *app) newGenpassCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genpass",
		Short: "Print a generated password",
		Long:  "Print a password the way create generates one: 16 characters with lower and upper case letters, digits and symbols.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			pw, err := password.Generate()
			if err != nil {
				return fmt.Errorf("generating password: %w", err)
			}
			fmt.Fprintln(a.io.Out, pw)
			return nil
		},
	}
}
