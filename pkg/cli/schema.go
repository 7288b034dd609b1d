package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [table...]",
		Short: "Print the schema snippets used as model context",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.buildCore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.catalog.EnsureLoaded(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for line := range c.catalog.Snippets(cmd.Context()) {
					fmt.Fprintln(out, line)
				}
				return nil
			}

			tables := make([]string, 0, len(args))
			for _, name := range args {
				resolved, ok := c.catalog.ResolveTable(cmd.Context(), name)
				if !ok {
					return fmt.Errorf("unknown table %q", name)
				}
				tables = append(tables, resolved)
			}
			for _, line := range c.catalog.Describe(cmd.Context(), tables) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
