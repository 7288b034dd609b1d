package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/pkg/apperrors"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [sql]",
		Short: "Report whether SQL would pass the read-only safety check",
		Long: `Classify a statement and run the same safety check applied to generated SQL.

The statement is read from the argument, or from stdin when no argument is
given. Exits with status 2 when the statement would be refused.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sqlText string
			if len(args) == 1 {
				sqlText = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				sqlText = string(data)
			}
			sqlText = strings.TrimSpace(sqlText)

			out := cmd.OutOrStdout()
			stmtType, classifyErr := sqlutil.Classify(sqlText)
			fmt.Fprintf(out, "type: %s\n", stmtType)

			if err := sqlutil.ValidateSelect(sqlText); err != nil {
				reason := err.Error()
				var unsafe *apperrors.UnsafeSQLError
				if errors.As(err, &unsafe) && unsafe.Reason != "" {
					reason = unsafe.Reason
				} else if classifyErr != nil {
					reason = classifyErr.Error()
				}
				fmt.Fprintf(out, "safe: false\nreason: %s\n", reason)
				return &errUnsafe{reason: reason}
			}
			fmt.Fprintln(out, "safe: true")
			return nil
		},
	}
}
