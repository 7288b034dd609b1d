package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/pkg/models"
	sqlutil "github.com/askdb/askdb/pkg/sql"
)

type askFlags struct {
	userID       int64
	companyID    int64
	departmentID int64
	role         string
	limit        int
	execute      bool
}

func newAskCmd(a *app) *cobra.Command {
	var f askFlags

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Generate SQL for a question, optionally executing it",
		Long: `Generate a read-only SELECT for a natural-language question.

Without --execute the generated SQL and its safety verdict are printed using
the identity given by flags. With --execute the user is resolved from the
users table and the full answer is printed as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if f.userID <= 0 {
				return errors.New("--user-id is required")
			}

			c, err := a.buildCore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			out := cmd.OutOrStdout()
			if f.execute {
				resp, err := c.askService.Ask(cmd.Context(), models.AskRequest{
					Question: question,
					Identity: models.Identity{UserID: f.userID},
					Limit:    f.limit,
				})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			generated := c.generator.GenerateSQL(cmd.Context(), question, f.identity(cmd), f.limit)
			fmt.Fprintln(out, generated.SQL)
			if generated.NeedsClarification {
				fmt.Fprintf(out, "-- needs clarification: %s\n", generated.ClarificationQuestion)
			}
			if err := sqlutil.ValidateSelect(generated.SQL); err != nil {
				fmt.Fprintf(out, "-- refused: %s\n", err)
			} else {
				fmt.Fprintln(out, "-- safe: read-only SELECT")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&f.userID, "user-id", 0, "asking user id")
	cmd.Flags().Int64Var(&f.companyID, "company-id", 0, "company scope (generation only)")
	cmd.Flags().Int64Var(&f.departmentID, "department-id", 0, "department (generation only)")
	cmd.Flags().StringVar(&f.role, "role", "", "role (generation only)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "row limit (default from config)")
	cmd.Flags().BoolVar(&f.execute, "execute", false, "resolve the user and run the query")
	return cmd
}

// identity builds an identity from flags; unset optional flags stay absent.
func (f askFlags) identity(cmd *cobra.Command) models.Identity {
	id := models.Identity{UserID: f.userID}
	if cmd.Flags().Changed("company-id") {
		v := f.companyID
		id.CompanyID = &v
	}
	if cmd.Flags().Changed("department-id") {
		v := f.departmentID
		id.DepartmentID = &v
	}
	if cmd.Flags().Changed("role") {
		v := f.role
		id.Role = &v
	}
	return id
}
