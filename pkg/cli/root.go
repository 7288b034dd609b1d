// Package cli implements the askdb command line: the HTTP server and one-shot
// commands over the same generation pipeline.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/pkg/metrics"
)

// ExitCode is the process exit status returned by Run.
type ExitCode int

const (
	exitCodeSuccess ExitCode = 0
	exitCodeError   ExitCode = 1
	// exitCodeUnsafe is returned by check for SQL that would be refused.
	exitCodeUnsafe ExitCode = 2
)

// errUnsafe marks a completed check whose verdict is "unsafe".
type errUnsafe struct{ reason string }

func (e *errUnsafe) Error() string { return "unsafe SQL: " + e.reason }

// Run executes the command line and returns the exit code.
func Run(ctx context.Context, version string, args []string) ExitCode {
	return run(ctx, version, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, version string, args []string, stdout, stderr io.Writer) ExitCode {
	root := NewRootCmd(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if _, ok := err.(*errUnsafe); ok {
			return exitCodeUnsafe
		}
		fmt.Fprintln(stderr, "Error:", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

// NewRootCmd builds the askdb command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "askdb",
		Short: "Answer natural-language questions with safe read-only SQL",
		Long: `askdb - natural-language questions over PostgreSQL

askdb turns a question such as "Все задачи за сентябрь 2025" into a single
read-only SELECT, scopes it to the caller's company, enforces a row limit and
runs it against the configured database.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "completion", "check":
				return nil
			}
			if err := a.load(); err != nil {
				return err
			}
			metrics.BuildInfo.WithLabelValues(version).Set(1)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: config.yaml when present)")

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newSchemaCmd(a),
		newCheckCmd(),
	)
	return root
}
