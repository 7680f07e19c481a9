package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "expensetracker",
		Short: "Server-rendered expense tracker",
		Long: `expensetracker serves the expense tracker web UI in front of the
expenses REST backend. The signed-in session is persisted to the configured
store (sqlite, redis or memory) and restored on startup.

Configuration is read from the environment and from .env when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			LoadEnvFile()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCommand(), newSessionCommand(), newEventsCommand())
	return root
}

// ExecuteContext runs the command tree with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
