package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"expensetracker/internal/log"
	"expensetracker/internal/session"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the persisted session",
		Long: `Inspect or clear the session persisted in the configured store.

Commands:
  show     Print the persisted user
  clear    Sign out by clearing the persisted session

Examples:
  expensetracker session show
  PERSIST_BACKEND=redis expensetracker session clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the persisted user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(cfgBackend string, store *session.Store) error {
					return printSession(cmd.OutOrStdout(), cfgBackend, store.Snapshot())
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Sign out by clearing the persisted session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(_ string, store *session.Store) error {
					store.ClearSession()
					if err := store.Flush(cmd.Context()); err != nil {
						return fmt.Errorf("clear session: %w", err)
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "Session cleared.")
					return err
				})
			},
		},
	)
	return cmd
}

// withStore opens the configured substrate, restores the session into a
// store and closes both after fn.
func withStore(ctx context.Context, fn func(backend string, store *session.Store) error) (err error) {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger := log.Discard()

	kv, err := OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	store := session.New(kv, session.WithLogger(logger), session.WithRestoreTimeout(cfg.RestoreTimeout))
	defer func() {
		if cerr := store.Close(ctx); err == nil && cerr != nil {
			err = cerr
		}
	}()
	store.Restore(ctx)
	return fn(cfg.PersistBackend, store)
}

func printSession(w io.Writer, backend string, snap session.Snapshot) error {
	if !snap.Authenticated() {
		_, err := fmt.Fprintf(w, "Backend: %s\nNo active session.\n", backend)
		return err
	}
	u := snap.User
	_, err := fmt.Fprintf(w, "Backend: %s\nUser:    %s <%s>\nID:      %d\nRole:    %s\n",
		backend, u.DisplayName, u.Email, u.ID, u.Role)
	return err
}
