package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"expensetracker/internal/amqp"
	"expensetracker/internal/events"
	"expensetracker/internal/log"
	"expensetracker/internal/worker"
)

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Consume and inspect session events",
		Long: `Session transitions (login, logout, restore, clear) are published to the
AMQP exchange configured by AMQP_URL, AMQP_EXCHANGE and AMQP_ROUTING_KEY.

Commands:
  watch    Consume events and record them in the audit trail
  audit    Print the newest recorded events

Examples:
  expensetracker events watch
  expensetracker events audit --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var limit int
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Print the newest recorded events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			kv, err := OpenStorage(cmd.Context(), cfg, log.Discard())
			if err != nil {
				return err
			}
			defer kv.Close()

			recent, err := worker.NewAuditWorker(kv, 0, nil).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printAudit(cmd.OutOrStdout(), recent)
		},
	}
	audit.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to print (0 for all)")

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Consume events and record them in the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context())
		},
	}

	cmd.AddCommand(watch, audit)
	return cmd
}

func runWatch(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is not set")
	}
	logger := SetupLogger(cfg.LogLevel)

	kv, err := OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	w := worker.NewAuditWorker(kv, worker.DefaultAuditLimit, logger)
	logger.Info("Event watcher started", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)

	err = client.Consume(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		logger.Info("Event watcher stopped")
		return nil
	}
	return err
}

func printAudit(out io.Writer, recent []events.Event) error {
	if len(recent) == 0 {
		_, err := fmt.Fprintln(out, "No session events recorded.")
		return err
	}
	for _, e := range recent {
		line := fmt.Sprintf("%s  %-8s", e.Timestamp.Local().Format(time.DateTime), e.Type)
		if e.UserID != 0 {
			line += fmt.Sprintf("  user=%d role=%s", e.UserID, e.Role)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
