package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"expensetracker/internal/amqp"
	"expensetracker/internal/api"
	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/events"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/prefs"
	"expensetracker/internal/services"
	"expensetracker/internal/session"
)

const (
	cacheCleanupInterval = 10 * time.Minute
	eventBuffer          = 64
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg.LogLevel)

	kv, err := OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithRestoreTimeout(cfg.RestoreTimeout),
	}
	dispatcher, closePublisher := startEvents(ctx, cfg, logger)
	if dispatcher != nil {
		sessionOpts = append(sessionOpts, session.WithListener(dispatcher.Listener()))
		defer closePublisher()
	}

	store := session.New(kv, sessionOpts...)
	// Restore runs alongside startup; the gate shows the loading page until
	// it finishes.
	go store.Restore(ctx)

	client, err := api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}
	client.SetCredentials(store, store.ClearSession)

	categories := cache.NewLRUCache[[]core.Category](8, cfg.CategoryCacheTTL)
	stats := cache.NewLRUCache[core.DashboardStats](4, cfg.CategoryCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(categories)
	caches.Register(stats)
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	srv, err := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Store:          store,
		Auth:           services.NewAuthService(client, store, logger),
		Expenses:       services.NewExpenseService(client, categories),
		Admin:          services.NewAdminService(client, categories, stats),
		Themes:         prefs.NewThemes(kv),
		ReceiptURL:     client.ReceiptURL,
		BackendOrigin:  client.Origin(),
		Logger:         logger,
		LoginRateLimit: cfg.LoginRateLimit,
	})
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting expensetracker server",
			"port", cfg.Port, log.FieldBackend, cfg.PersistBackend, "api_base_url", cfg.APIBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.LogError(ctx, "Server error", err, log.OpStartup, nil)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return shutdown(shutdownCtx, logger, srv, store, dispatcher)
}

// startEvents connects the session-event publisher when AMQP is
// configured. A broker that cannot be reached disables events instead of
// failing startup.
func startEvents(ctx context.Context, cfg *config.Config, logger *log.Logger) (*events.Dispatcher, func()) {
	if cfg.AMQPURL == "" {
		return nil, func() {}
	}
	publisher, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
	if err != nil {
		logger.Warn("Session events disabled: broker unreachable", log.FieldError, err.Error())
		return nil, func() {}
	}
	logger.Info("Publishing session events", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
	return events.NewDispatcher(publisher, logger, eventBuffer), func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err.Error())
		}
	}
}

// shutdown stops taking requests, then flushes the session and drains
// pending events.
func shutdown(ctx context.Context, logger *log.Logger, srv *apphttp.Server, store *session.Store, dispatcher *events.Dispatcher) error {
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	if err := store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}
	if dispatcher != nil {
		if err := dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.LogError(ctx, "Shutdown incomplete", err, log.OpShutdown, nil)
		return err
	}
	m := srv.Metrics()
	logger.Info("Server stopped gracefully", "requests_served", m.TotalRequests)
	return nil
}
