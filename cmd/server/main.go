/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the extended-care billing server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load YAML config
  2. Build the zap logger
  3. Open the store (SQLite or in-memory)
  4. Create API handler, router and recalculation scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional; defaults apply without one)
  -port    HTTP server port, overrides server.port
  -db      SQLite database path, overrides database.path
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  EXTCARE_SECTION_FIELD overrides any config field, e.g.
  EXTCARE_SERVER_PORT=9090, EXTCARE_LOGGING_LEVEL=debug.
  Flags win over environment, environment over the file.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the recalculation scheduler
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close the store

EXAMPLES:
  ./server -config=./config.yaml
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/: Configuration loading
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/extcare-billing/api"
	"github.com/warp/extcare-billing/config"
	"github.com/warp/extcare-billing/logging"
	"github.com/warp/extcare-billing/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfigWithEnvOverrides(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = *dbPath
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	policy, err := cfg.Billing.WindowPolicy()
	if err != nil {
		return err
	}

	// Initialize store
	st, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	// Initialize handler and router
	metrics := api.NewMetrics()
	handler := api.NewHandler(st, policy, logger, metrics)
	handler.Recalculator.Concurrency = cfg.Recalc.Concurrency

	routerOpts := api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.Metrics.Enabled {
		routerOpts.MetricsPath = cfg.Metrics.Path
	}
	router := api.NewRouter(handler, routerOpts)

	scheduler := api.NewRecalculationScheduler(handler.Recalculator, logger.Named("scheduler"))
	scheduler.Enabled = cfg.Recalc.Enabled
	scheduler.CheckInterval = cfg.Recalc.Interval
	scheduler.Metrics = metrics
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  4 * cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.Database.Driver),
			zap.Stringer("default_dropoff", policy.DefaultDropoff),
			zap.Stringer("default_pickup", policy.DefaultPickup),
			zap.Stringer("transport_pickup_cutoff", policy.TransportPickupCutoff))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
