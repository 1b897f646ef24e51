/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cash-flow forecast server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (TOML file + environment)
  2. Build the logrus logger
  3. Open the SQL store (SQLite or PostgreSQL)
  4. Create API handler, engine and risk scanner
  5. Configure HTTP router
  6. Start server and scanner, then wait for a signal

COMMAND-LINE FLAGS:
  -config  Path to the TOML config file (default: forecast.toml)
  -port    Override server.port
  -db      Override database.dsn. Use ":memory:" for an in-memory database

ENVIRONMENT:
  PORT, DB_DRIVER, DB_CONN, LOG_LEVEL, LOG_FORMAT override the file.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the risk scanner
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/cashflow-forecast/api"
	"github.com/warp/cashflow-forecast/config"
	"github.com/warp/cashflow-forecast/store/sqlstore"
)

func main() {
	// Flags
	configPath := flag.String("config", "forecast.toml", "Path to TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dsn := flag.String("db", "", "Database DSN (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	logger := cfg.NewLogger()

	// Initialize store
	store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.WithError(err).WithField("driver", cfg.Database.Driver).Fatal("Failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, logger)
	handler.Engine.DefaultLookback = cfg.Forecast.DefaultLookbackMonths
	handler.Engine.Uplift.MaxAttempts = cfg.Forecast.UpliftMaxAttempts
	handler.Scanner.Enabled = cfg.Scanner.Enabled
	handler.Scanner.Schedule = cfg.Scanner.Schedule

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  60 * time.Second,
	}

	if err := handler.Scanner.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start risk scanner")
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":   server.Addr,
			"driver": store.Driver(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	handler.Scanner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
