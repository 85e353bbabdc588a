/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the budget engine service: configuration, store,
  reconciliation service, rollover engine and scheduler, HTTP server with
  graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and environment configuration
  2. Initialize logging and the SQLite store
  3. Wire service + rollover engine + scheduler
  4. Configure HTTP router
  5. Start server; on SIGINT/SIGTERM stop the scheduler, drain requests,
     close the store

ENVIRONMENT:
  PORT, DB_PATH, TIME_ZONE, LOG_LEVEL, ROLLOVER_SCHEDULE, ROLLOVER_ENABLED
  (see config/config.go for defaults)

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/warp/budget-engine/api"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/config"
	"github.com/warp/budget-engine/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	loc, err := cfg.Location()
	if err != nil {
		logger.WithError(err).Fatal("invalid time zone")
	}

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	service := budget.NewService(store, logger)
	engine := budget.NewRolloverEngine(store, store, logger)

	var scheduler *api.RolloverScheduler
	if cfg.Rollover.Enabled {
		scheduler, err = api.NewRolloverScheduler(engine, cfg.Rollover.Schedule, loc, logger)
		if err != nil {
			logger.WithError(err).Fatal("invalid rollover schedule")
		}
		scheduler.Start()
	}

	handler := api.NewHandler(service, engine, store, loc, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.App.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("forced shutdown")
	}
	logger.Info("server stopped")
}
