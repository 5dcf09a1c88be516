/**
 * @description
 * This is the main entry point for the FamilyBudget service. It is responsible
 * for initializing all components: configuration, database connection pool,
 * external API clients (transaction aggregator, push gateway, SMS provider),
 * the repository, the core application services, the cron scheduler, and the
 * HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log/slog, net/http: Standard Go libraries for logging and HTTP serving.
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pool.
 * - github.com/joho/godotenv: Loads .env files for local development.
 * - internal/api, internal/app, internal/config, internal/store: Service packages.
 * - pkg/aggregatorclient, pkg/pushclient, pkg/smsclient: External API clients.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/cjflanagan1/FamilyBudget/internal/api"
	"github.com/cjflanagan1/FamilyBudget/internal/app"
	"github.com/cjflanagan1/FamilyBudget/internal/config"
	"github.com/cjflanagan1/FamilyBudget/internal/store"
	"github.com/cjflanagan1/FamilyBudget/pkg/aggregatorclient"
	"github.com/cjflanagan1/FamilyBudget/pkg/pushclient"
	"github.com/cjflanagan1/FamilyBudget/pkg/smsclient"
)

func main() {
	// Load .env for local development; in production the environment is set
	// by the runtime and the file is absent.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger.Info("starting familybudget service", "port", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database url parse failed", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := dbpool.Ping(pingCtx); err != nil {
		cancelPing()
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	cancelPing()
	logger.Info("database connected")

	// External API clients.
	aggregator := aggregatorclient.NewClient(cfg.AggregatorBaseURL, cfg.AggregatorClientID, cfg.AggregatorSecret)
	push := pushclient.NewClient(cfg.PushGatewayURL, cfg.PushGatewayAPIKey, cfg.PushBundleID)
	sms := smsclient.NewClient(cfg.SMSBaseURL, cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSFromNumber, logger)

	// Data access layer.
	repository := store.NewPostgresRepository(dbpool)

	// Core application services.
	spending := app.NewSpendingStatusResolver(repository)
	notifier := app.NewNotifier(repository, push, spending, logger)
	subscriptions := app.NewSubscriptionService(repository, logger)
	engine := app.NewSyncEngine(repository, aggregator, notifier, subscriptions, logger)
	jobs := app.NewJobs(repository, engine, push, sms, logger, *cfg)

	// Scheduled jobs.
	scheduler := app.NewScheduler(jobs, logger, *cfg)
	scheduler.Start()

	// API handlers and router.
	handlers := api.NewHandlers(repository, engine, jobs, subscriptions, spending, aggregator, logger)
	router := api.Routes(handlers)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a termination signal is received, then drain.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	// Wait for any in-flight cron jobs to finish.
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("scheduler drain timed out")
	}

	logger.Info("service stopped")
}
