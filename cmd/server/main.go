// Command mb-server starts the Manus Bridge HTTP server.
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

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/manus-bridge/internal/manus"
	"github.com/and161185/manus-bridge/internal/migrate"
	"github.com/and161185/manus-bridge/internal/repository/postgres"
	"github.com/and161185/manus-bridge/internal/server/httpapi"
	"github.com/and161185/manus-bridge/internal/service"
	"github.com/and161185/manus-bridge/internal/vault"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	// Flags; secrets default from the environment.
	addr := flag.String("addr", ":8080", "listen address")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
	jwtKey := flag.String("jwt-key", os.Getenv("JWT_SIGN_KEY"), "HS256 signing key of the auth provider (required)")
	secret := flag.String("encryption-secret", os.Getenv("ENCRYPTION_SECRET"), "secret for deriving the API-key encryption key")
	upstreamTimeout := flag.Duration("upstream-timeout", manus.DefaultTimeout, "timeout for upstream task calls")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key or JWT_SIGN_KEY)")
	}
	if *dsn == "" {
		logger.Fatal("missing database DSN (--dsn or DATABASE_URL)")
	}
	if vault.UsingDevSecret(*secret) {
		logger.Warn("no encryption secret configured, falling back to the dev secret; do not run this in production")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, *dsn); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	accountRepo := postgres.NewAccountRepo(db)
	taskRepo := postgres.NewTaskRepo(db)

	// Upstream client and vault
	v := vault.New(*secret)
	client := manus.NewClient(*upstreamTimeout)

	// Services
	accountSvc := service.NewAccountService(accountRepo, v, client)
	taskSvc := service.NewTaskService(taskRepo, accountRepo, v, client, logger)

	// HTTP server
	api := httpapi.New(accountSvc, taskSvc)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Router(logger, []byte(*jwtKey)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
