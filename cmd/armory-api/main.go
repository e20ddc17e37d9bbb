package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"armory/internal/api"
	"armory/internal/auth"
	"armory/internal/config"
	"armory/internal/progression"
	"armory/internal/store/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	store, err := sqlstore.Open(ctx, cfg.StoreDriver, storeDSN(cfg), logger)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx); err != nil {
			logger.Error("migrate failed", "err", err)
			os.Exit(1)
		}
	}

	engine := progression.NewService(store, logger, progression.Config{
		StarterCode:      cfg.StarterCode,
		StartingCurrency: cfg.StartingCurrency,
	})
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	server := api.New(cfg, logger, verifier, engine, store)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("armory api listening", "addr", cfg.Addr, "store", store.Dialect().String())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func storeDSN(cfg config.APIConfig) string {
	if d, err := sqlstore.ParseDialect(cfg.StoreDriver); err == nil && d == sqlstore.SQLite {
		return cfg.SQLitePath
	}
	return cfg.DatabaseURL
}
