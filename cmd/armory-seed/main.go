package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"armory/internal/catalog"
	"armory/internal/config"
	"armory/internal/store/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadSeedFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	doc, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("catalog invalid", "path", cfg.CatalogPath, "err", err)
		os.Exit(1)
	}

	dsn := cfg.DatabaseURL
	if d, err := sqlstore.ParseDialect(cfg.StoreDriver); err == nil && d == sqlstore.SQLite {
		dsn = cfg.SQLitePath
	}
	store, err := sqlstore.Open(ctx, cfg.StoreDriver, dsn, logger)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}
	res, err := store.Reconcile(ctx, doc)
	if err != nil {
		logger.Error("reconcile failed", "err", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "store", store.Dialect().String(), "factions", res.Factions, "items", res.Items, "edges", res.Edges)
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}
