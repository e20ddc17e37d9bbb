package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultSQLitePath = "file:armory.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

type APIConfig struct {
	Addr             string
	StoreDriver      string
	DatabaseURL      string
	SQLitePath       string
	JWTSecret        string
	JWTIssuer        string
	StarterCode      string
	StartingCurrency int64
	MigrateOnStart   bool
	RequestTimeout   time.Duration
}

type SeedConfig struct {
	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	CatalogPath string
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadDotEnv reads .env files into the process environment. Missing files
// are skipped and variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("ARMORY_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:             addr,
		StoreDriver:      strings.ToLower(envDefault("ARMORY_STORE_DRIVER", "postgres")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:       envDefault("ARMORY_SQLITE_PATH", defaultSQLitePath),
		JWTSecret:        strings.TrimSpace(os.Getenv("ARMORY_JWT_SECRET")),
		JWTIssuer:        strings.TrimSpace(os.Getenv("ARMORY_JWT_ISSUER")),
		StarterCode:      strings.TrimSpace(os.Getenv("ARMORY_STARTER_CODE")),
		StartingCurrency: envIntDefault("ARMORY_STARTING_CURRENCY", 10000),
		MigrateOnStart:   envBoolDefault("ARMORY_MIGRATE_ON_START", true),
		RequestTimeout:   envDurationDefault("ARMORY_REQUEST_TIMEOUT", 30*time.Second),
	}
	if err := checkStore(cfg.StoreDriver, cfg.DatabaseURL); err != nil {
		return cfg, err
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("ARMORY_JWT_SECRET is required")
	}
	if cfg.StartingCurrency < 0 {
		return cfg, fmt.Errorf("ARMORY_STARTING_CURRENCY must be >= 0")
	}
	return cfg, nil
}

func LoadSeedFromEnv() (SeedConfig, error) {
	cfg := SeedConfig{
		StoreDriver: strings.ToLower(envDefault("ARMORY_STORE_DRIVER", "postgres")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:  envDefault("ARMORY_SQLITE_PATH", defaultSQLitePath),
		CatalogPath: strings.TrimSpace(os.Getenv("ARMORY_CATALOG_PATH")),
	}
	return cfg, checkStore(cfg.StoreDriver, cfg.DatabaseURL)
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("ARMORY_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func checkStore(driver, databaseURL string) error {
	switch driver {
	case "postgres", "postgresql", "pgx":
		if databaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("ARMORY_STORE_DRIVER must be postgres or sqlite, got %q", driver)
	}
	return nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
