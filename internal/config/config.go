// Package config loads process configuration for the scheduler demo
// binary, following the teacher's own load-from-env-with-defaults shape
// (following the load-from-env-with-defaults shape common across this codebase's CLI entrypoints).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully resolved process configuration.
type Config struct {
	PostgresDSN string
	RedisURL    string

	// DiskCacheRoot is the filesystem directory cache tiles are written
	// under when the disk cache store backend is selected.
	DiskCacheRoot string

	// ComputePoolSize and IOPoolSize bound the two worker pools the
	// scheduler demo wires up: one for compute tasks, one for disk I/O.
	ComputePoolSize int
	IOPoolSize      int

	// IdleSleep is the scheduler loop's idle-sleep duration (spec.md
	// §4.1 step 4 specifies ~50ms; kept configurable for tests).
	IdleSleep time.Duration
}

// Load reads an optional .env file (ignored if absent, exactly like the
// teacher's main.go entrypoints) and then populates Config from the
// environment, applying defaults for anything unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg := Config{
		PostgresDSN:     getEnv("BUZZARD_POSTGRES_DSN", "postgres://localhost:5432/buzzard?sslmode=disable"),
		RedisURL:        getEnv("BUZZARD_REDIS_URL", "redis://localhost:6379/0"),
		DiskCacheRoot:   getEnv("BUZZARD_CACHE_ROOT", "./.buzzard-cache"),
		ComputePoolSize: getEnvInt("BUZZARD_COMPUTE_POOL_SIZE", 4),
		IOPoolSize:      getEnvInt("BUZZARD_IO_POOL_SIZE", 4),
		IdleSleep:       getEnvDuration("BUZZARD_IDLE_SLEEP", 50*time.Millisecond),
	}

	if cfg.ComputePoolSize <= 0 {
		return Config{}, fmt.Errorf("config: BUZZARD_COMPUTE_POOL_SIZE must be positive, got %d", cfg.ComputePoolSize)
	}
	if cfg.IOPoolSize <= 0 {
		return Config{}, fmt.Errorf("config: BUZZARD_IO_POOL_SIZE must be positive, got %d", cfg.IOPoolSize)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
