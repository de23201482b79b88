// Package storage selects the persistence backend for the knowledge base.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/petasbytes/tabularasa/internal/config"
	"github.com/petasbytes/tabularasa/internal/storage/file"
	"github.com/petasbytes/tabularasa/internal/storage/postgres"
	"github.com/petasbytes/tabularasa/internal/storage/redis"
	"github.com/petasbytes/tabularasa/internal/storage/sqlite"
	"github.com/petasbytes/tabularasa/memory"
)

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open returns the backend named by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (memory.Backend, error) {
	switch cfg.StoreDriver {
	case "", "file":
		return file.New(cfg.DataDir)
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.DataDir, "memory.db")
		}
		return sqlite.New(ctx, path)
	case "postgres":
		return postgres.New(ctx, cfg.PostgresDSN)
	case "redis":
		return redis.New(ctx, cfg.RedisURL)
	case "mem":
		return memory.NewMemBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER: %s", cfg.StoreDriver)
	}
}

// Ping checks b when it supports health checks.
func Ping(ctx context.Context, b memory.Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
