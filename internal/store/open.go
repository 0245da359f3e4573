package store

import (
	"context"
	"fmt"

	"rubricon/internal/config"
)

// Open constructs the store named by the cache configuration.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case "", "sqlite":
		return OpenSQLite(cfg.Cache.Path)
	case "redis":
		return OpenRedis(ctx, cfg.Cache.RedisAddr, "", 0)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
