// Package cache provides a small TTL byte cache used for rendered sidebar
// data and the sitemap. Two backends exist: a local SQLite file and Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"go-blog-app/internal/config"
)

// Keys of the cached aggregates. Writes to posts or taxonomy delete both.
const (
	KeySidebar = "sidebar"
	KeySitemap = "sitemap"
)

// Store is a TTL key/value cache. A miss is (nil, nil), never an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLite(cfg.FilePath)
	case "redis":
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
