package store

import (
	"context"
	"fmt"

	"github.com/radieske/betref-client/internal/shared/cache"
	"github.com/radieske/betref-client/internal/shared/config"
	"github.com/radieske/betref-client/internal/shared/db"
)

// Open escolhe a implementação conforme STORE_BACKEND
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return NewMemory(), nil
	case "", "file":
		return OpenFile(cfg.StorePath, cfg.StoreNamespace)
	case "redis":
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return NewRedis(rdb, cfg.StoreNamespace), nil
	case "postgres":
		pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pg); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return NewPostgres(pg, cfg.StoreNamespace), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
