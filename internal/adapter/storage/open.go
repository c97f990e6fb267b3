package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/port"
)

// Open connects the store selected by cfg.Kind and prepares its schema.
func Open(ctx context.Context, cfg config.StoreConfig) (port.Store, error) {
	switch strings.ToLower(cfg.Kind) {
	case config.StoreMemory:
		slog.Info("using in-memory store")
		return NewMemoryAdapter(), nil

	case config.StoreSQLite:
		s, err := NewSQLiteAdapter(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to sqlite", "path", cfg.SQLitePath)
		return s, nil

	case config.StoreMySQL:
		db, err := OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		s, err := NewMySQLAdapter(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("connected to mysql")
		return s, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		slog.Info("connected to redis", "addr", cfg.RedisAddr)
		return NewRedisAdapter(rdb, cfg.RedisPrefix), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}
