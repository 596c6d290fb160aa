package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"lora-envmon/internal/config"
	"lora-envmon/internal/database"
	"lora-envmon/internal/repository"
)

// openStore 选择存储：DB_ENABLED=false 时使用内存存储
// DB 启用但不可用时返回错误，除非配置了 DB_MEMORY_FALLBACK
// 返回的 *sql.DB 在使用内存存储时为 nil
func openStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (repository.Store, *sql.DB, error) {
	if !cfg.DBEnabled {
		lg.Info("DB disabled, using memory store")
		return repository.NewMemoryStore(), nil, nil
	}

	db, err := connectPostgres(ctx, cfg, lg)
	if err == nil {
		return repository.NewPostgresStore(db, lg), db, nil
	}
	if !cfg.DBMemoryFallback {
		return nil, nil, err
	}
	lg.Warn("DB unavailable, falling back to memory store", zap.Error(err))
	return repository.NewMemoryStore(), nil, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*sql.DB, error) {
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := repository.NewPostgresStore(db, lg).EnsureSchema(ctx); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("schema bootstrap failed: %w", err)
	}
	lg.Info("DB enabled for envmon-server")
	return db, nil
}
