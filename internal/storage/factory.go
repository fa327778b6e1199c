package storage

import (
	"context"

	"go.uber.org/zap"

	"deepdive/internal/metrics"
)

type Config struct {
	// Path to the SQLite file; empty selects the in-memory store only.
	Path         string
	AuthRequired bool
}

// New builds the application store. A database that cannot be opened or
// migrated is logged and replaced by the memory store.
func New(ctx context.Context, cfg Config, log *zap.Logger, m *metrics.Metrics) Store {
	if log == nil {
		log = zap.NewNop()
	}
	mem := NewMemoryStore()
	if cfg.Path == "" {
		log.Info("no database configured, using memory store")
		return mem
	}

	db, err := OpenSQLite(ctx, cfg.Path)
	if err != nil {
		log.Error("database unavailable, using memory store", zap.String("path", cfg.Path), zap.Error(err))
		return mem
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		log.Error("migrations failed, using memory store", zap.String("path", cfg.Path), zap.Error(err))
		return mem
	}
	log.Info("sqlite store ready", zap.String("path", cfg.Path), zap.Bool("auth_required", cfg.AuthRequired))
	return NewFallbackStore(NewSQLStore(db, cfg.AuthRequired), mem, log, m)
}
