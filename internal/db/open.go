package db

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjannette/fiindo-etl/internal/repository"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Backend reports which store a DATABASE_URL selects. postgres:// and
// postgresql:// go to Postgres; sqlite://, file: and bare paths go to SQLite.
func Backend(url string) (backend, target string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return BackendPostgres, url
	case strings.HasPrefix(url, "sqlite://"):
		return BackendSQLite, strings.TrimPrefix(url, "sqlite://")
	default:
		return BackendSQLite, url
	}
}

// Open connects to the store named by url. When migrate is set the schema
// is created before the store is returned.
func Open(ctx context.Context, url string, migrate bool, logger *zap.Logger) (repository.Store, error) {
	backend, target := Backend(url)
	if target == "" {
		return nil, fmt.Errorf("empty database url")
	}

	var store repository.Store
	switch backend {
	case BackendPostgres:
		pool, err := Connect(ctx, target, DefaultPoolOptions)
		if err != nil {
			return nil, err
		}
		if err := checkServer(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		store = repository.NewPGStore(pool)
	default:
		gdb, err := OpenSQLite(target)
		if err != nil {
			return nil, err
		}
		logger.Info("database connection ok", zap.String("backend", backend), zap.String("path", target))
		store = repository.NewGormStore(gdb)
	}

	if migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
