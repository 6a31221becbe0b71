package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kjannette/fiindo-etl/internal/db"
	"github.com/kjannette/fiindo-etl/internal/repository"
)

// SetupPool creates a pgxpool.Pool for Postgres integration tests. The test
// is skipped unless TEST_DATABASE_URL is set (env or ../../.env).
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// SetupSQLiteStore returns a migrated in-memory store.
func SetupSQLiteStore(t *testing.T) repository.Store {
	t.Helper()

	store, err := db.Open(context.Background(), "sqlite://:memory:", true, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
