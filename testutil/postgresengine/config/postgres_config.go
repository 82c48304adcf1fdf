// Package config provides PostgreSQL connections for the integration tests of the activity store.
//
// Integration tests only run when TEST_POSTGRES_DSN points at a disposable database.
package config

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

const envTestDSN = "TEST_POSTGRES_DSN"

// TestDSN returns the integration test DSN or skips the test.
func TestDSN(t testing.TB) string {
	dsn := os.Getenv(envTestDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping postgres integration test", envTestDSN)
	}

	return dsn
}

// PGXPool opens a small pgx pool for tests and closes it on cleanup.
func PGXPool(t testing.TB, dsn string) *pgxpool.Pool {
	const maxConnections = int32(8)
	const minConnections = int32(1)
	const connectTimeout = time.Second * 5

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse pgx config: %v", err)
	}

	cfg.MaxConns = maxConnections
	cfg.MinConns = minConnections
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open pgx pool: %v", err)
	}

	t.Cleanup(pool.Close)

	return pool
}

// SQLDB opens a database/sql connection using lib/pq.
func SQLDB(t testing.TB, dsn string) *sql.DB {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open sql.DB: %v", err)
	}

	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(time.Minute)

	if pingErr := db.PingContext(context.Background()); pingErr != nil {
		t.Fatalf("ping sql.DB: %v", pingErr)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// SQLX opens an sqlx connection using lib/pq.
func SQLX(t testing.TB, dsn string) *sqlx.DB {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("open sqlx.DB: %v", err)
	}

	db.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = db.Close() })

	return db
}
