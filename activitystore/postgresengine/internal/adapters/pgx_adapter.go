package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXAdapter implements DBAdapter for pgxpool.Pool.
type PGXAdapter struct {
	pool        *pgxpool.Pool
	replicaPool *pgxpool.Pool
}

// NewPGXAdapter creates a PGX adapter that runs everything on the primary pool.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

// NewPGXAdapterWithReplica creates a PGX adapter that sends reads to the replica pool.
func NewPGXAdapterWithReplica(pool *pgxpool.Pool, replica *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool, replicaPool: replica}
}

// Query executes a read using the replica pool if available, otherwise the primary pool.
func (p *PGXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	pool := p.pool
	if p.replicaPool != nil {
		pool = p.replicaPool
	}

	return queryPool(ctx, pool, query)
}

// QueryPrimary executes a read on the primary pool, e.g. to read back a row right after writing it.
func (p *PGXAdapter) QueryPrimary(ctx context.Context, query string) (DBRows, error) {
	return queryPool(ctx, p.pool, query)
}

func queryPool(ctx context.Context, pool *pgxpool.Pool, query string) (DBRows, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return &pgxRows{rows: rows}, nil
}

// Exec executes a statement on the primary pool and wraps the command tag.
func (p *PGXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	tag, err := p.pool.Exec(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxResult{tag: tag}, nil
}

// pgxRows wraps pgx.Rows to implement the DBRows interface.
type pgxRows struct {
	rows pgx.Rows
}

// Next advances to the next row.
func (r *pgxRows) Next() bool {
	return r.rows.Next()
}

// Scan copies the column values of the current row into dest.
func (r *pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Err returns the error that ended the iteration, if any.
func (r *pgxRows) Err() error {
	return r.rows.Err()
}

// Close never fails for pgx; errors surface through Err.
func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}

// pgxResult wraps pgconn.CommandTag to implement the DBResult interface.
type pgxResult struct {
	tag pgconn.CommandTag
}

// RowsAffected returns the number of rows affected by the statement.
func (r pgxResult) RowsAffected() (int64, error) {
	return r.tag.RowsAffected(), nil
}
