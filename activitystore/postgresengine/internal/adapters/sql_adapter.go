package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// queryExecer is satisfied by both *sql.DB and *sqlx.DB.
type queryExecer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLAdapter implements DBAdapter for database/sql compatible handles.
type SQLAdapter struct {
	primary queryExecer
	replica queryExecer
}

// NewSQLAdapter creates a database/sql adapter that runs everything on the primary handle.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{primary: db}
}

// NewSQLAdapterWithReplica creates a database/sql adapter that sends reads to the replica handle.
func NewSQLAdapterWithReplica(db *sql.DB, replica *sql.DB) *SQLAdapter {
	return &SQLAdapter{primary: db, replica: replica}
}

// NewSQLXAdapter creates an adapter for a sqlx handle; sqlx.DB embeds *sql.DB, so both share SQLAdapter.
func NewSQLXAdapter(db *sqlx.DB) *SQLAdapter {
	return &SQLAdapter{primary: db}
}

// NewSQLXAdapterWithReplica creates a sqlx adapter that sends reads to the replica handle.
func NewSQLXAdapterWithReplica(db *sqlx.DB, replica *sqlx.DB) *SQLAdapter {
	return &SQLAdapter{primary: db, replica: replica}
}

// Query executes a read using the replica handle if available, otherwise the primary handle.
func (s *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	db := s.primary
	if s.replica != nil {
		db = s.replica
	}

	return queryDB(ctx, db, query)
}

// QueryPrimary executes a read on the primary handle.
func (s *SQLAdapter) QueryPrimary(ctx context.Context, query string) (DBRows, error) {
	return queryDB(ctx, s.primary, query)
}

func queryDB(ctx context.Context, db queryExecer, query string) (DBRows, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdRows{rows: rows}, nil
}

// Exec executes a statement on the primary handle.
func (s *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.primary.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// stdRows wraps sql.Rows to implement DBRows.
type stdRows struct {
	rows *sql.Rows
}

// Next advances to the next row.
func (s *stdRows) Next() bool {
	return s.rows.Next()
}

// Scan copies the column values of the current row into dest.
func (s *stdRows) Scan(dest ...any) error {
	return s.rows.Scan(dest...)
}

// Err returns the error that ended the iteration, if any.
func (s *stdRows) Err() error {
	return s.rows.Err()
}

// Close closes the rows iterator.
func (s *stdRows) Close() error {
	return s.rows.Close()
}
