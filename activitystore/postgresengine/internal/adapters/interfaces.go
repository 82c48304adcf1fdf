package adapters

import "context"

// DBAdapter defines the database operations needed by the activity store.
type DBAdapter interface {
	// Query reads from the replica when one is configured.
	Query(ctx context.Context, query string) (DBRows, error)
	// QueryPrimary always uses the primary, e.g. for INSERT ... RETURNING.
	QueryPrimary(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
