// Package adapters lets the postgres engine run the same SQL through pgx.Pool, sql.DB or sqlx.DB.
//
// Every adapter optionally takes a read replica: Query goes to the replica when one is configured,
// Exec always goes to the primary.
package adapters
