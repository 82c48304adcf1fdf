// Package postgresengine provides a PostgreSQL implementation of the activitystore.Store interface.
//
// Queries are built with goqu as plain SQL strings and executed through one of three
// connection adapters (pgx pool, database/sql, sqlx). Reads can be routed to a replica.
//
// Key features:
//   - Listing queries with at most one primary image and one active adult price per activity
//   - Single-activity lookups with all images, pricing and today's availability loaded concurrently
//   - Admin writes (create, partial update, delete, add image) using RETURNING clauses
//   - Optional logging, metrics and tracing through the activitystore observability interfaces
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(db)
//
//	// With logging and a dedicated schema
//	store, _ := postgresengine.NewStoreFromPGXPool(
//		db,
//		postgresengine.WithSchema("catalog"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//
//	query := activitystore.BuildQuery().InCategory(activitystore.CategoryCultural).Finalize()
//	activities, _ := store.QueryActivities(ctx, query)
package postgresengine
