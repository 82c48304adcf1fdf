// Package gormengine implements activitystore.Store on gorm.
//
// The Store expects the tables created by postgresengine.Schema. Statements stay within the SQL
// subset that PostgreSQL and SQLite share (CAST instead of ::, LOWER(...) LIKE instead of ILIKE),
// so the same code runs against production PostgreSQL and an in-memory SQLite database in tests.
//
// Usage:
//
//	store, err := gormengine.OpenPostgres(dsn, gormengine.WithLogger(slog.Default()))
//	if err != nil {
//		return err
//	}
//
//	activities, err := store.QueryActivities(ctx, activitystore.BuildQuery().
//		InCategory(activitystore.CategoryWaterSports).
//		SortedBy(activitystore.SortPriceLow).
//		Finalize())
package gormengine
