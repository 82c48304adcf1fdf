// Package activitystore provides the core types and abstractions for querying
// bookable tourism activities across interchangeable storage backends.
//
// The package defines:
//   - the activity data model (Activity, ActivityImage, ActivityPricing, ActivityAvailability)
//   - a fluent QueryBuilder that turns search parameters into a backend-neutral Query
//   - the Store port that every engine implements (postgresengine, gormengine, restengine)
//   - a Grouper that folds joined (activity, image, pricing) rows into one composite per activity
//   - the Result envelope returned by the service layer
//   - a read-only FallbackTable used for degraded single-entity lookups
//
// Common usage pattern:
//
//	query := activitystore.BuildQuery().
//		ForCustomers().
//		MatchingText("boat").
//		InCategory(activitystore.CategoryWaterSports).
//		SortedBy(activitystore.SortPriceLow).
//		Paginated(20, 0).
//		Finalize()
//
//	activities, err := store.QueryActivities(ctx, query)
//	if err != nil {
//		// handle error
//	}
package activitystore
