// Package restengine implements activitystore.Store against a PostgREST-compatible API,
// as exposed by hosted backend-as-a-service platforms.
//
// Tables are addressed in snake_case, filters are URL parameters ("category=eq.water_sports"),
// list views embed the primary image and the active adult price, and pages are requested with
// a "Range: from-to" header. Queries that filter or order by the adult price read the activity_listing
// view from postgresengine.Schema, so that the backend pages them in price order. Status counts are exact
// counts from HEAD requests. Writes ask for "Prefer: return=representation" and read the stored rows back.
//
// Usage:
//
//	store, err := restengine.NewStore("https://project.example.com/rest/v1",
//		restengine.WithAPIKey(os.Getenv("REST_API_KEY")),
//		restengine.WithLogger(slog.Default()))
//	if err != nil {
//		return err
//	}
//
//	activity, err := store.ActivityBySlug(ctx, "palma-cathedral-tour", activitystore.ScopeCustomer)
package restengine
