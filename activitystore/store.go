package activitystore

import "context"

// Reader is the query side of the Store port.
type Reader interface {
	// QueryActivities returns the composites matching the query in the order the query specifies.
	QueryActivities(ctx context.Context, query Query) ([]ActivityWithDetails, error)

	// ActivityByID returns one activity with all images, its pricing, and today's availability.
	// It returns ErrActivityNotFound when no row matches.
	ActivityByID(ctx context.Context, id string, scope Scope) (ActivityWithDetails, error)

	// ActivityBySlug behaves like ActivityByID but looks the activity up by slug.
	ActivityBySlug(ctx context.Context, slug string, scope Scope) (ActivityWithDetails, error)

	// CountByStatus counts all activities per status.
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// Writer is the admin side of the Store port.
type Writer interface {
	CreateActivity(ctx context.Context, activity NewActivity) (Activity, error)
	// UpdateActivity returns ErrActivityNotFound when the id does not exist.
	UpdateActivity(ctx context.Context, id string, update ActivityUpdate) (Activity, error)
	// DeleteActivity returns ErrActivityNotFound when the id does not exist.
	DeleteActivity(ctx context.Context, id string) error
	AddImage(ctx context.Context, image NewActivityImage) (ActivityImage, error)
}

// Store is implemented by every engine.
type Store interface {
	Reader
	Writer
}
