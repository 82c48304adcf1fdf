package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/internal/instrument"
	"github.com/mallorca-activities/activitystore-go/activitystore/postgresengine/internal/adapters"
)

const (
	defaultTimeZone               = "Europe/Madrid"
	logMsgBuildQueryFailed        = "failed to build sql statement"
	logMsgDBQueryFailed           = "database query execution failed"
	logMsgDBExecFailed            = "database statement execution failed"
	logMsgCloseRowsFailed         = "failed to close database rows"
	logMsgScanRowFailed           = "failed to scan database row"
	logMsgRowsAffectedFailed      = "failed to get rows affected count"
	logMsgActivitiesQueried       = "activities queried"
	logMsgActivityLoaded          = "activity loaded"
	logMsgActivityNotFound        = "activity not found"
	logMsgStatusCounted           = "activities counted by status"
	logMsgActivityCreated         = "activity created"
	logMsgActivityUpdated         = "activity updated"
	logMsgActivityDeleted         = "activity deleted"
	logMsgImageAdded              = "activity image added"
	logMsgSQLExecuted             = "executed sql for: "
	logMsgOperation               = "activitystore operation: "
	logAttrError                  = "error"
	logAttrQuery                  = "query"
	logAttrActivityCount          = "activity_count"
	logAttrActivityID             = "activity_id"
	logAttrIdentifier             = "identifier"
	logAttrDurationMS             = "duration_ms"
	logAttrRowsAffected           = "rows_affected"
	logActionList                 = "list"
	logActionImages               = "images"
	logActionPricing              = "pricing"
	logActionAvailability         = "availability"
	logActionLookup               = "lookup"
	logActionCount                = "count"
	logActionInsert               = "insert"
	logActionUpdate               = "update"
	logActionDelete               = "delete"
	columnID                      = "id"
	columnSlug                    = "slug"
	errorTypeBuildQuery           = "build_query"
	errorTypeDatabaseQuery        = "database_query"
	errorTypeDatabaseExec         = "database_exec"
	errorTypeRowScan              = "row_scan"
	errorTypeRowsAffected         = "rows_affected"
	errorTypeNotFound             = "not_found"
	errorTypeChildrenFailed       = "children_query"
	operationQueryActivities      = "query_activities"
	operationActivityByID         = "activity_by_id"
	operationActivityBySlug       = "activity_by_slug"
	operationCountByStatus        = "count_by_status"
	operationCreateActivity       = "create_activity"
	operationUpdateActivity       = "update_activity"
	operationDeleteActivity       = "delete_activity"
	operationAddImage             = "add_image"
)

// Store is the PostgreSQL implementation of activitystore.Store.
// It builds plain SQL strings with goqu and executes them through one of the supported connection adapters.
type Store struct {
	db       adapters.DBAdapter
	tables   tables
	obs      *instrument.Observer
	now      func() time.Time
	location *time.Location
}

// NewStoreFromPGXPool creates a Store backed by a pgx connection pool.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, activitystore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolAndReplica routes reads to the replica pool and writes to the primary pool.
func NewStoreFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Store, error) {
	if primary == nil {
		return nil, activitystore.ErrNilDatabaseConnection
	}

	if replica == nil {
		return newStore(adapters.NewPGXAdapter(primary), options...)
	}

	return newStore(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewStoreFromSQLDB creates a Store backed by a database/sql connection (lib/pq or pgx stdlib driver).
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, activitystore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLDBAndReplica routes reads to the replica connection and writes to the primary connection.
func NewStoreFromSQLDBAndReplica(primary *sql.DB, replica *sql.DB, options ...Option) (*Store, error) {
	if primary == nil {
		return nil, activitystore.ErrNilDatabaseConnection
	}

	if replica == nil {
		return newStore(adapters.NewSQLAdapter(primary), options...)
	}

	return newStore(adapters.NewSQLAdapterWithReplica(primary, replica), options...)
}

// NewStoreFromSQLX creates a Store backed by an sqlx connection.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, activitystore.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

// NewStoreFromSQLXAndReplica routes reads to the replica connection and writes to the primary connection.
func NewStoreFromSQLXAndReplica(primary *sqlx.DB, replica *sqlx.DB, options ...Option) (*Store, error) {
	if primary == nil {
		return nil, activitystore.ErrNilDatabaseConnection
	}

	if replica == nil {
		return newStore(adapters.NewSQLXAdapter(primary), options...)
	}

	return newStore(adapters.NewSQLXAdapterWithReplica(primary, replica), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{
		db:       db,
		obs:      &instrument.Observer{System: dbSystemPostgres},
		tables:   qualifiedTables(""),
		now:      time.Now,
		location: defaultLocation(),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(defaultTimeZone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// QueryActivities returns the activities matching the query in the query's order.
// List-view queries join at most the primary image and the active adult price, full queries load every child row.
func (s *Store) QueryActivities(ctx context.Context, query activitystore.Query) ([]activitystore.ActivityWithDetails, error) {
	tracing, ctx := s.obs.StartTracing(ctx, operationQueryActivities)
	metrics := s.obs.StartMetrics(ctx, operationQueryActivities)
	start := time.Now()

	sqlQuery, buildErr := s.buildListQuery(query)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		tracing.FinishError(errorTypeBuildQuery, time.Since(start))
		metrics.RecordError(errorTypeBuildQuery, time.Since(start))

		return nil, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	grouper, queryErr := s.queryJoinedRows(ctx, sqlQuery, logActionList)
	if queryErr != nil {
		tracing.FinishError(errorTypeFor(queryErr), time.Since(start))
		metrics.RecordError(errorTypeFor(queryErr), time.Since(start))

		return nil, queryErr
	}

	if query.Details() == activitystore.DetailsFull && grouper.Len() > 0 {
		var childErr error
		if grouper, childErr = s.loadAllChildren(ctx, grouper, query.Scope() == activitystore.ScopeCustomer); childErr != nil {
			tracing.FinishError(errorTypeChildrenFailed, time.Since(start))
			metrics.RecordError(errorTypeChildrenFailed, time.Since(start))

			return nil, childErr
		}
	}

	activities := grouper.Result()
	duration := time.Since(start)

	s.obs.LogOperation(ctx, logMsgActivitiesQueried, logAttrActivityCount, len(activities), logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(len(activities), duration)
	metrics.RecordSuccess(len(activities), duration)

	return activities, nil
}

// ActivityByID loads a single activity with all images, its pricing and today's availability.
// A malformed id is reported as activitystore.ErrActivityNotFound.
func (s *Store) ActivityByID(
	ctx context.Context,
	id string,
	scope activitystore.Scope,
) (activitystore.ActivityWithDetails, error) {

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		s.obs.LogOperation(ctx, logMsgActivityNotFound, logAttrIdentifier, id)
		return activitystore.ActivityWithDetails{}, activitystore.ErrActivityNotFound
	}

	return s.activityBy(ctx, operationActivityByID, columnID, id, scope)
}

// ActivityBySlug loads a single activity by its unique slug.
func (s *Store) ActivityBySlug(
	ctx context.Context,
	slug string,
	scope activitystore.Scope,
) (activitystore.ActivityWithDetails, error) {

	return s.activityBy(ctx, operationActivityBySlug, columnSlug, slug, scope)
}

func (s *Store) activityBy(
	ctx context.Context,
	operation string,
	column string,
	value string,
	scope activitystore.Scope,
) (activitystore.ActivityWithDetails, error) {

	var empty activitystore.ActivityWithDetails

	tracing, ctx := s.obs.StartTracing(ctx, operation)
	metrics := s.obs.StartMetrics(ctx, operation)
	start := time.Now()

	sqlQuery, buildErr := s.buildActivityLookupQuery(column, value, scope)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		tracing.FinishError(errorTypeBuildQuery, time.Since(start))
		metrics.RecordError(errorTypeBuildQuery, time.Since(start))

		return empty, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	activity, found, lookupErr := s.queryActivity(ctx, sqlQuery)
	if lookupErr != nil {
		tracing.FinishError(errorTypeFor(lookupErr), time.Since(start))
		metrics.RecordError(errorTypeFor(lookupErr), time.Since(start))

		return empty, lookupErr
	}

	if !found {
		s.obs.LogOperation(ctx, logMsgActivityNotFound, logAttrIdentifier, value)
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return empty, activitystore.ErrActivityNotFound
	}

	details, childErr := s.loadDetails(ctx, activity, scope == activitystore.ScopeCustomer)
	if childErr != nil {
		tracing.FinishError(errorTypeChildrenFailed, time.Since(start))
		metrics.RecordError(errorTypeChildrenFailed, time.Since(start))

		return empty, childErr
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgActivityLoaded, logAttrActivityID, details.ID, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(1, duration)
	metrics.RecordSuccess(1, duration)

	return details, nil
}

// loadDetails fetches images, pricing and today's availability concurrently.
func (s *Store) loadDetails(
	ctx context.Context,
	activity activitystore.Activity,
	onlyActivePricing bool,
) (activitystore.ActivityWithDetails, error) {

	var (
		images       []activitystore.ActivityImage
		pricing      []activitystore.ActivityPricing
		availability []activitystore.ActivityAvailability
	)

	ids := []string{activity.ID}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		images, err = s.queryImages(groupCtx, ids)
		return err
	})

	group.Go(func() error {
		var err error
		pricing, err = s.queryPricing(groupCtx, ids, onlyActivePricing)
		return err
	})

	group.Go(func() error {
		var err error
		availability, err = s.queryAvailability(groupCtx, activity.ID, s.today())
		return err
	})

	if err := group.Wait(); err != nil {
		return activitystore.ActivityWithDetails{}, err
	}

	grouper := activitystore.NewGrouper(1)
	grouper.AddActivity(activity)

	for i := range images {
		grouper.AddImage(activity.ID, images[i])
	}

	for i := range pricing {
		grouper.AddPricing(activity.ID, pricing[i])
	}

	details := grouper.Result()[0]
	details.ApplyAvailability(availability)

	return details, nil
}

// loadAllChildren replaces the list-view children of every grouped activity with the full collections.
func (s *Store) loadAllChildren(
	ctx context.Context,
	listed *activitystore.Grouper,
	onlyActivePricing bool,
) (*activitystore.Grouper, error) {

	ids := listed.IDs()
	grouper := activitystore.NewGrouper(len(ids))

	for _, activity := range listed.Result() {
		grouper.AddActivity(activity.Activity)
	}

	var (
		images  []activitystore.ActivityImage
		pricing []activitystore.ActivityPricing
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		images, err = s.queryImages(groupCtx, ids)
		return err
	})

	group.Go(func() error {
		var err error
		pricing, err = s.queryPricing(groupCtx, ids, onlyActivePricing)
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	for i := range images {
		grouper.AddImage(images[i].ActivityID, images[i])
	}

	for i := range pricing {
		grouper.AddPricing(pricing[i].ActivityID, pricing[i])
	}

	return grouper, nil
}

// CountByStatus counts all activities per status.
func (s *Store) CountByStatus(ctx context.Context) (activitystore.StatusCounts, error) {
	var counts activitystore.StatusCounts

	tracing, ctx := s.obs.StartTracing(ctx, operationCountByStatus)
	metrics := s.obs.StartMetrics(ctx, operationCountByStatus)
	start := time.Now()

	sqlQuery, buildErr := s.buildCountByStatusQuery()
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		tracing.FinishError(errorTypeBuildQuery, time.Since(start))
		metrics.RecordError(errorTypeBuildQuery, time.Since(start))

		return counts, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery, logActionCount)
	if queryErr != nil {
		tracing.FinishError(errorTypeDatabaseQuery, time.Since(start))
		metrics.RecordError(errorTypeDatabaseQuery, time.Since(start))

		return counts, queryErr
	}
	defer s.closeRows(ctx, rows)

	for rows.Next() {
		var (
			status string
			n      int
		)

		if scanErr := rows.Scan(&status, &n); scanErr != nil {
			s.obs.LogError(ctx, logMsgScanRowFailed, scanErr)
			tracing.FinishError(errorTypeRowScan, time.Since(start))
			metrics.RecordError(errorTypeRowScan, time.Since(start))

			return counts, errors.Join(activitystore.ErrScanningDBRowFailed, scanErr)
		}

		counts.Add(activitystore.Status(status), n)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		tracing.FinishError(errorTypeDatabaseQuery, time.Since(start))
		metrics.RecordError(errorTypeDatabaseQuery, time.Since(start))

		return counts, errors.Join(activitystore.ErrQueryingActivitiesFailed, rowsErr)
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgStatusCounted, logAttrActivityCount, counts.Total, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(counts.Total, duration)
	metrics.RecordSuccess(counts.Total, duration)

	return counts, nil
}

func (s *Store) today() time.Time {
	return s.now().In(s.location)
}

// executeQuery runs a read statement and logs it with its duration.
func (s *Store) executeQuery(ctx context.Context, sqlQuery string, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, queryErr)
	}

	return rows, nil
}

// closeRows closes database rows and logs a warning on failure.
func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.obs.LogWarn(ctx, logMsgCloseRowsFailed, closeErr)
	}
}

func (s *Store) logBuildError(ctx context.Context, err error) {
	s.obs.LogError(ctx, logMsgBuildQueryFailed, err)
}

// errorTypeFor classifies an error for metric labels and span attributes.
func errorTypeFor(err error) string {
	switch {
	case errors.Is(err, activitystore.ErrScanningDBRowFailed), errors.Is(err, activitystore.ErrDecodingColumnFailed):
		return errorTypeRowScan
	case errors.Is(err, activitystore.ErrGettingRowsAffectedFailed):
		return errorTypeRowsAffected
	case errors.Is(err, activitystore.ErrWritingActivityFailed):
		return errorTypeDatabaseExec
	case errors.Is(err, activitystore.ErrActivityNotFound):
		return errorTypeNotFound
	default:
		return errorTypeDatabaseQuery
	}
}

var _ activitystore.Store = (*Store)(nil)
