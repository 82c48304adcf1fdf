package gormengine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/internal/instrument"
)

const (
	defaultTimeZone          = "Europe/Madrid"
	tableActivities          = "activities"
	tableImages              = "activity_images"
	tablePricing             = "activity_pricing"
	tableAvailability        = "activity_availability"
	logMsgSQLExecuted        = "executed sql"
	logMsgGormWarning        = "gorm warning"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgActivitiesQueried  = "activities queried"
	logMsgActivityLoaded     = "activity loaded"
	logMsgActivityNotFound   = "activity not found"
	logMsgStatusCounted      = "activities counted by status"
	logMsgActivityCreated    = "activity created"
	logMsgActivityUpdated    = "activity updated"
	logMsgActivityDeleted    = "activity deleted"
	logMsgImageAdded         = "activity image added"
	logAttrQuery             = "query"
	logAttrActivityCount     = "activity_count"
	logAttrActivityID        = "activity_id"
	logAttrIdentifier        = "identifier"
	logAttrDurationMS        = "duration_ms"
	logAttrRowsAffected      = "rows_affected"
	errorTypeDatabaseQuery   = "database_query"
	errorTypeDatabaseExec    = "database_exec"
	errorTypeChildrenFailed  = "children_query"
	errorTypeGenerateID      = "generate_id"
	operationQueryActivities = "query_activities"
	operationActivityByID    = "activity_by_id"
	operationActivityBySlug  = "activity_by_slug"
	operationCountByStatus   = "count_by_status"
	operationCreateActivity  = "create_activity"
	operationUpdateActivity  = "update_activity"
	operationDeleteActivity  = "delete_activity"
	operationAddImage        = "add_image"
	dbSystemGorm             = "gorm"
	listColumns              = "a.*, " +
		"i.id AS img_id, i.image_url AS img_image_url, i.alt_text AS img_alt_text, i.caption AS img_caption, " +
		"i.is_primary AS img_is_primary, i.sort_order AS img_sort_order, i.created_at AS img_created_at, " +
		"p.id AS prc_id, p.price_type AS prc_price_type, p.base_price AS prc_base_price, p.currency AS prc_currency, " +
		"p.seasonal_multiplier AS prc_seasonal_multiplier, p.valid_from AS prc_valid_from, " +
		"p.valid_until AS prc_valid_until, p.is_active AS prc_is_active"
)

// tables resolves table names, optionally inside a schema.
type tables struct {
	activities   string
	images       string
	pricing      string
	availability string
}

func qualifiedTables(schema string) tables {
	qualify := func(name string) string {
		if schema == "" {
			return name
		}

		return schema + "." + name
	}

	return tables{
		activities:   qualify(tableActivities),
		images:       qualify(tableImages),
		pricing:      qualify(tablePricing),
		availability: qualify(tableAvailability),
	}
}

// Store is the gorm implementation of activitystore.Store.
// Statements are written in the SQL subset shared by PostgreSQL and SQLite, so the same Store runs on both.
type Store struct {
	db       *gorm.DB
	tables   tables
	obs      *instrument.Observer
	now      func() time.Time
	location *time.Location
}

// NewStore creates a Store on an open gorm connection.
func NewStore(db *gorm.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, activitystore.ErrNilDatabaseConnection
	}

	s := &Store{
		tables:   qualifiedTables(""),
		obs:      &instrument.Observer{System: dbSystemGorm},
		now:      time.Now,
		location: defaultLocation(),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	s.db = db.Session(&gorm.Session{Logger: statementLogger{obs: s.obs}})

	return s, nil
}

// OpenPostgres opens a gorm connection with the PostgreSQL driver and creates a Store on it.
func OpenPostgres(dsn string, options ...Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		return nil, errors.Join(activitystore.ErrOpeningConnectionFailed, err)
	}

	return NewStore(db, options...)
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(defaultTimeZone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// QueryActivities returns the activities matching the query in the query's order.
// The list view joins at most one row per child table, so LIMIT and OFFSET count activities.
func (s *Store) QueryActivities(ctx context.Context, query activitystore.Query) ([]activitystore.ActivityWithDetails, error) {
	tracing, ctx := s.obs.StartTracing(ctx, operationQueryActivities)
	metrics := s.obs.StartMetrics(ctx, operationQueryActivities)
	start := time.Now()

	tx := s.db.WithContext(ctx).
		Table(s.tables.activities+" AS a").
		Select(listColumns).
		Joins("LEFT JOIN "+s.tables.images+" AS i ON i.id = ("+
			"SELECT li.id FROM "+s.tables.images+" AS li WHERE li.activity_id = a.id AND li.is_primary = ? "+
			"ORDER BY COALESCE(li.sort_order, 0) ASC, li.created_at ASC, li.id ASC LIMIT 1)", true).
		Joins("LEFT JOIN "+s.tables.pricing+" AS p ON p.id = ("+
			"SELECT lp.id FROM "+s.tables.pricing+" AS lp WHERE lp.activity_id = a.id AND lp.price_type = ? AND lp.is_active = ? "+
			"ORDER BY lp.created_at ASC, lp.id ASC LIMIT 1)", string(activitystore.PriceTypeAdult), true)

	for _, predicate := range query.Predicates() {
		clause, args := predicateClause(predicate)
		tx = tx.Where(clause, args...)
	}

	for _, term := range query.Ordering() {
		tx = tx.Order(orderClause(term))
	}

	var rows []listRow
	if err := tx.Limit(query.Limit()).Offset(query.Offset()).Scan(&rows).Error; err != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, err)
		tracing.FinishError(errorTypeDatabaseQuery, time.Since(start))
		metrics.RecordError(errorTypeDatabaseQuery, time.Since(start))

		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	grouper := activitystore.NewGrouper(len(rows))
	for _, row := range rows {
		grouper.Add(row.toJoinedRow())
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

// ActivityByID loads one activity with all images, its pricing and today's availability.
// A malformed id is reported as activitystore.ErrActivityNotFound.
func (s *Store) ActivityByID(ctx context.Context, id string, scope activitystore.Scope) (activitystore.ActivityWithDetails, error) {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		s.obs.LogOperation(ctx, logMsgActivityNotFound, logAttrIdentifier, id)
		return activitystore.ActivityWithDetails{}, activitystore.ErrActivityNotFound
	}

	return s.activityBy(ctx, operationActivityByID, "id", id, scope)
}

// ActivityBySlug loads one activity by its unique slug.
func (s *Store) ActivityBySlug(ctx context.Context, slug string, scope activitystore.Scope) (activitystore.ActivityWithDetails, error) {
	return s.activityBy(ctx, operationActivityBySlug, "slug", slug, scope)
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

	record, found, lookupErr := s.findActivity(ctx, column, value, scope)
	if lookupErr != nil {
		tracing.FinishError(errorTypeDatabaseQuery, time.Since(start))
		metrics.RecordError(errorTypeDatabaseQuery, time.Since(start))

		return empty, lookupErr
	}

	if !found {
		s.obs.LogOperation(ctx, logMsgActivityNotFound, logAttrIdentifier, value)
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return empty, activitystore.ErrActivityNotFound
	}

	details, childErr := s.loadDetails(ctx, record.toActivity(), scope == activitystore.ScopeCustomer)
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

func (s *Store) findActivity(
	ctx context.Context,
	column string,
	value string,
	scope activitystore.Scope,
) (ActivityRecord, bool, error) {

	tx := s.db.WithContext(ctx).Table(s.tables.activities).Where(column+" = ?", value)
	if scope == activitystore.ScopeCustomer {
		tx = tx.Where("CAST(status AS TEXT) = ?", string(activitystore.StatusActive))
	}

	var records []ActivityRecord
	if err := tx.Limit(1).Find(&records).Error; err != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, err)
		return ActivityRecord{}, false, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	if len(records) == 0 {
		return ActivityRecord{}, false, nil
	}

	return records[0], true, nil
}

// loadDetails fetches images, pricing and today's availability concurrently.
func (s *Store) loadDetails(
	ctx context.Context,
	activity activitystore.Activity,
	onlyActivePricing bool,
) (activitystore.ActivityWithDetails, error) {

	var (
		images       []imageRecord
		pricing      []pricingRecord
		availability []availabilityRecord
	)

	ids := []string{activity.ID}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		images, err = s.findImages(groupCtx, ids)
		return err
	})

	group.Go(func() error {
		var err error
		pricing, err = s.findPricing(groupCtx, ids, onlyActivePricing)
		return err
	})

	group.Go(func() error {
		var err error
		availability, err = s.findAvailability(groupCtx, activity.ID, s.today())
		return err
	})

	if err := group.Wait(); err != nil {
		return activitystore.ActivityWithDetails{}, err
	}

	grouper := activitystore.NewGrouper(1)
	grouper.AddActivity(activity)

	for _, img := range images {
		grouper.AddImage(activity.ID, img.toImage())
	}

	for _, p := range pricing {
		grouper.AddPricing(activity.ID, p.toPricing())
	}

	slots := make([]activitystore.ActivityAvailability, 0, len(availability))
	for _, slot := range availability {
		slots = append(slots, slot.toAvailability())
	}

	details := grouper.Result()[0]
	details.ApplyAvailability(slots)

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
		images  []imageRecord
		pricing []pricingRecord
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		images, err = s.findImages(groupCtx, ids)
		return err
	})

	group.Go(func() error {
		var err error
		pricing, err = s.findPricing(groupCtx, ids, onlyActivePricing)
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	for _, img := range images {
		grouper.AddImage(img.ActivityID, img.toImage())
	}

	for _, p := range pricing {
		grouper.AddPricing(p.ActivityID, p.toPricing())
	}

	return grouper, nil
}

func (s *Store) findImages(ctx context.Context, activityIDs []string) ([]imageRecord, error) {
	var images []imageRecord

	err := s.db.WithContext(ctx).
		Table(s.tables.images).
		Where("activity_id IN ?", activityIDs).
		Order("activity_id ASC, COALESCE(sort_order, 0) ASC, created_at ASC, id ASC").
		Find(&images).Error
	if err != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, err)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	return images, nil
}

func (s *Store) findPricing(ctx context.Context, activityIDs []string, onlyActive bool) ([]pricingRecord, error) {
	var pricing []pricingRecord

	tx := s.db.WithContext(ctx).Table(s.tables.pricing).Where("activity_id IN ?", activityIDs)
	if onlyActive {
		tx = tx.Where("is_active = ?", true)
	}

	if err := tx.Order("activity_id ASC, created_at ASC, id ASC").Find(&pricing).Error; err != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, err)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	return pricing, nil
}

func (s *Store) findAvailability(ctx context.Context, activityID string, day time.Time) ([]availabilityRecord, error) {
	var slots []availabilityRecord

	err := s.db.WithContext(ctx).
		Table(s.tables.availability).
		Select("id, activity_id, date, CAST(time_slot AS TEXT) AS time_slot, max_capacity, available_spots, " +
			"CAST(price_override AS TEXT) AS price_override, status, weather_status, notes").
		Where("activity_id = ? AND CAST(date AS TEXT) = ?", activityID, day.Format(dateLayout)).
		Order("time_slot ASC NULLS LAST").
		Find(&slots).Error
	if err != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, err)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	return slots, nil
}

// CountByStatus counts all activities per status.
func (s *Store) CountByStatus(ctx context.Context) (activitystore.StatusCounts, error) {
	var counts activitystore.StatusCounts

	tracing, ctx := s.obs.StartTracing(ctx, operationCountByStatus)
	metrics := s.obs.StartMetrics(ctx, operationCountByStatus)
	start := time.Now()

	var rows []statusCount

	err := s.db.WithContext(ctx).
		Table(s.tables.activities).
		Select("CAST(status AS TEXT) AS status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, err)
		tracing.FinishError(errorTypeDatabaseQuery, time.Since(start))
		metrics.RecordError(errorTypeDatabaseQuery, time.Since(start))

		return counts, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	for _, row := range rows {
		counts.Add(activitystore.Status(row.Status), row.N)
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

/***** query translation *****/

// columnFor maps a Field to a column expression valid on PostgreSQL and SQLite.
// Enum and uuid columns are compared as text so that unknown values match nothing instead of failing.
func columnFor(field activitystore.Field) string {
	switch field {
	case activitystore.FieldID, activitystore.FieldCategory, activitystore.FieldStatus:
		return fmt.Sprintf("CAST(a.%s AS TEXT)", field)
	case activitystore.FieldFeatured:
		return "COALESCE(a.featured, false)"
	case activitystore.FieldAvgRating:
		return "COALESCE(a.avg_rating, 0)"
	case activitystore.FieldTotalBookings:
		return "COALESCE(a.total_bookings, 0)"
	case activitystore.FieldAdultPrice:
		return "p.base_price"
	default:
		return "a." + string(field)
	}
}

func predicateClause(p activitystore.Predicate) (string, []any) {
	switch p.Operator() {
	case activitystore.OpNotEquals:
		return columnFor(p.Field()) + " <> ?", []any{p.Val()}
	case activitystore.OpContains:
		return likeClause(p.Field()), []any{likePattern(p.Val())}
	case activitystore.OpAnyContains:
		clauses := make([]string, 0, len(p.Fields()))
		args := make([]any, 0, len(p.Fields()))

		for _, field := range p.Fields() {
			clauses = append(clauses, likeClause(field))
			args = append(args, likePattern(p.Val()))
		}

		return "(" + strings.Join(clauses, " OR ") + ")", args
	case activitystore.OpAtLeast:
		return columnFor(p.Field()) + " >= ?", []any{numeric(p.Val())}
	case activitystore.OpAtMost:
		return columnFor(p.Field()) + " <= ?", []any{numeric(p.Val())}
	default:
		if p.Field() == activitystore.FieldFeatured {
			return columnFor(p.Field()) + " = ?", []any{p.BoolVal()}
		}

		return columnFor(p.Field()) + " = ?", []any{p.Val()}
	}
}

// likeClause matches case-insensitively; ILIKE is not available on SQLite.
func likeClause(field activitystore.Field) string {
	return fmt.Sprintf("LOWER(COALESCE(a.%s, '')) LIKE ?", field)
}

func likePattern(val string) string {
	return "%" + strings.ToLower(val) + "%"
}

func numeric(val string) float64 {
	f, _ := strconv.ParseFloat(val, 64)

	return f
}

func orderClause(term activitystore.OrderTerm) string {
	clause := columnFor(term.Field)

	if term.Field == activitystore.FieldID {
		clause = "a.id"
	}

	if term.Descending {
		clause += " DESC"
	} else {
		clause += " ASC"
	}

	if term.NullsLast {
		clause += " NULLS LAST"
	}

	return clause
}

var _ activitystore.Store = (*Store)(nil)
