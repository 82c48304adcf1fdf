package restengine

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/internal/instrument"
)

const (
	defaultTimeZone          = "Europe/Madrid"
	defaultRequestTimeout    = 15 * time.Second
	tableActivities          = "activities"
	tableImages              = "activity_images"
	tablePricing             = "activity_pricing"
	tableAvailability        = "activity_availability"
	defaultListingView       = "activity_listing"
	logMsgRequestExecuted    = "executed http request"
	logMsgCloseBodyFailed    = "failed to close response body"
	logMsgRequestFailed      = "backend request failed"
	logMsgActivitiesQueried  = "activities queried"
	logMsgActivityLoaded     = "activity loaded"
	logMsgActivityNotFound   = "activity not found"
	logMsgStatusCounted      = "activities counted by status"
	logMsgActivityCreated    = "activity created"
	logMsgActivityUpdated    = "activity updated"
	logMsgActivityDeleted    = "activity deleted"
	logMsgImageAdded         = "activity image added"
	logAttrRequest           = "request"
	logAttrActivityCount     = "activity_count"
	logAttrActivityID        = "activity_id"
	logAttrIdentifier        = "identifier"
	logAttrDurationMS        = "duration_ms"
	errorTypeBackendRequest  = "backend_request"
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
	dbSystemPostgREST        = "postgrest"
)

var countedStatuses = []activitystore.Status{
	activitystore.StatusActive,
	activitystore.StatusDraft,
	activitystore.StatusInactive,
	activitystore.StatusSuspended,
}

// Store is the PostgREST implementation of activitystore.Store.
type Store struct {
	baseURL     *url.URL
	client      *http.Client
	apiKey      string
	bearerToken string
	listingView string
	obs         *instrument.Observer
	now         func() time.Time
	location    *time.Location
}

// NewStore creates a Store for the PostgREST endpoint at baseURL, e.g. "https://project.example.com/rest/v1".
func NewStore(baseURL string, options ...Option) (*Store, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Join(activitystore.ErrInvalidBackendURL, err)
	}

	s := &Store{
		baseURL: parsed,
		client: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		listingView: defaultListingView,
		obs:         &instrument.Observer{System: dbSystemPostgREST},
		now:         time.Now,
		location:    defaultLocation(),
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

// QueryActivities returns the activities matching the query.
// Pages are requested with a Range header. PostgREST cannot filter or order parent rows by an embedded resource,
// so queries on the adult price read the listing view, which carries it as a column.
func (s *Store) QueryActivities(ctx context.Context, query activitystore.Query) ([]activitystore.ActivityWithDetails, error) {
	tracing, ctx := s.obs.StartTracing(ctx, operationQueryActivities)
	metrics := s.obs.StartMetrics(ctx, operationQueryActivities)
	start := time.Now()

	var rows []activityRow

	if !hasUnknownEnumValue(query) {
		err := s.do(ctx, request{
			method: http.MethodGet,
			table:  s.listTable(query),
			params: listParams(query),
			headers: map[string]string{
				headerRange:     rangeHeader(query.Offset(), query.Limit()),
				headerRangeUnit: rangeUnitItems,
			},
		}, &rows)

		if err != nil && !errors.Is(err, errRangeNotSatisfiable) {
			s.obs.LogError(ctx, logMsgRequestFailed, err)
			tracing.FinishError(errorTypeBackendRequest, time.Since(start))
			metrics.RecordError(errorTypeBackendRequest, time.Since(start))

			return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
		}
	}

	grouper := activitystore.NewGrouper(len(rows))
	for _, row := range rows {
		grouper.AddActivity(row.toActivity())

		for _, img := range row.Images {
			grouper.AddImage(row.ID, img.toImage())
		}

		for _, p := range row.Pricing {
			grouper.AddPricing(row.ID, p.toPricing())
		}
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

	row, found, lookupErr := s.findActivity(ctx, column, value, scope)
	if lookupErr != nil {
		tracing.FinishError(errorTypeBackendRequest, time.Since(start))
		metrics.RecordError(errorTypeBackendRequest, time.Since(start))

		return empty, lookupErr
	}

	if !found {
		s.obs.LogOperation(ctx, logMsgActivityNotFound, logAttrIdentifier, value)
		tracing.FinishNotFound(time.Since(start))
		metrics.RecordNotFound(time.Since(start))

		return empty, activitystore.ErrActivityNotFound
	}

	details, childErr := s.loadDetails(ctx, row.toActivity(), scope == activitystore.ScopeCustomer)
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
) (activityRow, bool, error) {

	params := url.Values{}
	params.Set(paramSelect, "*")
	params.Set(column, "eq."+value)
	params.Set(paramLimit, "1")

	if scope == activitystore.ScopeCustomer {
		params.Set(string(activitystore.FieldStatus), "eq."+string(activitystore.StatusActive))
	}

	var rows []activityRow
	if err := s.do(ctx, request{method: http.MethodGet, table: tableActivities, params: params}, &rows); err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		return activityRow{}, false, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	if len(rows) == 0 {
		return activityRow{}, false, nil
	}

	return rows[0], true, nil
}

// loadDetails fetches images, pricing and today's availability concurrently.
func (s *Store) loadDetails(
	ctx context.Context,
	activity activitystore.Activity,
	onlyActivePricing bool,
) (activitystore.ActivityWithDetails, error) {

	var (
		images       []imageRow
		pricing      []pricingRow
		availability []availabilityRow
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
		images  []imageRow
		pricing []pricingRow
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

func (s *Store) findImages(ctx context.Context, activityIDs []string) ([]imageRow, error) {
	params := url.Values{}
	params.Set(paramSelect, "*")
	params.Set("activity_id", inList(activityIDs))
	params.Set(paramOrder, "activity_id.asc,sort_order.asc.nullsfirst,created_at.asc,id.asc")

	var images []imageRow
	if err := s.do(ctx, request{method: http.MethodGet, table: tableImages, params: params}, &images); err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	return images, nil
}

func (s *Store) findPricing(ctx context.Context, activityIDs []string, onlyActive bool) ([]pricingRow, error) {
	params := url.Values{}
	params.Set(paramSelect, "*")
	params.Set("activity_id", inList(activityIDs))
	params.Set(paramOrder, "activity_id.asc,created_at.asc,id.asc")

	if onlyActive {
		params.Set("is_active", "is.true")
	}

	var pricing []pricingRow
	if err := s.do(ctx, request{method: http.MethodGet, table: tablePricing, params: params}, &pricing); err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	return pricing, nil
}

func (s *Store) findAvailability(ctx context.Context, activityID string, day time.Time) ([]availabilityRow, error) {
	params := url.Values{}
	params.Set(paramSelect, "*")
	params.Set("activity_id", "eq."+activityID)
	params.Set("date", "eq."+day.Format(dateLayout))
	params.Set(paramOrder, "time_slot.asc.nullslast")

	var slots []availabilityRow
	if err := s.do(ctx, request{method: http.MethodGet, table: tableAvailability, params: params}, &slots); err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	return slots, nil
}

// CountByStatus counts the activities of every status with one exact-count HEAD request per status.
func (s *Store) CountByStatus(ctx context.Context) (activitystore.StatusCounts, error) {
	var counts activitystore.StatusCounts

	tracing, ctx := s.obs.StartTracing(ctx, operationCountByStatus)
	metrics := s.obs.StartMetrics(ctx, operationCountByStatus)
	start := time.Now()

	perStatus := make([]int, len(countedStatuses))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, status := range countedStatuses {
		group.Go(func() error {
			params := url.Values{}
			params.Set(string(activitystore.FieldStatus), "eq."+string(status))

			n, err := s.count(groupCtx, tableActivities, params)
			perStatus[i] = n

			return err
		})
	}

	if err := group.Wait(); err != nil {
		s.obs.LogError(ctx, logMsgRequestFailed, err)
		tracing.FinishError(errorTypeBackendRequest, time.Since(start))
		metrics.RecordError(errorTypeBackendRequest, time.Since(start))

		return counts, errors.Join(activitystore.ErrQueryingActivitiesFailed, err)
	}

	for i, status := range countedStatuses {
		counts.Add(status, perStatus[i])
	}

	duration := time.Since(start)
	s.obs.LogOperation(ctx, logMsgStatusCounted, logAttrActivityCount, counts.Total, logAttrDurationMS, instrument.ToMilliseconds(duration))
	tracing.FinishSuccess(counts.Total, duration)
	metrics.RecordSuccess(counts.Total, duration)

	return counts, nil
}

func (s *Store) listTable(query activitystore.Query) string {
	if needsListingView(query) {
		return s.listingView
	}

	return tableActivities
}

func (s *Store) today() time.Time {
	return s.now().In(s.location)
}

var _ activitystore.Store = (*Store)(nil)
