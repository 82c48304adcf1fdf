package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	DefaultFeaturedLimit = 6
	DefaultSimilarLimit  = 4

	msgActivitiesRetrieved = "Activities retrieved successfully"
	msgFeaturedRetrieved   = "Featured activities retrieved successfully"
	msgSimilarRetrieved    = "Similar activities retrieved successfully"
	msgActivityRetrieved   = "Activity retrieved successfully"
	msgStatsRetrieved      = "Activities stats retrieved successfully"
	msgActivityCreated     = "Activity created successfully"
	msgActivityUpdated     = "Activity updated successfully"
	msgActivityDeleted     = "Activity deleted successfully"
	msgImageAdded          = "Activity image added successfully"
	msgActivityNotFound    = "Activity not found"
	msgGetActivitiesFailed = "Failed to get activities"
	msgGetActivityFailed   = "Failed to get activity"
	msgGetSimilarFailed    = "Failed to get similar activities"
	msgGetStatsFailed      = "Failed to get activities stats"
	msgCreateFailed        = "Failed to create activity"
	msgUpdateFailed        = "Failed to update activity"
	msgDeleteFailed        = "Failed to delete activity"
	msgAddImageFailed      = "Failed to add activity image"
	msgIdentifierRequired  = "Activity id or slug is required"
	msgInvalidActivityID   = "Invalid activity id"
	msgNothingToUpdate     = "No fields to update"
	msgInvalidInputPrefix  = "Invalid input: "
	logMsgBackendFailed    = "catalog backend call failed"
	logMsgFallbackServed   = "catalog serving fallback data after backend error"
	logAttrOperation       = "operation"
	logAttrIdentifier      = "identifier"
	logAttrError           = "error"
	operationList          = "list_activities"
	operationFeatured      = "get_featured_activities"
	operationSearch        = "search_activities"
	operationByCategory    = "get_activities_by_category"
	operationByIDOrSlug    = "get_activity_by_id_or_slug"
	operationSimilar       = "get_similar_activities"
	operationAdminList     = "get_activities_for_admin"
	operationAdminByID     = "get_activity_by_id_for_admin"
	operationStats         = "get_activities_stats"
	operationCreate        = "create_activity"
	operationUpdate        = "update_activity"
	operationDelete        = "delete_activity"
	operationAddImage      = "add_activity_image"
)

// ErrNilStore is returned by NewService without a store.
var ErrNilStore = errors.New("catalog store must not be nil")

// Catalog is the set of operations the HTTP surface and the listing controller work with.
type Catalog interface {
	ListActivities(ctx context.Context, params activitystore.SearchParams) activitystore.Result[[]activitystore.ActivityWithDetails]
	GetFeaturedActivities(ctx context.Context, limit int) activitystore.Result[[]activitystore.ActivityWithDetails]
	SearchActivities(ctx context.Context, term string, params activitystore.SearchParams) activitystore.Result[[]activitystore.ActivityWithDetails]
	GetActivitiesByCategory(ctx context.Context, category string, limit int) activitystore.Result[[]activitystore.ActivityWithDetails]
	GetActivityByIDOrSlug(ctx context.Context, identifier string) activitystore.Result[activitystore.ActivityWithDetails]
	GetSimilarActivities(ctx context.Context, activityID string, limit int) activitystore.Result[[]activitystore.ActivityWithDetails]
	GetActivitiesForAdmin(ctx context.Context, params activitystore.SearchParams) activitystore.Result[[]activitystore.ActivityWithDetails]
	GetActivityByIDForAdmin(ctx context.Context, id string) activitystore.Result[activitystore.ActivityWithDetails]
	GetActivitiesStats(ctx context.Context) activitystore.Result[activitystore.StatusCounts]
	CreateActivity(ctx context.Context, input activitystore.NewActivity) activitystore.Result[activitystore.Activity]
	UpdateActivity(ctx context.Context, id string, update activitystore.ActivityUpdate) activitystore.Result[activitystore.Activity]
	DeleteActivity(ctx context.Context, id string) activitystore.Result[string]
	AddActivityImage(ctx context.Context, input activitystore.NewActivityImage) activitystore.Result[activitystore.ActivityImage]
}

// Service implements Catalog on top of an activitystore.Store.
type Service struct {
	store            activitystore.Store
	fallback         activitystore.FallbackTable
	fallbackEnabled  bool
	validator        *Validator
	logger           activitystore.Logger
	contextualLogger activitystore.ContextualLogger
}

// Option defines a functional option for configuring the Service.
type Option func(*Service) error

// WithFallbackTable replaces the built-in fallback records.
func WithFallbackTable(table activitystore.FallbackTable) Option {
	return func(s *Service) error {
		s.fallback = table
		s.fallbackEnabled = true

		return nil
	}
}

// WithoutFallback turns backend failures of single lookups into backend_error envelopes.
func WithoutFallback() Option {
	return func(s *Service) error {
		s.fallbackEnabled = false
		return nil
	}
}

func WithLogger(logger activitystore.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger; it takes precedence over WithLogger.
func WithContextualLogger(logger activitystore.ContextualLogger) Option {
	return func(s *Service) error {
		s.contextualLogger = logger
		return nil
	}
}

// NewService creates a catalog with the default fallback records enabled.
func NewService(store activitystore.Store, options ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	fallback, err := activitystore.NewFallbackTable(activitystore.DefaultFallbackRecords()...)
	if err != nil {
		return nil, err
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	s := &Service{
		store:           store,
		fallback:        fallback,
		fallbackEnabled: true,
		validator:       validator,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

/***** customer operations *****/

func (s *Service) ListActivities(
	ctx context.Context,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	return s.list(ctx, operationList, msgActivitiesRetrieved, msgGetActivitiesFailed,
		activitystore.FromSearchParams(params, activitystore.ScopeCustomer))
}

// GetFeaturedActivities returns featured activities in popular order; a non-positive limit means 6.
func (s *Service) GetFeaturedActivities(ctx context.Context, limit int) activitystore.Result[[]activitystore.ActivityWithDetails] {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}

	query := activitystore.BuildQuery().
		Featured(true).
		SortedBy(activitystore.SortPopular).
		Paginated(limit, 0).
		Finalize()

	return s.list(ctx, operationFeatured, msgFeaturedRetrieved, msgGetActivitiesFailed, query)
}

func (s *Service) SearchActivities(
	ctx context.Context,
	term string,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	params.Search = term

	return s.list(ctx, operationSearch, msgActivitiesRetrieved, msgGetActivitiesFailed,
		activitystore.FromSearchParams(params, activitystore.ScopeCustomer))
}

// GetActivitiesByCategory passes unknown categories through, which yields an empty list.
func (s *Service) GetActivitiesByCategory(
	ctx context.Context,
	category string,
	limit int,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	query := activitystore.BuildQuery().
		InCategory(activitystore.Category(category)).
		SortedBy(activitystore.SortPopular).
		Paginated(limit, 0).
		Finalize()

	return s.list(ctx, operationByCategory, msgActivitiesRetrieved, msgGetActivitiesFailed, query)
}

// GetActivityByIDOrSlug treats a UUID-shaped identifier as id and everything else as slug.
// When the backend fails, a matching fallback record is served instead of an error.
func (s *Service) GetActivityByIDOrSlug(ctx context.Context, identifier string) activitystore.Result[activitystore.ActivityWithDetails] {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return activitystore.Failure[activitystore.ActivityWithDetails](activitystore.CodeInvalidInput, msgIdentifierRequired)
	}

	activity, err := s.lookup(ctx, identifier, activitystore.ScopeCustomer)

	switch {
	case err == nil:
		return activitystore.Success(msgActivityRetrieved, activity)

	case errors.Is(err, activitystore.ErrActivityNotFound):
		return activitystore.Failure[activitystore.ActivityWithDetails](activitystore.CodeNotFound, msgActivityNotFound)
	}

	s.logError(ctx, operationByIDOrSlug, err)

	if s.fallbackEnabled {
		if record, ok := s.fallback.Lookup(identifier); ok {
			s.logFallback(ctx, identifier)

			return activitystore.FallbackSuccess(msgActivityRetrieved+" "+activitystore.FallbackMessageSuffix, record)
		}
	}

	return activitystore.Failure[activitystore.ActivityWithDetails](activitystore.CodeBackendError, msgGetActivityFailed)
}

// GetSimilarActivities returns other active activities of the same category, best rated first.
// The reference activity may be given by id or slug.
func (s *Service) GetSimilarActivities(
	ctx context.Context,
	activityID string,
	limit int,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return activitystore.Failure[[]activitystore.ActivityWithDetails](activitystore.CodeInvalidInput, msgIdentifierRequired)
	}

	reference, err := s.lookup(ctx, activityID, activitystore.ScopeCustomer)

	switch {
	case errors.Is(err, activitystore.ErrActivityNotFound):
		return activitystore.Failure[[]activitystore.ActivityWithDetails](activitystore.CodeNotFound, msgActivityNotFound)

	case err != nil:
		s.logError(ctx, operationSimilar, err)
		return activitystore.Failure[[]activitystore.ActivityWithDetails](activitystore.CodeBackendError, msgGetSimilarFailed)
	}

	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	query := activitystore.BuildQuery().
		InCategory(reference.Category).
		ExcludingID(reference.ID).
		SortedBySimilarity().
		Paginated(limit, 0).
		Finalize()

	return s.list(ctx, operationSimilar, msgSimilarRetrieved, msgGetSimilarFailed, query)
}

/***** admin operations *****/

// GetActivitiesForAdmin lists activities of every status with all images and pricing, newest first
// unless a sort key is given.
func (s *Service) GetActivitiesForAdmin(
	ctx context.Context,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	qb := params.Builder(activitystore.ScopeAdmin).WithDetails(activitystore.DetailsFull)
	if strings.TrimSpace(string(params.SortBy)) == "" {
		qb = qb.SortedByNewest()
	}

	return s.list(ctx, operationAdminList, msgActivitiesRetrieved, msgGetActivitiesFailed, qb.Finalize())
}

// GetActivityByIDForAdmin never serves fallback data.
func (s *Service) GetActivityByIDForAdmin(ctx context.Context, id string) activitystore.Result[activitystore.ActivityWithDetails] {
	if !isUUID(id) {
		return activitystore.Failure[activitystore.ActivityWithDetails](activitystore.CodeInvalidInput, msgInvalidActivityID)
	}

	activity, err := s.store.ActivityByID(ctx, strings.TrimSpace(id), activitystore.ScopeAdmin)

	switch {
	case err == nil:
		return activitystore.Success(msgActivityRetrieved, activity)

	case errors.Is(err, activitystore.ErrActivityNotFound):
		return activitystore.Failure[activitystore.ActivityWithDetails](activitystore.CodeNotFound, msgActivityNotFound)

	default:
		s.logError(ctx, operationAdminByID, err)
		return activitystore.Failure[activitystore.ActivityWithDetails](activitystore.CodeBackendError, msgGetActivityFailed)
	}
}

func (s *Service) GetActivitiesStats(ctx context.Context) activitystore.Result[activitystore.StatusCounts] {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.logError(ctx, operationStats, err)
		return activitystore.Failure[activitystore.StatusCounts](activitystore.CodeBackendError, msgGetStatsFailed)
	}

	return activitystore.Success(msgStatsRetrieved, counts)
}

// CreateActivity validates the input and derives the slug from the title when none is given.
func (s *Service) CreateActivity(ctx context.Context, input activitystore.NewActivity) activitystore.Result[activitystore.Activity] {
	input.Title = strings.TrimSpace(input.Title)
	input.Slug = strings.TrimSpace(input.Slug)

	if err := s.validator.Struct(input); err != nil {
		return activitystore.Failure[activitystore.Activity](activitystore.CodeInvalidInput, msgInvalidInputPrefix+err.Error())
	}

	if input.Slug == "" {
		input.Slug = activitystore.Slugify(input.Title)
	}

	if input.Slug == "" {
		return activitystore.Failure[activitystore.Activity](activitystore.CodeInvalidInput, msgInvalidInputPrefix+"slug cannot be derived from title")
	}

	created, err := s.store.CreateActivity(ctx, input)
	if err != nil {
		s.logError(ctx, operationCreate, err)
		return activitystore.Failure[activitystore.Activity](activitystore.CodeBackendError, msgCreateFailed)
	}

	return activitystore.Success(msgActivityCreated, created)
}

// UpdateActivity validates the fields that are set and writes only those.
func (s *Service) UpdateActivity(
	ctx context.Context,
	id string,
	update activitystore.ActivityUpdate,
) activitystore.Result[activitystore.Activity] {

	if !isUUID(id) {
		return activitystore.Failure[activitystore.Activity](activitystore.CodeInvalidInput, msgInvalidActivityID)
	}

	if update.IsEmpty() {
		return activitystore.Failure[activitystore.Activity](activitystore.CodeInvalidInput, msgNothingToUpdate)
	}

	if err := s.validator.Struct(update); err != nil {
		return activitystore.Failure[activitystore.Activity](activitystore.CodeInvalidInput, msgInvalidInputPrefix+err.Error())
	}

	updated, err := s.store.UpdateActivity(ctx, strings.TrimSpace(id), update)

	switch {
	case err == nil:
		return activitystore.Success(msgActivityUpdated, updated)

	case errors.Is(err, activitystore.ErrActivityNotFound):
		return activitystore.Failure[activitystore.Activity](activitystore.CodeNotFound, msgActivityNotFound)

	default:
		s.logError(ctx, operationUpdate, err)
		return activitystore.Failure[activitystore.Activity](activitystore.CodeBackendError, msgUpdateFailed)
	}
}

// DeleteActivity returns the id of the deleted activity.
func (s *Service) DeleteActivity(ctx context.Context, id string) activitystore.Result[string] {
	if !isUUID(id) {
		return activitystore.Failure[string](activitystore.CodeInvalidInput, msgInvalidActivityID)
	}

	id = strings.TrimSpace(id)
	err := s.store.DeleteActivity(ctx, id)

	switch {
	case err == nil:
		return activitystore.Success(msgActivityDeleted, id)

	case errors.Is(err, activitystore.ErrActivityNotFound):
		return activitystore.Failure[string](activitystore.CodeNotFound, msgActivityNotFound)

	default:
		s.logError(ctx, operationDelete, err)
		return activitystore.Failure[string](activitystore.CodeBackendError, msgDeleteFailed)
	}
}

func (s *Service) AddActivityImage(
	ctx context.Context,
	input activitystore.NewActivityImage,
) activitystore.Result[activitystore.ActivityImage] {

	if err := s.validator.Struct(input); err != nil {
		return activitystore.Failure[activitystore.ActivityImage](activitystore.CodeInvalidInput, msgInvalidInputPrefix+err.Error())
	}

	if !isUUID(input.ActivityID) {
		return activitystore.Failure[activitystore.ActivityImage](activitystore.CodeInvalidInput, msgInvalidActivityID)
	}

	image, err := s.store.AddImage(ctx, input)

	switch {
	case err == nil:
		return activitystore.Success(msgImageAdded, image)

	case errors.Is(err, activitystore.ErrActivityNotFound):
		return activitystore.Failure[activitystore.ActivityImage](activitystore.CodeNotFound, msgActivityNotFound)

	default:
		s.logError(ctx, operationAddImage, err)
		return activitystore.Failure[activitystore.ActivityImage](activitystore.CodeBackendError, msgAddImageFailed)
	}
}

/***** helpers *****/

// list never answers from the fallback table; an empty result is a success.
func (s *Service) list(
	ctx context.Context,
	operation string,
	successMsg string,
	failureMsg string,
	query activitystore.Query,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	activities, err := s.store.QueryActivities(ctx, query)
	if err != nil {
		s.logError(ctx, operation, err)
		return activitystore.Failure[[]activitystore.ActivityWithDetails](activitystore.CodeBackendError, failureMsg)
	}

	if activities == nil {
		activities = []activitystore.ActivityWithDetails{}
	}

	return activitystore.Success(successMsg, activities)
}

func (s *Service) lookup(ctx context.Context, identifier string, scope activitystore.Scope) (activitystore.ActivityWithDetails, error) {
	if isUUID(identifier) {
		return s.store.ActivityByID(ctx, identifier, scope)
	}

	return s.store.ActivityBySlug(ctx, identifier, scope)
}

func (s *Service) logError(ctx context.Context, operation string, err error) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.ErrorContext(ctx, logMsgBackendFailed, logAttrOperation, operation, logAttrError, err.Error())
	case s.logger != nil:
		s.logger.Error(logMsgBackendFailed, logAttrOperation, operation, logAttrError, err.Error())
	}
}

func (s *Service) logFallback(ctx context.Context, identifier string) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.WarnContext(ctx, logMsgFallbackServed, logAttrOperation, operationByIDOrSlug, logAttrIdentifier, identifier)
	case s.logger != nil:
		s.logger.Warn(logMsgFallbackServed, logAttrOperation, operationByIDOrSlug, logAttrIdentifier, identifier)
	}
}

func isUUID(identifier string) bool {
	trimmed := strings.TrimSpace(identifier)
	if len(trimmed) != 36 {
		return false
	}

	_, err := uuid.Parse(trimmed)

	return err == nil
}

var _ Catalog = (*Service)(nil)
