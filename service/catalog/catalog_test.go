package catalog_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/service/catalog"
	"github.com/mallorca-activities/activitystore-go/testutil/helper"
)

const (
	sailingID = "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
	kayakID   = "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5c"
)

var errBackendDown = errors.New("connection refused")

func givenService(t *testing.T, store *helper.StoreStub, options ...catalog.Option) *catalog.Service {
	t.Helper()

	service, err := catalog.NewService(store, options...)
	require.NoError(t, err)

	return service
}

func givenStoreWithActivities() *helper.StoreStub {
	return helper.NewStoreStub(
		helper.FixtureActivity(sailingID, "sailing-adventure", "Sailing Adventure", activitystore.CategoryWaterSports, "85.00"),
		helper.FixtureActivity(kayakID, "kayak-tour", "Kayak Tour", activitystore.CategoryWaterSports, "40.00"),
	)
}

func validNewActivity() activitystore.NewActivity {
	return activitystore.NewActivity{
		Title:           "Sunset Catamaran Cruise",
		Category:        activitystore.CategoryWaterSports,
		Location:        "Port d'Andratx",
		DurationMinutes: 180,
		MinParticipants: 1,
		MaxParticipants: 40,
	}
}

func strPtr(s string) *string {
	return &s
}

func Test_NewService_RejectsNilStore(t *testing.T) {
	// act
	service, err := catalog.NewService(nil)

	// assert
	assert.ErrorIs(t, err, catalog.ErrNilStore)
	assert.Nil(t, service)
}

func Test_Service_ListActivities(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *helper.StoreStub
		validate func(t *testing.T, store *helper.StoreStub, result activitystore.Result[[]activitystore.ActivityWithDetails])
	}{
		{
			name: "returns the activities of the store",
			build: func() *helper.StoreStub {
				store := givenStoreWithActivities()
				store.QueryResults = [][]activitystore.ActivityWithDetails{{store.Activities[sailingID]}}

				return store
			},
			validate: func(t *testing.T, store *helper.StoreStub, result activitystore.Result[[]activitystore.ActivityWithDetails]) {
				assert.True(t, result.IsSuccess)
				assert.Equal(t, activitystore.CodeOK, result.Code)
				assert.Equal(t, "Activities retrieved successfully", result.Message)
				require.Len(t, result.Value(), 1)
				assert.Equal(t, "sailing-adventure", result.Value()[0].Slug)
				assert.Equal(t, activitystore.ScopeCustomer, store.LastQuery().Scope())
			},
		},
		{
			name: "empty result is a success with an empty list",
			build: func() *helper.StoreStub {
				store := helper.NewStoreStub()
				store.QueryResults = [][]activitystore.ActivityWithDetails{nil}

				return store
			},
			validate: func(t *testing.T, _ *helper.StoreStub, result activitystore.Result[[]activitystore.ActivityWithDetails]) {
				assert.True(t, result.IsSuccess)
				require.NotNil(t, result.Data)
				assert.Empty(t, *result.Data)
			},
		},
		{
			name: "backend failure never uses fallback data",
			build: func() *helper.StoreStub {
				store := helper.NewStoreStub()
				store.QueryErr = errors.Join(activitystore.ErrQueryingActivitiesFailed, errBackendDown)

				return store
			},
			validate: func(t *testing.T, _ *helper.StoreStub, result activitystore.Result[[]activitystore.ActivityWithDetails]) {
				assert.False(t, result.IsSuccess)
				assert.Equal(t, activitystore.CodeBackendError, result.Code)
				assert.Equal(t, "Failed to get activities", result.Message)
				assert.Nil(t, result.Data)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			store := tc.build()
			service := givenService(t, store)

			// act
			result := service.ListActivities(context.Background(), activitystore.SearchParams{Category: "water_sports"})

			// assert
			tc.validate(t, store, result)
		})
	}
}

func Test_Service_GetFeaturedActivities_DefaultsToSix(t *testing.T) {
	// setup
	store := helper.NewStoreStub()
	service := givenService(t, store)

	// act
	result := service.GetFeaturedActivities(context.Background(), 0)

	// assert
	assert.True(t, result.IsSuccess)
	query := store.LastQuery()
	assert.Equal(t, catalog.DefaultFeaturedLimit, query.Limit())
	require.Len(t, query.Predicates(), 2)
	assert.Equal(t, activitystore.FieldFeatured, query.Predicates()[1].Field())
	assert.True(t, query.Predicates()[1].BoolVal())
	assert.Equal(t, activitystore.OrderingFor(activitystore.SortPopular), query.Ordering())
}

func Test_Service_SearchActivities_UsesTermAsSearch(t *testing.T) {
	// setup
	store := helper.NewStoreStub()
	service := givenService(t, store)

	// act
	result := service.SearchActivities(context.Background(), "snorkel", activitystore.SearchParams{Search: "ignored", Limit: 5})

	// assert
	assert.True(t, result.IsSuccess)
	query := store.LastQuery()
	require.Len(t, query.Predicates(), 2)
	assert.Equal(t, activitystore.OpAnyContains, query.Predicates()[1].Operator())
	assert.Equal(t, "snorkel", query.Predicates()[1].Val())
	assert.Equal(t, 5, query.Limit())
}

func Test_Service_GetActivitiesByCategory_PassesUnknownCategoryThrough(t *testing.T) {
	// setup
	store := helper.NewStoreStub()
	service := givenService(t, store)

	// act
	result := service.GetActivitiesByCategory(context.Background(), "space_travel", 10)

	// assert
	assert.True(t, result.IsSuccess)
	assert.Empty(t, result.Value())
	query := store.LastQuery()
	assert.Equal(t, "space_travel", query.Predicates()[1].Val())
	assert.Equal(t, 10, query.Limit())
}

func Test_Service_GetActivityByIDOrSlug_RoutesByIdentifierShape(t *testing.T) {
	// setup
	store := givenStoreWithActivities()
	service := givenService(t, store)

	// act
	byID := service.GetActivityByIDOrSlug(context.Background(), sailingID)
	bySlug := service.GetActivityByIDOrSlug(context.Background(), " kayak-tour ")

	// assert
	assert.Equal(t, activitystore.CodeOK, byID.Code)
	assert.Equal(t, "sailing-adventure", byID.Value().Slug)
	assert.Equal(t, activitystore.CodeOK, bySlug.Code)
	assert.Equal(t, kayakID, bySlug.Value().ID)
	assert.Equal(t, []string{sailingID, "kayak-tour"}, store.Lookups)
}

func Test_Service_GetActivityByIDOrSlug_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		lookupErr  error
		options    []catalog.Option
		validate   func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails])
	}{
		{
			name:       "missing activity is not found even when a fallback record exists",
			identifier: "palma-cathedral-tour",
			validate: func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails]) {
				assert.False(t, result.IsSuccess)
				assert.Equal(t, activitystore.CodeNotFound, result.Code)
				assert.Equal(t, "Activity not found", result.Message)
			},
		},
		{
			name:       "backend failure serves the fallback record by slug",
			identifier: "palma-cathedral-tour",
			lookupErr:  errBackendDown,
			validate: func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails]) {
				assert.True(t, result.IsSuccess)
				assert.Equal(t, activitystore.CodeFallback, result.Code)
				assert.True(t, result.IsFallback())
				assert.Equal(t, "Activity retrieved successfully (from fallback data after error)", result.Message)
				assert.Equal(t, "palma-cathedral-tour", result.Value().Slug)
			},
		},
		{
			name:       "backend failure serves the fallback record by id",
			identifier: "activity-1",
			lookupErr:  errBackendDown,
			validate: func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails]) {
				assert.Equal(t, activitystore.CodeFallback, result.Code)
				assert.Equal(t, "palma-cathedral-tour", result.Value().Slug)
			},
		},
		{
			name:       "backend failure without fallback record is a backend error",
			identifier: "unknown-tour",
			lookupErr:  errBackendDown,
			validate: func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails]) {
				assert.False(t, result.IsSuccess)
				assert.Equal(t, activitystore.CodeBackendError, result.Code)
				assert.Equal(t, "Failed to get activity", result.Message)
			},
		},
		{
			name:       "disabled fallback reports the backend error",
			identifier: "palma-cathedral-tour",
			lookupErr:  errBackendDown,
			options:    []catalog.Option{catalog.WithoutFallback()},
			validate: func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails]) {
				assert.Equal(t, activitystore.CodeBackendError, result.Code)
			},
		},
		{
			name:       "custom fallback table replaces the defaults",
			identifier: "kayak-tour",
			lookupErr:  errBackendDown,
			options: []catalog.Option{catalog.WithFallbackTable(mustFallbackTable(
				helper.FixtureActivity(kayakID, "kayak-tour", "Kayak Tour", activitystore.CategoryWaterSports, "40.00"),
			))},
			validate: func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails]) {
				assert.Equal(t, activitystore.CodeFallback, result.Code)
				assert.Equal(t, kayakID, result.Value().ID)
			},
		},
		{
			name:       "empty identifier is invalid input",
			identifier: "  ",
			validate: func(t *testing.T, result activitystore.Result[activitystore.ActivityWithDetails]) {
				assert.Equal(t, activitystore.CodeInvalidInput, result.Code)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			store := helper.NewStoreStub()
			store.LookupErr = tc.lookupErr
			service := givenService(t, store, tc.options...)

			// act
			result := service.GetActivityByIDOrSlug(context.Background(), tc.identifier)

			// assert
			tc.validate(t, result)
		})
	}
}

func Test_Service_GetActivityByIDOrSlug_FallbackDataCannotBeMutated(t *testing.T) {
	// setup
	store := helper.NewStoreStub()
	store.LookupErr = errBackendDown
	service := givenService(t, store)

	// arrange
	first := service.GetActivityByIDOrSlug(context.Background(), "sailing-adventure")
	first.Data.Title = "changed"
	first.Data.Images[0].ImageURL = "changed"

	// act
	second := service.GetActivityByIDOrSlug(context.Background(), "sailing-adventure")

	// assert
	assert.NotEqual(t, "changed", second.Value().Title)
	assert.NotEqual(t, "changed", second.Value().Images[0].ImageURL)
}

func Test_Service_GetActivityByIDOrSlug_LogsFallbackUse(t *testing.T) {
	// setup
	logSpy := helper.NewLogHandlerSpy(false)
	store := helper.NewStoreStub()
	store.LookupErr = errBackendDown
	service := givenService(t, store, catalog.WithLogger(slog.New(logSpy)))

	// act
	service.GetActivityByIDOrSlug(context.Background(), "sailing-adventure")

	// assert
	assert.True(t, logSpy.HasErrorLogWithMessage("catalog backend call failed").
		WithAttr("operation", "get_activity_by_id_or_slug").Assert())
	assert.True(t, logSpy.HasWarnLogWithMessage("catalog serving fallback data after backend error").
		WithAttr("identifier", "sailing-adventure").Assert())
}

func Test_Service_GetSimilarActivities(t *testing.T) {
	// setup
	store := givenStoreWithActivities()
	store.QueryResults = [][]activitystore.ActivityWithDetails{{store.Activities[kayakID]}}
	service := givenService(t, store)

	// act
	result := service.GetSimilarActivities(context.Background(), sailingID, 0)

	// assert
	assert.True(t, result.IsSuccess)
	assert.Equal(t, "Similar activities retrieved successfully", result.Message)
	require.Len(t, result.Value(), 1)

	query := store.LastQuery()
	assert.Equal(t, catalog.DefaultSimilarLimit, query.Limit())
	require.Len(t, query.Predicates(), 3)
	assert.Equal(t, string(activitystore.CategoryWaterSports), query.Predicates()[1].Val())
	assert.Equal(t, activitystore.OpNotEquals, query.Predicates()[2].Operator())
	assert.Equal(t, sailingID, query.Predicates()[2].Val())
	assert.Equal(t,
		[]activitystore.OrderTerm{
			{Field: activitystore.FieldAvgRating, Descending: true},
			{Field: activitystore.FieldTotalBookings, Descending: true},
			{Field: activitystore.FieldID},
		},
		query.Ordering())
}

func Test_Service_GetSimilarActivities_Failures(t *testing.T) {
	t.Run("unknown reference activity is not found", func(t *testing.T) {
		// setup
		store := helper.NewStoreStub()
		service := givenService(t, store)

		// act
		result := service.GetSimilarActivities(context.Background(), sailingID, 4)

		// assert
		assert.Equal(t, activitystore.CodeNotFound, result.Code)
		assert.Equal(t, 0, store.QueryCount())
	})

	t.Run("backend failure never uses fallback data", func(t *testing.T) {
		// setup
		store := helper.NewStoreStub()
		store.LookupErr = errBackendDown
		service := givenService(t, store)

		// act
		result := service.GetSimilarActivities(context.Background(), "sailing-adventure", 4)

		// assert
		assert.Equal(t, activitystore.CodeBackendError, result.Code)
		assert.Equal(t, "Failed to get similar activities", result.Message)
	})
}

func Test_Service_GetActivitiesForAdmin(t *testing.T) {
	t.Run("newest first with full details", func(t *testing.T) {
		// setup
		store := helper.NewStoreStub()
		service := givenService(t, store)

		// act
		result := service.GetActivitiesForAdmin(context.Background(), activitystore.SearchParams{Status: "draft"})

		// assert
		assert.True(t, result.IsSuccess)
		query := store.LastQuery()
		assert.Equal(t, activitystore.ScopeAdmin, query.Scope())
		assert.Equal(t, activitystore.DetailsFull, query.Details())
		assert.Equal(t, []activitystore.OrderTerm{
			{Field: activitystore.FieldCreatedAt, Descending: true},
			{Field: activitystore.FieldID},
		}, query.Ordering())
		require.Len(t, query.Predicates(), 1)
		assert.Equal(t, "draft", query.Predicates()[0].Val())
	})

	t.Run("explicit sort key wins", func(t *testing.T) {
		// setup
		store := helper.NewStoreStub()
		service := givenService(t, store)

		// act
		service.GetActivitiesForAdmin(context.Background(), activitystore.SearchParams{SortBy: activitystore.SortRating})

		// assert
		assert.Equal(t, activitystore.OrderingFor(activitystore.SortRating), store.LastQuery().Ordering())
	})
}

func Test_Service_GetActivityByIDForAdmin(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		// setup
		service := givenService(t, givenStoreWithActivities())

		// act
		result := service.GetActivityByIDForAdmin(context.Background(), sailingID)

		// assert
		assert.Equal(t, activitystore.CodeOK, result.Code)
		assert.Equal(t, sailingID, result.Value().ID)
	})

	t.Run("backend failure never uses fallback data", func(t *testing.T) {
		// setup
		store := helper.NewStoreStub()
		store.LookupErr = errBackendDown
		service := givenService(t, store)

		// act
		result := service.GetActivityByIDForAdmin(context.Background(), sailingID)

		// assert
		assert.Equal(t, activitystore.CodeBackendError, result.Code)
	})

	t.Run("malformed id is invalid input", func(t *testing.T) {
		// setup
		store := helper.NewStoreStub()
		service := givenService(t, store)

		// act
		result := service.GetActivityByIDForAdmin(context.Background(), "palma-cathedral-tour")

		// assert
		assert.Equal(t, activitystore.CodeInvalidInput, result.Code)
		assert.Empty(t, store.Lookups)
	})
}

func Test_Service_GetActivitiesStats(t *testing.T) {
	// setup
	store := helper.NewStoreStub()
	store.Counts = activitystore.StatusCounts{Total: 5, Active: 3, Draft: 1, Suspended: 1}
	service := givenService(t, store)

	// act
	result := service.GetActivitiesStats(context.Background())

	// assert
	assert.Equal(t, "Activities stats retrieved successfully", result.Message)
	assert.Equal(t, store.Counts, result.Value())

	// arrange
	store.CountErr = errBackendDown

	// act
	failed := service.GetActivitiesStats(context.Background())

	// assert
	assert.Equal(t, activitystore.CodeBackendError, failed.Code)
	assert.Equal(t, "Failed to get activities stats", failed.Message)
}

func Test_Service_CreateActivity(t *testing.T) {
	tests := []struct {
		name     string
		build    func() activitystore.NewActivity
		validate func(t *testing.T, store *helper.StoreStub, result activitystore.Result[activitystore.Activity])
	}{
		{
			name:  "derives the slug from the title",
			build: validNewActivity,
			validate: func(t *testing.T, store *helper.StoreStub, result activitystore.Result[activitystore.Activity]) {
				assert.Equal(t, activitystore.CodeOK, result.Code)
				assert.Equal(t, "Activity created successfully", result.Message)
				require.Len(t, store.Created, 1)
				assert.Equal(t, "sunset-catamaran-cruise", store.Created[0].Slug)
			},
		},
		{
			name: "keeps an explicit slug",
			build: func() activitystore.NewActivity {
				input := validNewActivity()
				input.Slug = "sunset-cruise"

				return input
			},
			validate: func(t *testing.T, store *helper.StoreStub, result activitystore.Result[activitystore.Activity]) {
				assert.Equal(t, "sunset-cruise", store.Created[0].Slug)
			},
		},
		{
			name: "missing title and unknown category are invalid",
			build: func() activitystore.NewActivity {
				input := validNewActivity()
				input.Title = ""
				input.Category = "space_travel"

				return input
			},
			validate: func(t *testing.T, store *helper.StoreStub, result activitystore.Result[activitystore.Activity]) {
				assert.Equal(t, activitystore.CodeInvalidInput, result.Code)
				assert.Contains(t, result.Message, "title is a required field")
				assert.Contains(t, result.Message, "category must be a known activity category")
				assert.Empty(t, store.Created)
			},
		},
		{
			name: "max participants below min participants is invalid",
			build: func() activitystore.NewActivity {
				input := validNewActivity()
				input.MinParticipants = 10
				input.MaxParticipants = 4

				return input
			},
			validate: func(t *testing.T, _ *helper.StoreStub, result activitystore.Result[activitystore.Activity]) {
				assert.Equal(t, activitystore.CodeInvalidInput, result.Code)
				assert.Contains(t, result.Message, "maxParticipants")
			},
		},
		{
			name: "unknown status is invalid",
			build: func() activitystore.NewActivity {
				input := validNewActivity()
				input.Status = "archived"

				return input
			},
			validate: func(t *testing.T, _ *helper.StoreStub, result activitystore.Result[activitystore.Activity]) {
				assert.Equal(t, activitystore.CodeInvalidInput, result.Code)
				assert.Contains(t, result.Message, "status must be one of active, draft, inactive, suspended")
			},
		},
		{
			name: "title without letters or digits yields no slug",
			build: func() activitystore.NewActivity {
				input := validNewActivity()
				input.Title = "!!! ???"

				return input
			},
			validate: func(t *testing.T, store *helper.StoreStub, result activitystore.Result[activitystore.Activity]) {
				assert.Equal(t, activitystore.CodeInvalidInput, result.Code)
				assert.Empty(t, store.Created)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			store := helper.NewStoreStub()
			service := givenService(t, store)

			// act
			result := service.CreateActivity(context.Background(), tc.build())

			// assert
			tc.validate(t, store, result)
		})
	}
}

func Test_Service_CreateActivity_BackendFailure(t *testing.T) {
	// setup
	store := helper.NewStoreStub()
	store.WriteErr = errors.Join(activitystore.ErrWritingActivityFailed, errBackendDown)
	service := givenService(t, store)

	// act
	result := service.CreateActivity(context.Background(), validNewActivity())

	// assert
	assert.Equal(t, activitystore.CodeBackendError, result.Code)
	assert.Equal(t, "Failed to create activity", result.Message)
}

func Test_Service_UpdateActivity(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		update   activitystore.ActivityUpdate
		expected activitystore.ResultCode
	}{
		{name: "writes set fields", id: sailingID, update: activitystore.ActivityUpdate{Title: strPtr("Sailing Day")}, expected: activitystore.CodeOK},
		{name: "missing activity", id: "0190a1b2-c3d4-7e5f-8a9b-ffffffffffff", update: activitystore.ActivityUpdate{Title: strPtr("Nope")}, expected: activitystore.CodeNotFound},
		{name: "empty update", id: sailingID, update: activitystore.ActivityUpdate{}, expected: activitystore.CodeInvalidInput},
		{name: "short title", id: sailingID, update: activitystore.ActivityUpdate{Title: strPtr("ab")}, expected: activitystore.CodeInvalidInput},
		{name: "malformed id", id: "sailing-adventure", update: activitystore.ActivityUpdate{Title: strPtr("Sailing Day")}, expected: activitystore.CodeInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			service := givenService(t, givenStoreWithActivities())

			// act
			result := service.UpdateActivity(context.Background(), tc.id, tc.update)

			// assert
			assert.Equal(t, tc.expected, result.Code, result.Message)
		})
	}
}

func Test_Service_DeleteActivity(t *testing.T) {
	// setup
	store := givenStoreWithActivities()
	service := givenService(t, store)

	// act
	deleted := service.DeleteActivity(context.Background(), sailingID)
	missing := service.DeleteActivity(context.Background(), "0190a1b2-c3d4-7e5f-8a9b-ffffffffffff")

	// assert
	assert.Equal(t, activitystore.CodeOK, deleted.Code)
	assert.Equal(t, sailingID, deleted.Value())
	assert.Equal(t, []string{sailingID}, store.Deleted)
	assert.Equal(t, activitystore.CodeNotFound, missing.Code)
}

func Test_Service_AddActivityImage(t *testing.T) {
	tests := []struct {
		name     string
		input    activitystore.NewActivityImage
		writeErr error
		expected activitystore.ResultCode
	}{
		{
			name:     "adds the image",
			input:    activitystore.NewActivityImage{ActivityID: sailingID, ImageURL: "https://images.example.com/deck.jpg", IsPrimary: true},
			expected: activitystore.CodeOK,
		},
		{
			name:     "invalid url",
			input:    activitystore.NewActivityImage{ActivityID: sailingID, ImageURL: "deck.jpg"},
			expected: activitystore.CodeInvalidInput,
		},
		{
			name:     "malformed activity id",
			input:    activitystore.NewActivityImage{ActivityID: "sailing", ImageURL: "https://images.example.com/deck.jpg"},
			expected: activitystore.CodeInvalidInput,
		},
		{
			name:     "unknown activity",
			input:    activitystore.NewActivityImage{ActivityID: sailingID, ImageURL: "https://images.example.com/deck.jpg"},
			writeErr: activitystore.ErrActivityNotFound,
			expected: activitystore.CodeNotFound,
		},
		{
			name:     "backend failure",
			input:    activitystore.NewActivityImage{ActivityID: sailingID, ImageURL: "https://images.example.com/deck.jpg"},
			writeErr: errBackendDown,
			expected: activitystore.CodeBackendError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			store := givenStoreWithActivities()
			store.WriteErr = tc.writeErr
			service := givenService(t, store)

			// act
			result := service.AddActivityImage(context.Background(), tc.input)

			// assert
			assert.Equal(t, tc.expected, result.Code, result.Message)
		})
	}
}

func mustFallbackTable(records ...activitystore.ActivityWithDetails) activitystore.FallbackTable {
	table, err := activitystore.NewFallbackTable(records...)
	if err != nil {
		panic(err)
	}

	return table
}
