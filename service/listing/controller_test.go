package listing_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/service/listing"
	"github.com/mallorca-activities/activitystore-go/testutil/helper"
)

// pagedCatalog serves a fixed number of activities in pages and records the requested params.
type pagedCatalog struct {
	mu       sync.Mutex
	total    int
	fail     bool
	requests []activitystore.SearchParams
}

func (p *pagedCatalog) ListActivities(
	_ context.Context,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, params)

	if p.fail {
		return activitystore.Failure[[]activitystore.ActivityWithDetails](activitystore.CodeBackendError, "Failed to get activities")
	}

	page := make([]activitystore.ActivityWithDetails, 0, params.Limit)
	for i := params.Offset; i < min(params.Offset+params.Limit, p.total); i++ {
		id := fmt.Sprintf("activity-%03d", i)
		page = append(page, helper.FixtureActivity(id, id, "Activity "+id, activitystore.CategoryCultural, "10.00"))
	}

	return activitystore.Success("Activities retrieved successfully", page)
}

func givenController(t *testing.T, fetcher listing.PageFetcher, options ...listing.Option) *listing.Controller {
	t.Helper()

	controller, err := listing.NewController(fetcher, options...)
	require.NoError(t, err)

	return controller
}

func Test_NewController_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		build    func() (*listing.Controller, error)
		expected error
	}{
		{
			name:     "nil fetcher",
			build:    func() (*listing.Controller, error) { return listing.NewController(nil) },
			expected: listing.ErrNilPageFetcher,
		},
		{
			name: "zero page size",
			build: func() (*listing.Controller, error) {
				return listing.NewController(&pagedCatalog{}, listing.WithPageSize(0))
			},
			expected: listing.ErrInvalidPageSize,
		},
		{
			name: "page size above the maximum limit",
			build: func() (*listing.Controller, error) {
				return listing.NewController(&pagedCatalog{}, listing.WithPageSize(activitystore.MaxLimit+1))
			},
			expected: listing.ErrInvalidPageSize,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// act
			controller, err := tc.build()

			// assert
			assert.ErrorIs(t, err, tc.expected)
			assert.Nil(t, controller)
		})
	}
}

func Test_Controller_PagesUntilShortPage(t *testing.T) {
	// setup
	source := &pagedCatalog{total: 45}
	controller := givenController(t, source)

	// act
	first := controller.ApplyFilters(context.Background(), activitystore.SearchParams{Category: "cultural", Limit: 99, Offset: 7})
	second := controller.LoadMore(context.Background())
	third := controller.LoadMore(context.Background())
	fourth := controller.LoadMore(context.Background())

	// assert
	assert.Equal(t, listing.DefaultPageSize, controller.PageSize())

	assert.Len(t, first.Items, 20)
	assert.True(t, first.HasMore)
	assert.Equal(t, 0, first.Page)

	assert.Len(t, second.Items, 40)
	assert.True(t, second.HasMore)
	assert.Equal(t, 1, second.Page)

	assert.Len(t, third.Items, 45)
	assert.False(t, third.HasMore, "a short page ends the listing")
	assert.Equal(t, 2, third.Page)

	assert.Equal(t, third, fourth, "no fetch once HasMore is false")
	require.Len(t, source.requests, 3)
	assert.Equal(t, []int{0, 20, 40}, []int{source.requests[0].Offset, source.requests[1].Offset, source.requests[2].Offset})

	for _, request := range source.requests {
		assert.Equal(t, 20, request.Limit)
		assert.Equal(t, "cultural", request.Category)
	}
}

func Test_Controller_ExactMultipleNeedsOneExtraEmptyFetch(t *testing.T) {
	// setup
	source := &pagedCatalog{total: 10}
	controller := givenController(t, source, listing.WithPageSize(5))

	// act
	controller.ApplyFilters(context.Background(), activitystore.SearchParams{})
	afterSecondPage := controller.LoadMore(context.Background())
	afterEmptyPage := controller.LoadMore(context.Background())

	// assert
	assert.True(t, afterSecondPage.HasMore)
	assert.Len(t, afterEmptyPage.Items, 10)
	assert.False(t, afterEmptyPage.HasMore)
	assert.Len(t, source.requests, 3)
}

func Test_Controller_ApplyFilters_ResetsToFirstPage(t *testing.T) {
	// setup
	source := &pagedCatalog{total: 60}
	controller := givenController(t, source)
	controller.ApplyFilters(context.Background(), activitystore.SearchParams{})
	controller.LoadMore(context.Background())

	// act
	state := controller.ApplyFilters(context.Background(), activitystore.SearchParams{Search: "cave"})

	// assert
	assert.Len(t, state.Items, 20)
	assert.Equal(t, 0, state.Page)
	assert.Equal(t, uint64(2), state.Generation)
	assert.Equal(t, 0, source.requests[2].Offset)
	assert.Equal(t, "cave", source.requests[2].Search)
}

func Test_Controller_Failures(t *testing.T) {
	t.Run("failed first page empties the list", func(t *testing.T) {
		// setup
		source := &pagedCatalog{total: 30}
		controller := givenController(t, source)
		controller.ApplyFilters(context.Background(), activitystore.SearchParams{})

		// arrange
		source.fail = true

		// act
		state := controller.ApplyFilters(context.Background(), activitystore.SearchParams{Category: "nightlife"})

		// assert
		assert.Empty(t, state.Items)
		assert.False(t, state.HasMore)
		assert.False(t, state.Loading)
		assert.Equal(t, "Failed to get activities", state.LastError)
		assert.Equal(t, activitystore.CodeBackendError, state.LastCode)
	})

	t.Run("failed next page keeps the items and allows a retry", func(t *testing.T) {
		// setup
		source := &pagedCatalog{total: 30}
		controller := givenController(t, source)
		controller.ApplyFilters(context.Background(), activitystore.SearchParams{})

		// arrange
		source.fail = true

		// act
		failed := controller.LoadMore(context.Background())
		source.fail = false
		retried := controller.LoadMore(context.Background())

		// assert
		assert.Len(t, failed.Items, 20)
		assert.True(t, failed.HasMore)
		assert.False(t, failed.LoadingMore)
		assert.NotEmpty(t, failed.LastError)

		assert.Len(t, retried.Items, 30)
		assert.Empty(t, retried.LastError)
		assert.Equal(t, 20, source.requests[2].Offset)
	})
}

// blockingCatalog hands every request to the test, which answers it explicitly.
type blockingCatalog struct {
	calls chan blockedCall
}

type blockedCall struct {
	params activitystore.SearchParams
	answer chan activitystore.Result[[]activitystore.ActivityWithDetails]
}

func newBlockingCatalog() *blockingCatalog {
	return &blockingCatalog{calls: make(chan blockedCall)}
}

func (b *blockingCatalog) ListActivities(
	_ context.Context,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	call := blockedCall{params: params, answer: make(chan activitystore.Result[[]activitystore.ActivityWithDetails])}
	b.calls <- call

	return <-call.answer
}

func (b *blockingCatalog) next(t *testing.T) blockedCall {
	t.Helper()

	select {
	case call := <-b.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch")
		return blockedCall{}
	}
}

func pageOf(slugs ...string) activitystore.Result[[]activitystore.ActivityWithDetails] {
	page := make([]activitystore.ActivityWithDetails, 0, len(slugs))
	for _, slug := range slugs {
		page = append(page, helper.FixtureActivity(slug, slug, slug, activitystore.CategoryWaterSports, "30.00"))
	}

	return activitystore.Success("Activities retrieved successfully", page)
}

func Test_Controller_StaleResponseIsDiscarded(t *testing.T) {
	// setup
	source := newBlockingCatalog()
	logSpy := helper.NewLogHandlerSpy(false)
	controller := givenController(t, source, listing.WithPageSize(2), listing.WithLogger(slog.New(logSpy)))

	var wg sync.WaitGroup
	results := make([]listing.State, 2)

	// arrange
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = controller.ApplyFilters(context.Background(), activitystore.SearchParams{Category: "water_sports"})
	}()
	slow := source.next(t)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = controller.ApplyFilters(context.Background(), activitystore.SearchParams{Category: "nightlife"})
	}()
	fast := source.next(t)

	// act
	fast.answer <- pageOf("bar-crawl")
	slow.answer <- pageOf("kayak", "jet-ski")
	wg.Wait()

	// assert
	assert.Equal(t, "water_sports", slow.params.Category)
	assert.Equal(t, "nightlife", fast.params.Category)

	state := controller.Snapshot()
	require.Len(t, state.Items, 1)
	assert.Equal(t, "bar-crawl", state.Items[0].Slug)
	assert.Equal(t, uint64(2), state.Generation)
	assert.False(t, state.Loading)
	assert.False(t, state.HasMore)
	assert.True(t, logSpy.HasDebugLogWithMessage("stale listing response discarded").Assert())
}

func Test_Controller_LoadMoreGuards(t *testing.T) {
	// setup
	source := newBlockingCatalog()
	controller := givenController(t, source, listing.WithPageSize(1))

	// arrange
	done := make(chan listing.State)
	go func() { done <- controller.ApplyFilters(context.Background(), activitystore.SearchParams{}) }()
	initial := source.next(t)

	// act
	skippedDuringInitialLoad := controller.LoadMore(context.Background())

	// assert
	assert.True(t, skippedDuringInitialLoad.Loading)

	// arrange
	initial.answer <- pageOf("first")
	<-done

	go func() { done <- controller.LoadMore(context.Background()) }()
	more := source.next(t)

	// act
	skippedDuringLoadMore := controller.LoadMore(context.Background())

	// assert
	assert.True(t, skippedDuringLoadMore.LoadingMore)
	assert.Equal(t, 1, more.params.Offset)

	more.answer <- pageOf("second")
	final := <-done
	assert.Len(t, final.Items, 2)
	assert.False(t, final.LoadingMore)
}

func Test_Controller_LoadMoreOfOldGenerationIsDiscarded(t *testing.T) {
	// setup
	source := newBlockingCatalog()
	controller := givenController(t, source, listing.WithPageSize(1))

	go func() { controller.ApplyFilters(context.Background(), activitystore.SearchParams{}) }()
	source.next(t).answer <- pageOf("first")
	require.Eventually(t, func() bool { return !controller.Snapshot().Loading }, time.Second, time.Millisecond)

	// arrange
	loadMoreDone := make(chan listing.State)
	go func() { loadMoreDone <- controller.LoadMore(context.Background()) }()
	staleMore := source.next(t)

	filtersDone := make(chan listing.State)
	go func() { filtersDone <- controller.ApplyFilters(context.Background(), activitystore.SearchParams{Search: "wine"}) }()
	fresh := source.next(t)

	// act
	staleMore.answer <- pageOf("stale")
	<-loadMoreDone
	fresh.answer <- pageOf("winery")
	state := <-filtersDone

	// assert
	require.Len(t, state.Items, 1)
	assert.Equal(t, "winery", state.Items[0].Slug)
	assert.False(t, state.LoadingMore)
}

func Test_Controller_SnapshotIsACopy(t *testing.T) {
	// setup
	controller := givenController(t, &pagedCatalog{total: 3})
	controller.ApplyFilters(context.Background(), activitystore.SearchParams{})

	// act
	snapshot := controller.Snapshot()
	snapshot.Items[0].Title = "changed"

	// assert
	assert.NotEqual(t, "changed", controller.Snapshot().Items[0].Title)
}

func Test_PageFetcherFunc(t *testing.T) {
	// setup
	called := false
	fetcher := listing.PageFetcherFunc(func(_ context.Context, _ activitystore.SearchParams) activitystore.Result[[]activitystore.ActivityWithDetails] {
		called = true
		return activitystore.Success("ok", []activitystore.ActivityWithDetails{})
	})
	controller := givenController(t, fetcher)

	// act
	state := controller.ApplyFilters(context.Background(), activitystore.SearchParams{})

	// assert
	assert.True(t, called)
	assert.Empty(t, state.Items)
	assert.False(t, state.HasMore)
}
