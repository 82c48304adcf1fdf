// Package listing drives incremental paging ("infinite scroll") over the catalog list operation.
//
// A Controller holds the items loaded so far for the current filters. ApplyFilters starts a new
// generation and replaces the items with the first page; LoadMore appends the next page. Responses
// that arrive after a newer ApplyFilters call belong to an older generation and are discarded, so a
// slow request can never overwrite the results of newer filters.
package listing

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const (
	DefaultPageSize          = 20
	logMsgPageFetched        = "listing page fetched"
	logMsgPageFailed         = "listing page fetch failed"
	logMsgStaleDiscarded     = "stale listing response discarded"
	logMsgLoadMoreSkipped    = "listing load more skipped"
	logAttrGeneration        = "generation"
	logAttrOffset            = "offset"
	logAttrActivityCount     = "activity_count"
	logAttrMessage           = "message"
	logAttrReason            = "reason"
	reasonLoadMoreInFlight   = "load_more_in_flight"
	reasonInitialLoadRunning = "initial_load_in_flight"
	reasonNoMorePages        = "no_more_pages"
)

var ErrNilPageFetcher = errors.New("page fetcher must not be nil")
var ErrInvalidPageSize = errors.New("page size must be between 1 and the maximum limit")

// PageFetcher loads one page of activities; catalog.Catalog satisfies it.
type PageFetcher interface {
	ListActivities(ctx context.Context, params activitystore.SearchParams) activitystore.Result[[]activitystore.ActivityWithDetails]
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, params activitystore.SearchParams) activitystore.Result[[]activitystore.ActivityWithDetails]

func (f PageFetcherFunc) ListActivities(
	ctx context.Context,
	params activitystore.SearchParams,
) activitystore.Result[[]activitystore.ActivityWithDetails] {

	return f(ctx, params)
}

// State is a snapshot of the controller. Page is the zero-based index of the last loaded page.
type State struct {
	Items       []activitystore.ActivityWithDetails
	Page        int
	HasMore     bool
	Loading     bool
	LoadingMore bool
	Generation  uint64
	LastError   string
	LastCode    activitystore.ResultCode
}

// Controller is safe for concurrent use. Its mutex is never held while a page is fetched.
type Controller struct {
	fetcher  PageFetcher
	pageSize int
	logger   activitystore.Logger

	mu     sync.Mutex
	state  State
	params activitystore.SearchParams
}

// Option defines a functional option for configuring the Controller.
type Option func(*Controller) error

// WithPageSize sets the number of activities per page.
func WithPageSize(size int) Option {
	return func(c *Controller) error {
		if size <= 0 || size > activitystore.MaxLimit {
			return ErrInvalidPageSize
		}

		c.pageSize = size

		return nil
	}
}

func WithLogger(logger activitystore.Logger) Option {
	return func(c *Controller) error {
		c.logger = logger
		return nil
	}
}

func NewController(fetcher PageFetcher, options ...Option) (*Controller, error) {
	if fetcher == nil {
		return nil, ErrNilPageFetcher
	}

	c := &Controller{fetcher: fetcher, pageSize: DefaultPageSize}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// PageSize returns the configured page size.
func (c *Controller) PageSize() int {
	return c.pageSize
}

// ApplyFilters starts a new generation with the given filters and replaces the items with the first page.
// Pagination fields of params are ignored. On failure the list is emptied and LastError is set.
func (c *Controller) ApplyFilters(ctx context.Context, params activitystore.SearchParams) State {
	params.Limit = c.pageSize
	params.Offset = 0
	params.Page = 0

	c.mu.Lock()
	c.state.Generation++
	generation := c.state.Generation
	c.params = params
	c.state.Page = 0
	c.state.Loading = true
	c.state.LoadingMore = false
	c.mu.Unlock()

	result := c.fetcher.ListActivities(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.state.Generation {
		c.debug(logMsgStaleDiscarded, logAttrGeneration, generation)
		return c.snapshot()
	}

	c.state.Loading = false
	c.state.LastCode = result.Code

	if !result.IsSuccess {
		c.state.Items = []activitystore.ActivityWithDetails{}
		c.state.HasMore = false
		c.state.LastError = result.Message
		c.debug(logMsgPageFailed, logAttrGeneration, generation, logAttrOffset, 0, logAttrMessage, result.Message)

		return c.snapshot()
	}

	page := result.Value()
	c.state.Items = slices.Clone(page)
	c.state.HasMore = len(page) == c.pageSize
	c.state.LastError = ""
	c.debug(logMsgPageFetched, logAttrGeneration, generation, logAttrOffset, 0, logAttrActivityCount, len(page))

	return c.snapshot()
}

// LoadMore appends the next page of the current generation. It returns the unchanged state without
// fetching while another load is running or when the last page was short.
// A failed page keeps the loaded items and HasMore, so the caller may retry.
func (c *Controller) LoadMore(ctx context.Context) State {
	c.mu.Lock()

	if reason, skip := c.skipLoadMore(); skip {
		c.debug(logMsgLoadMoreSkipped, logAttrReason, reason)
		state := c.snapshot()
		c.mu.Unlock()

		return state
	}

	c.state.LoadingMore = true
	generation := c.state.Generation
	params := c.params
	params.Offset = (c.state.Page + 1) * c.pageSize
	c.mu.Unlock()

	result := c.fetcher.ListActivities(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.state.Generation {
		c.debug(logMsgStaleDiscarded, logAttrGeneration, generation)
		return c.snapshot()
	}

	c.state.LoadingMore = false
	c.state.LastCode = result.Code

	if !result.IsSuccess {
		c.state.LastError = result.Message
		c.debug(logMsgPageFailed, logAttrGeneration, generation, logAttrOffset, params.Offset, logAttrMessage, result.Message)

		return c.snapshot()
	}

	page := result.Value()
	c.state.Items = append(c.state.Items, page...)
	c.state.Page++
	c.state.HasMore = len(page) == c.pageSize
	c.state.LastError = ""
	c.debug(logMsgPageFetched, logAttrGeneration, generation, logAttrOffset, params.Offset, logAttrActivityCount, len(page))

	return c.snapshot()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshot()
}

func (c *Controller) skipLoadMore() (string, bool) {
	switch {
	case c.state.LoadingMore:
		return reasonLoadMoreInFlight, true
	case c.state.Loading:
		return reasonInitialLoadRunning, true
	case !c.state.HasMore:
		return reasonNoMorePages, true
	default:
		return "", false
	}
}

// snapshot must be called with the mutex held.
func (c *Controller) snapshot() State {
	state := c.state
	state.Items = slices.Clone(c.state.Items)

	if state.Items == nil {
		state.Items = []activitystore.ActivityWithDetails{}
	}

	return state
}

func (c *Controller) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
