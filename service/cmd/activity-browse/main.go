// Command activity-browse pages through the catalog from the terminal with the listing controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/service/catalog"
	"github.com/mallorca-activities/activitystore-go/service/config"
	"github.com/mallorca-activities/activitystore-go/service/listing"
)

type options struct {
	params   activitystore.SearchParams
	pageSize int
	pages    int
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("activity-browse failed: %v", err)
	}
}

func parseFlags() options {
	var (
		search   = flag.String("search", "", "Text to search in title, short description and location")
		category = flag.String("category", "", "Category, e.g. water_sports")
		location = flag.String("location", "", "Location substring, e.g. Palma")
		sortBy   = flag.String("sort", string(activitystore.SortPopular), "popular, price_low, price_high, rating or duration")
		pageSize = flag.Int("page-size", listing.DefaultPageSize, "Activities per page")
		pages    = flag.Int("pages", 3, "Maximum number of pages to load")
	)

	flag.Parse()

	return options{
		params: activitystore.SearchParams{
			Search:   *search,
			Category: *category,
			Location: *location,
			SortBy:   activitystore.SortKey(*sortBy),
		},
		pageSize: *pageSize,
		pages:    *pages,
	}
}

func run() error {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, flush, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := cfg.OpenStore(ctx, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}
	defer closeStore()

	catalogOptions, err := cfg.CatalogOptions(logger)
	if err != nil {
		return err
	}

	service, err := catalog.NewService(store, catalogOptions...)
	if err != nil {
		return err
	}

	controller, err := listing.NewController(service, listing.WithPageSize(opts.pageSize), listing.WithLogger(logger))
	if err != nil {
		return err
	}

	return browse(ctx, os.Stdout, controller, opts)
}

// browse loads the first page and then keeps loading until there are no more pages or the page budget is used.
func browse(ctx context.Context, out io.Writer, controller *listing.Controller, opts options) error {
	state := controller.ApplyFilters(ctx, opts.params)
	printed := render(out, state, 0)

	for loaded := 1; loaded < opts.pages && state.HasMore && ctx.Err() == nil; loaded++ {
		state = controller.LoadMore(ctx)
		printed = render(out, state, printed)
	}

	if state.LastError != "" {
		return fmt.Errorf("%s: %s", state.LastCode, state.LastError)
	}

	fmt.Fprintf(out, "%d activities shown, more available: %t\n", len(state.Items), state.HasMore)

	return nil
}

// render prints the items after the first skip ones and returns the new count.
func render(out io.Writer, state listing.State, skip int) int {
	for i := skip; i < len(state.Items); i++ {
		item := state.Items[i]

		price, ok := item.AdultPrice()
		if !ok {
			price = "-"
		}

		fmt.Fprintf(out, "%3d. %-40s %-16s %-20s %8s EUR  %s\n", i+1, item.Title, item.Category, item.Location, price, item.AvgRating)
	}

	return len(state.Items)
}
