package postgresengine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/postgresengine"
	"github.com/mallorca-activities/activitystore-go/testutil/postgresengine/config"
)

func prepareDatabase(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(ctx, postgresengine.Schema)
	require.NoError(t, err, "error in arranging test data")

	_, err = pool.Exec(ctx, "TRUNCATE activities CASCADE")
	require.NoError(t, err, "error in arranging test data")
}

func givenActiveActivity(
	t *testing.T,
	ctx context.Context,
	store *postgresengine.Store,
	pool *pgxpool.Pool,
	title string,
	category activitystore.Category,
	adultPrice string,
) activitystore.Activity {

	t.Helper()

	created, err := store.CreateActivity(ctx, activitystore.NewActivity{
		Title:           title,
		Category:        category,
		Location:        "Palma",
		DurationMinutes: 90,
		MaxParticipants: 10,
		Status:          activitystore.StatusActive,
	})
	require.NoError(t, err, "error in arranging test data")

	_, err = pool.Exec(ctx, fmt.Sprintf(
		"INSERT INTO activity_pricing (activity_id, price_type, base_price) VALUES ('%s', 'adult', %s)",
		created.ID, adultPrice))
	require.NoError(t, err, "error in arranging test data")

	return created
}

func Test_Integration_Store_AllAdapters(t *testing.T) {
	dsn := config.TestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool := config.PGXPool(t, dsn)

	factories := []struct {
		name  string
		build func() (*postgresengine.Store, error)
	}{
		{name: "pgx.pool", build: func() (*postgresengine.Store, error) { return postgresengine.NewStoreFromPGXPool(pool) }},
		{name: "sql.db", build: func() (*postgresengine.Store, error) { return postgresengine.NewStoreFromSQLDB(config.SQLDB(t, dsn)) }},
		{name: "sqlx.db", build: func() (*postgresengine.Store, error) { return postgresengine.NewStoreFromSQLX(config.SQLX(t, dsn)) }},
	}

	for _, factory := range factories {
		t.Run(factory.name, func(t *testing.T) {
			// setup
			prepareDatabase(t, ctx, pool)
			store, err := factory.build()
			require.NoError(t, err)

			// arrange
			expensive := givenActiveActivity(t, ctx, store, pool, "Sunset Sailing", activitystore.CategoryWaterSports, "120")
			cheap := givenActiveActivity(t, ctx, store, pool, "Paddle Surf", activitystore.CategoryWaterSports, "25")
			middle := givenActiveActivity(t, ctx, store, pool, "Jet Ski Safari", activitystore.CategoryWaterSports, "65")
			_ = givenActiveActivity(t, ctx, store, pool, "Cathedral Tour", activitystore.CategoryCultural, "45")

			_, err = store.AddImage(ctx, activitystore.NewActivityImage{
				ActivityID: cheap.ID,
				ImageURL:   "https://images.example.com/paddle.jpg",
				IsPrimary:  true,
			})
			require.NoError(t, err)

			// act
			listed, err := store.QueryActivities(ctx, activitystore.FromSearchParams(
				activitystore.SearchParams{Category: "water_sports", SortBy: activitystore.SortPriceLow},
				activitystore.ScopeCustomer,
			))

			// assert
			require.NoError(t, err)
			require.Len(t, listed, 3)
			assert.Equal(t, []string{cheap.ID, middle.ID, expensive.ID}, []string{listed[0].ID, listed[1].ID, listed[2].ID})
			assert.Len(t, listed[0].Images, 1)
			price, ok := listed[0].AdultPrice()
			assert.True(t, ok)
			assert.Equal(t, "25", price)

			// act
			bySlug, err := store.ActivityBySlug(ctx, "paddle-surf", activitystore.ScopeCustomer)

			// assert
			require.NoError(t, err)
			assert.Equal(t, cheap.ID, bySlug.ID)
			require.NotNil(t, bySlug.AvailableToday)
			assert.False(t, *bySlug.AvailableToday)

			// act
			draft := activitystore.StatusDraft
			_, err = store.UpdateActivity(ctx, middle.ID, activitystore.ActivityUpdate{Status: &draft})
			require.NoError(t, err)
			counts, err := store.CountByStatus(ctx)

			// assert
			require.NoError(t, err)
			assert.Equal(t, activitystore.StatusCounts{Total: 4, Active: 3, Draft: 1}, counts)

			// act
			err = store.DeleteActivity(ctx, expensive.ID)

			// assert
			require.NoError(t, err)
			_, err = store.ActivityByID(ctx, expensive.ID, activitystore.ScopeAdmin)
			assert.ErrorIs(t, err, activitystore.ErrActivityNotFound)
		})
	}
}
