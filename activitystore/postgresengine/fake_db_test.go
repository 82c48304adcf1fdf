package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/postgresengine/internal/adapters"
)

// fakeDB answers statements by matching a fragment of the SQL text.
type fakeDB struct {
	mu         sync.Mutex
	statements []string
	answers    []fakeAnswer
	execRows   int64
	execErr    error
}

type fakeAnswer struct {
	fragment string
	rows     [][]any
	err      error
}

func newFakeDB() *fakeDB {
	return &fakeDB{}
}

// answer registers rows for statements containing fragment. The first matching answer wins.
func (f *fakeDB) answer(fragment string, rows ...[]any) *fakeDB {
	f.answers = append(f.answers, fakeAnswer{fragment: fragment, rows: rows})
	return f
}

func (f *fakeDB) fail(fragment string, err error) *fakeDB {
	f.answers = append(f.answers, fakeAnswer{fragment: fragment, err: err})
	return f
}

func (f *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statements = append(f.statements, query)

	for _, a := range f.answers {
		if strings.Contains(query, a.fragment) {
			if a.err != nil {
				return nil, a.err
			}

			return &fakeRows{rows: a.rows, idx: -1}, nil
		}
	}

	return &fakeRows{idx: -1}, nil
}

func (f *fakeDB) QueryPrimary(ctx context.Context, query string) (adapters.DBRows, error) {
	return f.Query(ctx, query)
}

func (f *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statements = append(f.statements, query)
	if f.execErr != nil {
		return nil, f.execErr
	}

	return fakeResult(f.execRows), nil
}

func (f *fakeDB) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.statements...)
}

func (f *fakeDB) statementContaining(fragment string) string {
	for _, s := range f.recorded() {
		if strings.Contains(s, fragment) {
			return s
		}
	}

	return ""
}

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

// Scan assigns values like database/sql does for the destination kinds used by the store,
// including NULL into pointer destinations.
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(row) != len(dest) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}

	for i, v := range row {
		target := reflect.ValueOf(dest[i]).Elem()

		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}

		value := reflect.ValueOf(v)

		switch {
		case value.Type().AssignableTo(target.Type()):
			target.Set(value)
		case target.Kind() == reflect.Ptr && value.Type().AssignableTo(target.Type().Elem()):
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(value)
			target.Set(p)
		default:
			return fmt.Errorf("column %d: cannot assign %T to %s", i, v, target.Type())
		}
	}

	return nil
}

func (r *fakeRows) Err() error {
	return nil
}

func (r *fakeRows) Close() error {
	return nil
}

var errFakeConnectionLost = errors.New("connection lost")

/***** row builders in column order *****/

func activityValues(a activitystore.Activity) []any {
	arr := func(items []string) string {
		raw, _ := jsonAPI.MarshalToString(items)
		return raw
	}

	return []any{
		a.ID, a.Slug, a.Title, a.ShortDescription, a.Description, string(a.Category), a.Location,
		a.MeetingPoint, a.Latitude, a.Longitude, a.DurationMinutes, a.MinParticipants, a.MaxParticipants,
		a.MinAge, a.MaxAge, arr(a.IncludedItems), arr(a.ExcludedItems), arr(a.WhatToBring),
		a.CancellationPolicy, a.SafetyRequirements, a.WeatherDependent, a.InstantConfirmation,
		string(a.Status), a.Featured, a.AvgRating, a.TotalReviews, a.TotalBookings, a.VideoURL,
		a.CreatedAt, a.UpdatedAt,
	}
}

func imageValues(img *activitystore.ActivityImage) []any {
	if img == nil {
		return []any{nil, nil, nil, nil, nil, nil, nil, nil}
	}

	return []any{img.ID, img.ActivityID, img.ImageURL, img.AltText, img.Caption, img.IsPrimary, img.SortOrder, img.CreatedAt}
}

func pricingValues(p *activitystore.ActivityPricing) []any {
	if p == nil {
		return []any{nil, nil, nil, nil, nil, nil, nil, nil, nil}
	}

	return []any{
		p.ID, p.ActivityID, string(p.PriceType), p.BasePrice, p.Currency,
		p.SeasonalMultiplier, p.ValidFrom, p.ValidUntil, p.IsActive,
	}
}

func joinedValues(a activitystore.Activity, img *activitystore.ActivityImage, p *activitystore.ActivityPricing) []any {
	row := activityValues(a)
	row = append(row, imageValues(img)...)

	return append(row, pricingValues(p)...)
}

func availabilityValues(v activitystore.ActivityAvailability) []any {
	return []any{
		v.ID, v.ActivityID, v.Date, v.TimeSlot, v.MaxCapacity,
		v.AvailableSpots, v.PriceOverride, v.Status, v.WeatherStatus, v.Notes,
	}
}
