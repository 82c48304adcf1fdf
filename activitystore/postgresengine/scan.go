package postgresengine

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mallorca-activities/activitystore-go/activitystore"
	"github.com/mallorca-activities/activitystore-go/activitystore/postgresengine/internal/adapters"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// activityRow receives the columns produced by activityColumns.
type activityRow struct {
	activity      activitystore.Activity
	category      string
	status        string
	includedItems string
	excludedItems string
	whatToBring   string
}

func (r *activityRow) dest() []any {
	a := &r.activity

	return []any{
		&a.ID,
		&a.Slug,
		&a.Title,
		&a.ShortDescription,
		&a.Description,
		&r.category,
		&a.Location,
		&a.MeetingPoint,
		&a.Latitude,
		&a.Longitude,
		&a.DurationMinutes,
		&a.MinParticipants,
		&a.MaxParticipants,
		&a.MinAge,
		&a.MaxAge,
		&r.includedItems,
		&r.excludedItems,
		&r.whatToBring,
		&a.CancellationPolicy,
		&a.SafetyRequirements,
		&a.WeatherDependent,
		&a.InstantConfirmation,
		&r.status,
		&a.Featured,
		&a.AvgRating,
		&a.TotalReviews,
		&a.TotalBookings,
		&a.VideoURL,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
}

func (r *activityRow) toActivity() (activitystore.Activity, error) {
	a := r.activity
	a.Category = activitystore.Category(r.category)
	a.Status = activitystore.Status(r.status)

	for _, col := range []struct {
		raw    string
		target *[]string
	}{
		{raw: r.includedItems, target: &a.IncludedItems},
		{raw: r.excludedItems, target: &a.ExcludedItems},
		{raw: r.whatToBring, target: &a.WhatToBring},
	} {
		items, err := decodeTextArray(col.raw)
		if err != nil {
			return activitystore.Activity{}, errors.Join(activitystore.ErrDecodingColumnFailed, err)
		}

		*col.target = items
	}

	return a, nil
}

func decodeTextArray(raw string) ([]string, error) {
	items := make([]string, 0)
	if raw == "" {
		return items, nil
	}

	if err := jsonAPI.UnmarshalFromString(raw, &items); err != nil {
		return nil, err
	}

	if items == nil {
		items = make([]string, 0)
	}

	return items, nil
}

// imageRow receives imageColumns; every column is nullable because of the LEFT JOIN.
type imageRow struct {
	id         *string
	activityID *string
	imageURL   *string
	altText    *string
	caption    *string
	isPrimary  *bool
	sortOrder  *int
	createdAt  *time.Time
}

func (r *imageRow) dest() []any {
	return []any{&r.id, &r.activityID, &r.imageURL, &r.altText, &r.caption, &r.isPrimary, &r.sortOrder, &r.createdAt}
}

func (r *imageRow) toImage() *activitystore.ActivityImage {
	if r.id == nil {
		return nil
	}

	return &activitystore.ActivityImage{
		ID:         *r.id,
		ActivityID: deref(r.activityID),
		ImageURL:   deref(r.imageURL),
		AltText:    r.altText,
		Caption:    r.caption,
		IsPrimary:  deref(r.isPrimary),
		SortOrder:  deref(r.sortOrder),
		CreatedAt:  deref(r.createdAt),
	}
}

// pricingRow receives pricingColumns; every column is nullable because of the LEFT JOIN.
type pricingRow struct {
	id                 *string
	activityID         *string
	priceType          *string
	basePrice          *string
	currency           *string
	seasonalMultiplier *string
	validFrom          *string
	validUntil         *string
	isActive           *bool
}

func (r *pricingRow) dest() []any {
	return []any{
		&r.id, &r.activityID, &r.priceType, &r.basePrice, &r.currency,
		&r.seasonalMultiplier, &r.validFrom, &r.validUntil, &r.isActive,
	}
}

func (r *pricingRow) toPricing() *activitystore.ActivityPricing {
	if r.id == nil {
		return nil
	}

	multiplier := deref(r.seasonalMultiplier)
	if multiplier == "" {
		multiplier = "1.00"
	}

	currency := deref(r.currency)
	if currency == "" {
		currency = "EUR"
	}

	return &activitystore.ActivityPricing{
		ID:                 *r.id,
		ActivityID:         deref(r.activityID),
		PriceType:          activitystore.PriceType(deref(r.priceType)),
		BasePrice:          deref(r.basePrice),
		Currency:           currency,
		SeasonalMultiplier: multiplier,
		ValidFrom:          r.validFrom,
		ValidUntil:         r.validUntil,
		IsActive:           deref(r.isActive),
	}
}

type availabilityRow struct {
	availability   activitystore.ActivityAvailability
	maxCapacity    *int
	availableSpots *int
	status         *string
}

func (r *availabilityRow) dest() []any {
	v := &r.availability

	return []any{
		&v.ID, &v.ActivityID, &v.Date, &v.TimeSlot, &r.maxCapacity,
		&r.availableSpots, &v.PriceOverride, &r.status, &v.WeatherStatus, &v.Notes,
	}
}

func (r *availabilityRow) toAvailability() activitystore.ActivityAvailability {
	v := r.availability
	v.MaxCapacity = deref(r.maxCapacity)
	v.AvailableSpots = deref(r.availableSpots)
	v.Status = deref(r.status)

	return v
}

// queryJoinedRows runs a list query and folds the joined rows into a Grouper.
func (s *Store) queryJoinedRows(ctx context.Context, sqlQuery string, action string) (*activitystore.Grouper, error) {
	rows, queryErr := s.executeQuery(ctx, sqlQuery, action)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	grouper := activitystore.NewGrouper(0)

	for rows.Next() {
		var (
			a   activityRow
			img imageRow
			p   pricingRow
		)

		dest := a.dest()
		dest = append(dest, img.dest()...)
		dest = append(dest, p.dest()...)

		if scanErr := rows.Scan(dest...); scanErr != nil {
			s.obs.LogError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(activitystore.ErrScanningDBRowFailed, scanErr)
		}

		activity, decodeErr := a.toActivity()
		if decodeErr != nil {
			s.obs.LogError(ctx, logMsgScanRowFailed, decodeErr)
			return nil, decodeErr
		}

		grouper.Add(activitystore.JoinedRow{Activity: activity, Image: img.toImage(), Pricing: p.toPricing()})
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		s.obs.LogError(ctx, logMsgDBQueryFailed, rowsErr)
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, rowsErr)
	}

	return grouper, nil
}

// queryActivity runs a single-activity statement; found is false when no row is returned.
func (s *Store) queryActivity(ctx context.Context, sqlQuery string) (activitystore.Activity, bool, error) {
	rows, queryErr := s.executeQuery(ctx, sqlQuery, logActionLookup)
	if queryErr != nil {
		return activitystore.Activity{}, false, queryErr
	}
	defer s.closeRows(ctx, rows)

	return s.scanSingleActivity(ctx, rows)
}

func (s *Store) scanSingleActivity(ctx context.Context, rows adapters.DBRows) (activitystore.Activity, bool, error) {
	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			s.obs.LogError(ctx, logMsgDBQueryFailed, rowsErr)
			return activitystore.Activity{}, false, errors.Join(activitystore.ErrQueryingActivitiesFailed, rowsErr)
		}

		return activitystore.Activity{}, false, nil
	}

	var a activityRow
	if scanErr := rows.Scan(a.dest()...); scanErr != nil {
		s.obs.LogError(ctx, logMsgScanRowFailed, scanErr)
		return activitystore.Activity{}, false, errors.Join(activitystore.ErrScanningDBRowFailed, scanErr)
	}

	activity, decodeErr := a.toActivity()
	if decodeErr != nil {
		s.obs.LogError(ctx, logMsgScanRowFailed, decodeErr)
		return activitystore.Activity{}, false, decodeErr
	}

	return activity, true, nil
}

func (s *Store) queryImages(ctx context.Context, activityIDs []string) ([]activitystore.ActivityImage, error) {
	sqlQuery, buildErr := s.buildImagesQuery(activityIDs)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		return nil, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery, logActionImages)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	images := make([]activitystore.ActivityImage, 0)

	for rows.Next() {
		var r imageRow
		if scanErr := rows.Scan(r.dest()...); scanErr != nil {
			s.obs.LogError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(activitystore.ErrScanningDBRowFailed, scanErr)
		}

		if img := r.toImage(); img != nil {
			images = append(images, *img)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, rowsErr)
	}

	return images, nil
}

func (s *Store) queryPricing(
	ctx context.Context,
	activityIDs []string,
	onlyActive bool,
) ([]activitystore.ActivityPricing, error) {

	sqlQuery, buildErr := s.buildPricingQuery(activityIDs, onlyActive)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		return nil, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery, logActionPricing)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	pricing := make([]activitystore.ActivityPricing, 0)

	for rows.Next() {
		var r pricingRow
		if scanErr := rows.Scan(r.dest()...); scanErr != nil {
			s.obs.LogError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(activitystore.ErrScanningDBRowFailed, scanErr)
		}

		if p := r.toPricing(); p != nil {
			pricing = append(pricing, *p)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, rowsErr)
	}

	return pricing, nil
}

func (s *Store) queryAvailability(
	ctx context.Context,
	activityID string,
	day time.Time,
) ([]activitystore.ActivityAvailability, error) {

	sqlQuery, buildErr := s.buildAvailabilityQuery(activityID, day)
	if buildErr != nil {
		s.logBuildError(ctx, buildErr)
		return nil, errors.Join(activitystore.ErrBuildingQueryFailed, buildErr)
	}

	rows, queryErr := s.executeQuery(ctx, sqlQuery, logActionAvailability)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	slots := make([]activitystore.ActivityAvailability, 0)

	for rows.Next() {
		var r availabilityRow
		if scanErr := rows.Scan(r.dest()...); scanErr != nil {
			s.obs.LogError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(activitystore.ErrScanningDBRowFailed, scanErr)
		}

		slots = append(slots, r.toAvailability())
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(activitystore.ErrQueryingActivitiesFailed, rowsErr)
	}

	return slots, nil
}
