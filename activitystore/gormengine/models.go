package gormengine

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const dateLayout = "2006-01-02"

// ActivityRecord maps one row of the activities table.
// listRow embeds it; gorm only maps the columns of exported embedded structs.
// Nullable columns with database defaults are pointers; the conversion applies the same defaults.
type ActivityRecord struct {
	ID                  string         `gorm:"column:id;primaryKey"`
	OperatorID          *string        `gorm:"column:operator_id"`
	Title               string         `gorm:"column:title"`
	Slug                string         `gorm:"column:slug"`
	ShortDescription    *string        `gorm:"column:short_description"`
	Description         *string        `gorm:"column:description"`
	Category            string         `gorm:"column:category"`
	Location            string         `gorm:"column:location"`
	MeetingPoint        *string        `gorm:"column:meeting_point"`
	Latitude            *string        `gorm:"column:latitude"`
	Longitude           *string        `gorm:"column:longitude"`
	DurationMinutes     int            `gorm:"column:duration_minutes"`
	MinParticipants     *int           `gorm:"column:min_participants"`
	MaxParticipants     int            `gorm:"column:max_participants"`
	MinAge              *int           `gorm:"column:min_age"`
	MaxAge              *int           `gorm:"column:max_age"`
	IncludedItems       pq.StringArray `gorm:"column:included_items;type:text[]"`
	ExcludedItems       pq.StringArray `gorm:"column:excluded_items;type:text[]"`
	WhatToBring         pq.StringArray `gorm:"column:what_to_bring;type:text[]"`
	CancellationPolicy  *string        `gorm:"column:cancellation_policy"`
	SafetyRequirements  *string        `gorm:"column:safety_requirements"`
	WeatherDependent    *bool          `gorm:"column:weather_dependent"`
	InstantConfirmation *bool          `gorm:"column:instant_confirmation"`
	Status              string         `gorm:"column:status"`
	Featured            *bool          `gorm:"column:featured"`
	AvgRating           *string        `gorm:"column:avg_rating"`
	TotalReviews        *int           `gorm:"column:total_reviews"`
	TotalBookings       *int           `gorm:"column:total_bookings"`
	VideoURL            *string        `gorm:"column:video_url"`
	CreatedAt           time.Time      `gorm:"column:created_at"`
	UpdatedAt           time.Time      `gorm:"column:updated_at"`
}

func (r ActivityRecord) toActivity() activitystore.Activity {
	return activitystore.Activity{
		ID:                  r.ID,
		Slug:                r.Slug,
		Title:               r.Title,
		ShortDescription:    r.ShortDescription,
		Description:         r.Description,
		Category:            activitystore.Category(r.Category),
		Location:            r.Location,
		MeetingPoint:        r.MeetingPoint,
		Latitude:            r.Latitude,
		Longitude:           r.Longitude,
		DurationMinutes:     r.DurationMinutes,
		MinParticipants:     valueOr(r.MinParticipants, 1),
		MaxParticipants:     r.MaxParticipants,
		MinAge:              r.MinAge,
		MaxAge:              r.MaxAge,
		IncludedItems:       items(r.IncludedItems),
		ExcludedItems:       items(r.ExcludedItems),
		WhatToBring:         items(r.WhatToBring),
		CancellationPolicy:  r.CancellationPolicy,
		SafetyRequirements:  r.SafetyRequirements,
		WeatherDependent:    valueOr(r.WeatherDependent, false),
		InstantConfirmation: valueOr(r.InstantConfirmation, true),
		Status:              activitystore.Status(r.Status),
		Featured:            valueOr(r.Featured, false),
		AvgRating:           valueOr(r.AvgRating, "0"),
		TotalReviews:        valueOr(r.TotalReviews, 0),
		TotalBookings:       valueOr(r.TotalBookings, 0),
		VideoURL:            r.VideoURL,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func newActivityRecord(a activitystore.NewActivity, now time.Time) ActivityRecord {
	status := a.Status
	if status == "" {
		status = activitystore.StatusDraft
	}

	return ActivityRecord{
		ID:                  a.ID,
		OperatorID:          a.OperatorID,
		Title:               a.Title,
		Slug:                a.Slug,
		ShortDescription:    a.ShortDescription,
		Description:         a.Description,
		Category:            string(a.Category),
		Location:            a.Location,
		MeetingPoint:        a.MeetingPoint,
		Latitude:            a.Latitude,
		Longitude:           a.Longitude,
		DurationMinutes:     a.DurationMinutes,
		MinParticipants:     ptr(max(a.MinParticipants, 1)),
		MaxParticipants:     a.MaxParticipants,
		MinAge:              a.MinAge,
		MaxAge:              a.MaxAge,
		IncludedItems:       stringArray(a.IncludedItems),
		ExcludedItems:       stringArray(a.ExcludedItems),
		WhatToBring:         stringArray(a.WhatToBring),
		CancellationPolicy:  a.CancellationPolicy,
		SafetyRequirements:  a.SafetyRequirements,
		WeatherDependent:    ptr(a.WeatherDependent),
		InstantConfirmation: ptr(a.InstantConfirmation),
		Status:              string(status),
		Featured:            ptr(a.Featured),
		AvgRating:           ptr("0"),
		TotalReviews:        ptr(0),
		TotalBookings:       ptr(0),
		VideoURL:            a.VideoURL,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// updateColumns returns the column map of the non-nil fields of an update.
func updateColumns(u activitystore.ActivityUpdate, now time.Time) map[string]any {
	columns := map[string]any{"updated_at": now}

	setIf := func(col string, v any, present bool) {
		if present {
			columns[col] = v
		}
	}

	setIf("title", deref(u.Title), u.Title != nil)
	setIf("slug", deref(u.Slug), u.Slug != nil)
	setIf("short_description", deref(u.ShortDescription), u.ShortDescription != nil)
	setIf("description", deref(u.Description), u.Description != nil)
	setIf("category", string(deref(u.Category)), u.Category != nil)
	setIf("location", deref(u.Location), u.Location != nil)
	setIf("meeting_point", deref(u.MeetingPoint), u.MeetingPoint != nil)
	setIf("duration_minutes", deref(u.DurationMinutes), u.DurationMinutes != nil)
	setIf("max_participants", deref(u.MaxParticipants), u.MaxParticipants != nil)
	setIf("status", string(deref(u.Status)), u.Status != nil)
	setIf("featured", deref(u.Featured), u.Featured != nil)
	setIf("weather_dependent", deref(u.WeatherDependent), u.WeatherDependent != nil)
	setIf("instant_confirmation", deref(u.InstantConfirmation), u.InstantConfirmation != nil)
	setIf("video_url", deref(u.VideoURL), u.VideoURL != nil)

	if u.IncludedItems != nil {
		columns["included_items"] = stringArray(*u.IncludedItems)
	}

	return columns
}

type imageRecord struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ActivityID string    `gorm:"column:activity_id"`
	ImageURL   string    `gorm:"column:image_url"`
	AltText    *string   `gorm:"column:alt_text"`
	Caption    *string   `gorm:"column:caption"`
	IsPrimary  *bool     `gorm:"column:is_primary"`
	SortOrder  *int      `gorm:"column:sort_order"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (r imageRecord) toImage() activitystore.ActivityImage {
	return activitystore.ActivityImage{
		ID:         r.ID,
		ActivityID: r.ActivityID,
		ImageURL:   r.ImageURL,
		AltText:    r.AltText,
		Caption:    r.Caption,
		IsPrimary:  valueOr(r.IsPrimary, false),
		SortOrder:  valueOr(r.SortOrder, 0),
		CreatedAt:  r.CreatedAt,
	}
}

type pricingRecord struct {
	ID                 string          `gorm:"column:id;primaryKey"`
	ActivityID         string          `gorm:"column:activity_id"`
	PriceType          string          `gorm:"column:price_type"`
	BasePrice          string          `gorm:"column:base_price"`
	SeasonalMultiplier *string         `gorm:"column:seasonal_multiplier"`
	Currency           *string         `gorm:"column:currency"`
	ValidFrom          *datatypes.Date `gorm:"column:valid_from"`
	ValidUntil         *datatypes.Date `gorm:"column:valid_until"`
	IsActive           *bool           `gorm:"column:is_active"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
}

func (r pricingRecord) toPricing() activitystore.ActivityPricing {
	return activitystore.ActivityPricing{
		ID:                 r.ID,
		ActivityID:         r.ActivityID,
		PriceType:          activitystore.PriceType(r.PriceType),
		BasePrice:          r.BasePrice,
		Currency:           valueOr(r.Currency, "EUR"),
		SeasonalMultiplier: valueOr(r.SeasonalMultiplier, "1.00"),
		ValidFrom:          formatDate(r.ValidFrom),
		ValidUntil:         formatDate(r.ValidUntil),
		IsActive:           valueOr(r.IsActive, true),
	}
}

type availabilityRecord struct {
	ID             string         `gorm:"column:id;primaryKey"`
	ActivityID     string         `gorm:"column:activity_id"`
	Date           datatypes.Date `gorm:"column:date"`
	TimeSlot       *string        `gorm:"column:time_slot"`
	MaxCapacity    int            `gorm:"column:max_capacity"`
	AvailableSpots int            `gorm:"column:available_spots"`
	PriceOverride  *string        `gorm:"column:price_override"`
	Status         string         `gorm:"column:status"`
	WeatherStatus  *string        `gorm:"column:weather_status"`
	Notes          *string        `gorm:"column:notes"`
}

func (r availabilityRecord) toAvailability() activitystore.ActivityAvailability {
	return activitystore.ActivityAvailability{
		ID:             r.ID,
		ActivityID:     r.ActivityID,
		Date:           time.Time(r.Date).Format(dateLayout),
		TimeSlot:       r.TimeSlot,
		MaxCapacity:    r.MaxCapacity,
		AvailableSpots: r.AvailableSpots,
		PriceOverride:  r.PriceOverride,
		Status:         r.Status,
		WeatherStatus:  r.WeatherStatus,
		Notes:          r.Notes,
	}
}

// listRow is one row of the list-view join: the activity plus at most one primary image and one active adult price.
type listRow struct {
	ActivityRecord

	ImgID         *string         `gorm:"column:img_id"`
	ImgImageURL   *string         `gorm:"column:img_image_url"`
	ImgAltText    *string         `gorm:"column:img_alt_text"`
	ImgCaption    *string         `gorm:"column:img_caption"`
	ImgIsPrimary  *bool           `gorm:"column:img_is_primary"`
	ImgSortOrder  *int            `gorm:"column:img_sort_order"`
	ImgCreatedAt  *time.Time      `gorm:"column:img_created_at"`
	PrcID         *string         `gorm:"column:prc_id"`
	PrcPriceType  *string         `gorm:"column:prc_price_type"`
	PrcBasePrice  *string         `gorm:"column:prc_base_price"`
	PrcCurrency   *string         `gorm:"column:prc_currency"`
	PrcMultiplier *string         `gorm:"column:prc_seasonal_multiplier"`
	PrcValidFrom  *datatypes.Date `gorm:"column:prc_valid_from"`
	PrcValidUntil *datatypes.Date `gorm:"column:prc_valid_until"`
	PrcIsActive   *bool           `gorm:"column:prc_is_active"`
}

func (r listRow) toJoinedRow() activitystore.JoinedRow {
	row := activitystore.JoinedRow{Activity: r.ActivityRecord.toActivity()}

	if r.ImgID != nil {
		row.Image = &activitystore.ActivityImage{
			ID:         *r.ImgID,
			ActivityID: r.ID,
			ImageURL:   deref(r.ImgImageURL),
			AltText:    r.ImgAltText,
			Caption:    r.ImgCaption,
			IsPrimary:  valueOr(r.ImgIsPrimary, false),
			SortOrder:  valueOr(r.ImgSortOrder, 0),
			CreatedAt:  deref(r.ImgCreatedAt),
		}
	}

	if r.PrcID != nil {
		row.Pricing = &activitystore.ActivityPricing{
			ID:                 *r.PrcID,
			ActivityID:         r.ID,
			PriceType:          activitystore.PriceType(deref(r.PrcPriceType)),
			BasePrice:          deref(r.PrcBasePrice),
			Currency:           valueOr(r.PrcCurrency, "EUR"),
			SeasonalMultiplier: valueOr(r.PrcMultiplier, "1.00"),
			ValidFrom:          formatDate(r.PrcValidFrom),
			ValidUntil:         formatDate(r.PrcValidUntil),
			IsActive:           valueOr(r.PrcIsActive, true),
		}
	}

	return row
}

type statusCount struct {
	Status string `gorm:"column:status"`
	N      int    `gorm:"column:n"`
}

func formatDate(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}

	formatted := time.Time(*d).Format(dateLayout)

	return &formatted
}

func stringArray(items []string) pq.StringArray {
	if items == nil {
		return pq.StringArray{}
	}

	return pq.StringArray(items)
}

func items(arr pq.StringArray) []string {
	if arr == nil {
		return []string{}
	}

	return []string(arr)
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}

	return *p
}

func deref[T any](p *T) T {
	var zero T

	return valueOr(p, zero)
}

func ptr[T any](v T) *T {
	return &v
}
