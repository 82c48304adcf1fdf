package restengine

import (
	"strconv"
	"strings"
	"time"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

const dateLayout = "2006-01-02"

// decimal keeps a numeric JSON value as its literal text, so no precision is lost on the way.
type decimal string

func (d *decimal) UnmarshalJSON(b []byte) error {
	raw := string(b)
	if raw == "null" {
		*d = ""
		return nil
	}

	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}

	*d = decimal(raw)

	return nil
}

// timestamp accepts timestamptz values as well as timestamps without zone, which PostgREST renders without offset.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02T15:04:05.999999-07",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "null" || raw == "" {
		t.Time = time.Time{}
		return nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed
			return nil
		}

		lastErr = err
	}

	return lastErr
}

// activityRow is one element of a /activities response, optionally with embedded children.
type activityRow struct {
	ID                  string       `json:"id"`
	OperatorID          *string      `json:"operator_id"`
	Title               string       `json:"title"`
	Slug                string       `json:"slug"`
	ShortDescription    *string      `json:"short_description"`
	Description         *string      `json:"description"`
	Category            string       `json:"category"`
	Location            string       `json:"location"`
	MeetingPoint        *string      `json:"meeting_point"`
	Latitude            *decimal     `json:"latitude"`
	Longitude           *decimal     `json:"longitude"`
	DurationMinutes     int          `json:"duration_minutes"`
	MinParticipants     *int         `json:"min_participants"`
	MaxParticipants     int          `json:"max_participants"`
	MinAge              *int         `json:"min_age"`
	MaxAge              *int         `json:"max_age"`
	IncludedItems       []string     `json:"included_items"`
	ExcludedItems       []string     `json:"excluded_items"`
	WhatToBring         []string     `json:"what_to_bring"`
	CancellationPolicy  *string      `json:"cancellation_policy"`
	SafetyRequirements  *string      `json:"safety_requirements"`
	WeatherDependent    *bool        `json:"weather_dependent"`
	InstantConfirmation *bool        `json:"instant_confirmation"`
	Status              string       `json:"status"`
	Featured            *bool        `json:"featured"`
	AvgRating           *decimal     `json:"avg_rating"`
	TotalReviews        *int         `json:"total_reviews"`
	TotalBookings       *int         `json:"total_bookings"`
	VideoURL            *string      `json:"video_url"`
	CreatedAt           timestamp    `json:"created_at"`
	UpdatedAt           timestamp    `json:"updated_at"`
	Images              []imageRow   `json:"activity_images"`
	Pricing             []pricingRow `json:"activity_pricing"`
}

func (r activityRow) toActivity() activitystore.Activity {
	return activitystore.Activity{
		ID:                  r.ID,
		Slug:                r.Slug,
		Title:               r.Title,
		ShortDescription:    r.ShortDescription,
		Description:         r.Description,
		Category:            activitystore.Category(r.Category),
		Location:            r.Location,
		MeetingPoint:        r.MeetingPoint,
		Latitude:            decimalPtr(r.Latitude),
		Longitude:           decimalPtr(r.Longitude),
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
		AvgRating:           string(valueOr(r.AvgRating, "0")),
		TotalReviews:        valueOr(r.TotalReviews, 0),
		TotalBookings:       valueOr(r.TotalBookings, 0),
		VideoURL:            r.VideoURL,
		CreatedAt:           r.CreatedAt.Time,
		UpdatedAt:           r.UpdatedAt.Time,
	}
}

type imageRow struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	ImageURL   string    `json:"image_url"`
	AltText    *string   `json:"alt_text"`
	Caption    *string   `json:"caption"`
	IsPrimary  *bool     `json:"is_primary"`
	SortOrder  *int      `json:"sort_order"`
	CreatedAt  timestamp `json:"created_at"`
}

func (r imageRow) toImage() activitystore.ActivityImage {
	return activitystore.ActivityImage{
		ID:         r.ID,
		ActivityID: r.ActivityID,
		ImageURL:   r.ImageURL,
		AltText:    r.AltText,
		Caption:    r.Caption,
		IsPrimary:  valueOr(r.IsPrimary, false),
		SortOrder:  valueOr(r.SortOrder, 0),
		CreatedAt:  r.CreatedAt.Time,
	}
}

type pricingRow struct {
	ID                 string   `json:"id"`
	ActivityID         string   `json:"activity_id"`
	PriceType          string   `json:"price_type"`
	BasePrice          decimal  `json:"base_price"`
	SeasonalMultiplier *decimal `json:"seasonal_multiplier"`
	Currency           *string  `json:"currency"`
	ValidFrom          *string  `json:"valid_from"`
	ValidUntil         *string  `json:"valid_until"`
	IsActive           *bool    `json:"is_active"`
}

func (r pricingRow) toPricing() activitystore.ActivityPricing {
	return activitystore.ActivityPricing{
		ID:                 r.ID,
		ActivityID:         r.ActivityID,
		PriceType:          activitystore.PriceType(r.PriceType),
		BasePrice:          string(r.BasePrice),
		Currency:           valueOr(r.Currency, "EUR"),
		SeasonalMultiplier: string(valueOr(r.SeasonalMultiplier, "1.00")),
		ValidFrom:          r.ValidFrom,
		ValidUntil:         r.ValidUntil,
		IsActive:           valueOr(r.IsActive, true),
	}
}

type availabilityRow struct {
	ID             string   `json:"id"`
	ActivityID     string   `json:"activity_id"`
	Date           string   `json:"date"`
	TimeSlot       *string  `json:"time_slot"`
	MaxCapacity    int      `json:"max_capacity"`
	AvailableSpots int      `json:"available_spots"`
	PriceOverride  *decimal `json:"price_override"`
	Status         string   `json:"status"`
	WeatherStatus  *string  `json:"weather_status"`
	Notes          *string  `json:"notes"`
}

func (r availabilityRow) toAvailability() activitystore.ActivityAvailability {
	return activitystore.ActivityAvailability{
		ID:             r.ID,
		ActivityID:     r.ActivityID,
		Date:           r.Date,
		TimeSlot:       r.TimeSlot,
		MaxCapacity:    r.MaxCapacity,
		AvailableSpots: r.AvailableSpots,
		PriceOverride:  decimalPtr(r.PriceOverride),
		Status:         r.Status,
		WeatherStatus:  r.WeatherStatus,
		Notes:          r.Notes,
	}
}

type statusRow struct {
	Status string `json:"status"`
}

/***** write payloads *****/

type activityPayload struct {
	ID                  string    `json:"id"`
	OperatorID          *string   `json:"operator_id,omitempty"`
	Title               string    `json:"title"`
	Slug                string    `json:"slug"`
	ShortDescription    *string   `json:"short_description,omitempty"`
	Description         *string   `json:"description,omitempty"`
	Category            string    `json:"category"`
	Location            string    `json:"location"`
	MeetingPoint        *string   `json:"meeting_point,omitempty"`
	Latitude            *string   `json:"latitude,omitempty"`
	Longitude           *string   `json:"longitude,omitempty"`
	DurationMinutes     int       `json:"duration_minutes"`
	MinParticipants     int       `json:"min_participants"`
	MaxParticipants     int       `json:"max_participants"`
	MinAge              *int      `json:"min_age,omitempty"`
	MaxAge              *int      `json:"max_age,omitempty"`
	IncludedItems       []string  `json:"included_items"`
	ExcludedItems       []string  `json:"excluded_items"`
	WhatToBring         []string  `json:"what_to_bring"`
	CancellationPolicy  *string   `json:"cancellation_policy,omitempty"`
	SafetyRequirements  *string   `json:"safety_requirements,omitempty"`
	WeatherDependent    bool      `json:"weather_dependent"`
	InstantConfirmation bool      `json:"instant_confirmation"`
	Status              string    `json:"status"`
	Featured            bool      `json:"featured"`
	VideoURL            *string   `json:"video_url,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func newActivityPayload(a activitystore.NewActivity, now time.Time) activityPayload {
	status := a.Status
	if status == "" {
		status = activitystore.StatusDraft
	}

	return activityPayload{
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
		MinParticipants:     max(a.MinParticipants, 1),
		MaxParticipants:     a.MaxParticipants,
		MinAge:              a.MinAge,
		MaxAge:              a.MaxAge,
		IncludedItems:       items(a.IncludedItems),
		ExcludedItems:       items(a.ExcludedItems),
		WhatToBring:         items(a.WhatToBring),
		CancellationPolicy:  a.CancellationPolicy,
		SafetyRequirements:  a.SafetyRequirements,
		WeatherDependent:    a.WeatherDependent,
		InstantConfirmation: a.InstantConfirmation,
		Status:              string(status),
		Featured:            a.Featured,
		VideoURL:            a.VideoURL,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}
}

// updatePayload returns the snake_case body of a PATCH with the non-nil fields of an update.
func updatePayload(u activitystore.ActivityUpdate, now time.Time) map[string]any {
	body := map[string]any{"updated_at": now.UTC()}

	setIf := func(key string, v any, present bool) {
		if present {
			body[key] = v
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
		body["included_items"] = items(*u.IncludedItems)
	}

	return body
}

type imagePayload struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	ImageURL   string    `json:"image_url"`
	AltText    *string   `json:"alt_text,omitempty"`
	Caption    *string   `json:"caption,omitempty"`
	IsPrimary  bool      `json:"is_primary"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
}

/***** helpers *****/

func decimalPtr(d *decimal) *string {
	if d == nil || *d == "" {
		return nil
	}

	s := string(*d)

	return &s
}

func items(arr []string) []string {
	if arr == nil {
		return []string{}
	}

	return arr
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}

	return *p
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}

	return *p
}
