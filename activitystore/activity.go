package activitystore

import (
	"slices"
	"time"
)

type Category string

const (
	CategoryWaterSports    Category = "water_sports"
	CategoryLandAdventures Category = "land_adventures"
	CategoryCultural       Category = "cultural"
	CategoryNightlife      Category = "nightlife"
	CategoryFamilyFun      Category = "family_fun"
	CategoryFoodWine       Category = "food_wine"
	CategoryDayTrips       Category = "day_trips"
)

// Categories lists every known category in display order.
func Categories() []Category {
	return []Category{
		CategoryWaterSports,
		CategoryLandAdventures,
		CategoryCultural,
		CategoryNightlife,
		CategoryFamilyFun,
		CategoryFoodWine,
		CategoryDayTrips,
	}
}

func (c Category) IsValid() bool {
	return slices.Contains(Categories(), c)
}

type Status string

const (
	StatusActive    Status = "active"
	StatusDraft     Status = "draft"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDraft, StatusInactive, StatusSuspended:
		return true
	default:
		return false
	}
}

type PriceType string

const (
	PriceTypeAdult  PriceType = "adult"
	PriceTypeChild  PriceType = "child"
	PriceTypeGroup  PriceType = "group"
	PriceTypeSenior PriceType = "senior"
	PriceTypeFamily PriceType = "family"
)

func (p PriceType) IsValid() bool {
	switch p {
	case PriceTypeAdult, PriceTypeChild, PriceTypeGroup, PriceTypeSenior, PriceTypeFamily:
		return true
	default:
		return false
	}
}

// Activity is a bookable tourism product.
// Decimal columns (ratings, coordinates) are carried as decimal strings exactly as the backend returns them.
type Activity struct {
	ID                  string    `json:"id" yaml:"id"`
	Slug                string    `json:"slug" yaml:"slug"`
	Title               string    `json:"title" yaml:"title"`
	ShortDescription    *string   `json:"shortDescription" yaml:"shortDescription"`
	Description         *string   `json:"description" yaml:"description"`
	Category            Category  `json:"category" yaml:"category"`
	Location            string    `json:"location" yaml:"location"`
	MeetingPoint        *string   `json:"meetingPoint" yaml:"meetingPoint"`
	Latitude            *string   `json:"latitude" yaml:"latitude"`
	Longitude           *string   `json:"longitude" yaml:"longitude"`
	DurationMinutes     int       `json:"durationMinutes" yaml:"durationMinutes"`
	MinParticipants     int       `json:"minParticipants" yaml:"minParticipants"`
	MaxParticipants     int       `json:"maxParticipants" yaml:"maxParticipants"`
	MinAge              *int      `json:"minAge" yaml:"minAge"`
	MaxAge              *int      `json:"maxAge" yaml:"maxAge"`
	IncludedItems       []string  `json:"includedItems" yaml:"includedItems"`
	ExcludedItems       []string  `json:"excludedItems" yaml:"excludedItems"`
	WhatToBring         []string  `json:"whatToBring" yaml:"whatToBring"`
	CancellationPolicy  *string   `json:"cancellationPolicy" yaml:"cancellationPolicy"`
	SafetyRequirements  *string   `json:"safetyRequirements" yaml:"safetyRequirements"`
	WeatherDependent    bool      `json:"weatherDependent" yaml:"weatherDependent"`
	InstantConfirmation bool      `json:"instantConfirmation" yaml:"instantConfirmation"`
	Status              Status    `json:"status" yaml:"status"`
	Featured            bool      `json:"featured" yaml:"featured"`
	AvgRating           string    `json:"avgRating" yaml:"avgRating"`
	TotalReviews        int       `json:"totalReviews" yaml:"totalReviews"`
	TotalBookings       int       `json:"totalBookings" yaml:"totalBookings"`
	VideoURL            *string   `json:"videoUrl" yaml:"videoUrl"`
	CreatedAt           time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// ActivityImage belongs to exactly one Activity.
type ActivityImage struct {
	ID         string    `json:"id" yaml:"id"`
	ActivityID string    `json:"activityId" yaml:"activityId"`
	ImageURL   string    `json:"imageUrl" yaml:"imageUrl"`
	AltText    *string   `json:"altText" yaml:"altText"`
	Caption    *string   `json:"caption" yaml:"caption"`
	IsPrimary  bool      `json:"isPrimary" yaml:"isPrimary"`
	SortOrder  int       `json:"sortOrder" yaml:"sortOrder"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
}

// ActivityPricing belongs to exactly one Activity. Only active rows are shown to customers.
type ActivityPricing struct {
	ID                 string    `json:"id" yaml:"id"`
	ActivityID         string    `json:"activityId" yaml:"activityId"`
	PriceType          PriceType `json:"priceType" yaml:"priceType"`
	BasePrice          string    `json:"basePrice" yaml:"basePrice"`
	Currency           string    `json:"currency" yaml:"currency"`
	SeasonalMultiplier string    `json:"seasonalMultiplier" yaml:"seasonalMultiplier"`
	ValidFrom          *string   `json:"validFrom" yaml:"validFrom"`
	ValidUntil         *string   `json:"validUntil" yaml:"validUntil"`
	IsActive           bool      `json:"isActive" yaml:"isActive"`
}

// ActivityAvailability is keyed by (ActivityID, Date, TimeSlot). Date is formatted as YYYY-MM-DD.
type ActivityAvailability struct {
	ID             string  `json:"id"`
	ActivityID     string  `json:"activityId"`
	Date           string  `json:"date"`
	TimeSlot       *string `json:"timeSlot"`
	MaxCapacity    int     `json:"maxCapacity"`
	AvailableSpots int     `json:"availableSpots"`
	PriceOverride  *string `json:"priceOverride"`
	Status         string  `json:"status"`
	WeatherStatus  *string `json:"weatherStatus"`
	Notes          *string `json:"notes"`
}

// ActivityWithDetails is the read-only composite returned to callers. It is never persisted.
type ActivityWithDetails struct {
	Activity       `yaml:",inline"`
	Images         []ActivityImage   `json:"images" yaml:"images"`
	Pricing        []ActivityPricing `json:"pricing" yaml:"pricing"`
	AvailableToday *bool             `json:"availableToday,omitempty" yaml:"availableToday,omitempty"`
	SpotsLeft      *int              `json:"spotsLeft,omitempty" yaml:"spotsLeft,omitempty"`
}

// AdultPrice returns the base price of the first active adult pricing row, if any.
func (a ActivityWithDetails) AdultPrice() (string, bool) {
	for _, p := range a.Pricing {
		if p.PriceType == PriceTypeAdult && p.IsActive {
			return p.BasePrice, true
		}
	}

	return "", false
}

// Clone returns a deep copy so that callers can never mutate shared records.
func (a ActivityWithDetails) Clone() ActivityWithDetails {
	c := a
	c.ShortDescription = clonePtr(a.ShortDescription)
	c.Description = clonePtr(a.Description)
	c.MeetingPoint = clonePtr(a.MeetingPoint)
	c.Latitude = clonePtr(a.Latitude)
	c.Longitude = clonePtr(a.Longitude)
	c.MinAge = clonePtr(a.MinAge)
	c.MaxAge = clonePtr(a.MaxAge)
	c.CancellationPolicy = clonePtr(a.CancellationPolicy)
	c.SafetyRequirements = clonePtr(a.SafetyRequirements)
	c.VideoURL = clonePtr(a.VideoURL)
	c.IncludedItems = slices.Clone(a.IncludedItems)
	c.ExcludedItems = slices.Clone(a.ExcludedItems)
	c.WhatToBring = slices.Clone(a.WhatToBring)
	c.AvailableToday = clonePtr(a.AvailableToday)
	c.SpotsLeft = clonePtr(a.SpotsLeft)

	c.Images = make([]ActivityImage, len(a.Images))
	for i, img := range a.Images {
		img.AltText = clonePtr(img.AltText)
		img.Caption = clonePtr(img.Caption)
		c.Images[i] = img
	}

	c.Pricing = make([]ActivityPricing, len(a.Pricing))
	for i, p := range a.Pricing {
		p.ValidFrom = clonePtr(p.ValidFrom)
		p.ValidUntil = clonePtr(p.ValidUntil)
		c.Pricing[i] = p
	}

	return c
}

// ApplyAvailability computes AvailableToday and SpotsLeft from today's availability rows.
// AvailableToday is true if any slot has spots left; SpotsLeft is the sum, or nil when zero.
func (a *ActivityWithDetails) ApplyAvailability(today []ActivityAvailability) {
	available := false
	spots := 0

	for _, slot := range today {
		if slot.AvailableSpots > 0 {
			available = true
			spots += slot.AvailableSpots
		}
	}

	a.AvailableToday = &available
	a.SpotsLeft = nil
	if spots > 0 {
		a.SpotsLeft = &spots
	}
}

// StatusCounts holds the number of activities per status.
type StatusCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Draft     int `json:"draft"`
	Inactive  int `json:"inactive"`
	Suspended int `json:"suspended"`
}

// Add increments the counter for the given status and the total.
func (sc *StatusCounts) Add(status Status, n int) {
	sc.Total += n

	switch status {
	case StatusActive:
		sc.Active += n
	case StatusDraft:
		sc.Draft += n
	case StatusInactive:
		sc.Inactive += n
	case StatusSuspended:
		sc.Suspended += n
	}
}

// NewActivity is the write model for creating an activity.
type NewActivity struct {
	ID                  string   `json:"-"`
	OperatorID          *string  `json:"operatorId" validate:"omitempty,uuid"`
	Title               string   `json:"title" validate:"required,min=3,max=200"`
	Slug                string   `json:"slug" validate:"omitempty,max=200"`
	ShortDescription    *string  `json:"shortDescription" validate:"omitempty,max=500"`
	Description         *string  `json:"description"`
	Category            Category `json:"category" validate:"required,activity_category"`
	Location            string   `json:"location" validate:"required,max=200"`
	MeetingPoint        *string  `json:"meetingPoint"`
	Latitude            *string  `json:"latitude" validate:"omitempty,latitude"`
	Longitude           *string  `json:"longitude" validate:"omitempty,longitude"`
	DurationMinutes     int      `json:"durationMinutes" validate:"required,gt=0"`
	MinParticipants     int      `json:"minParticipants" validate:"gte=0"`
	MaxParticipants     int      `json:"maxParticipants" validate:"required,gt=0,gtefield=MinParticipants"`
	MinAge              *int     `json:"minAge" validate:"omitempty,gte=0"`
	MaxAge              *int     `json:"maxAge" validate:"omitempty,gte=0"`
	IncludedItems       []string `json:"includedItems"`
	ExcludedItems       []string `json:"excludedItems"`
	WhatToBring         []string `json:"whatToBring"`
	CancellationPolicy  *string  `json:"cancellationPolicy"`
	SafetyRequirements  *string  `json:"safetyRequirements"`
	WeatherDependent    bool     `json:"weatherDependent"`
	InstantConfirmation bool     `json:"instantConfirmation"`
	Status              Status   `json:"status" validate:"omitempty,activity_status"`
	Featured            bool     `json:"featured"`
	VideoURL            *string  `json:"videoUrl" validate:"omitempty,url"`
}

// ActivityUpdate is the write model for partial updates; only non-nil fields are written.
type ActivityUpdate struct {
	Title               *string   `json:"title" validate:"omitempty,min=3,max=200"`
	Slug                *string   `json:"slug" validate:"omitempty,max=200"`
	ShortDescription    *string   `json:"shortDescription" validate:"omitempty,max=500"`
	Description         *string   `json:"description"`
	Category            *Category `json:"category" validate:"omitempty,activity_category"`
	Location            *string   `json:"location" validate:"omitempty,max=200"`
	MeetingPoint        *string   `json:"meetingPoint"`
	DurationMinutes     *int      `json:"durationMinutes" validate:"omitempty,gt=0"`
	MaxParticipants     *int      `json:"maxParticipants" validate:"omitempty,gt=0"`
	Status              *Status   `json:"status" validate:"omitempty,activity_status"`
	Featured            *bool     `json:"featured"`
	WeatherDependent    *bool     `json:"weatherDependent"`
	InstantConfirmation *bool     `json:"instantConfirmation"`
	IncludedItems       *[]string `json:"includedItems"`
	VideoURL            *string   `json:"videoUrl" validate:"omitempty,url"`
}

// IsEmpty reports whether the update carries no fields.
func (u ActivityUpdate) IsEmpty() bool {
	return u.Title == nil && u.Slug == nil && u.ShortDescription == nil && u.Description == nil &&
		u.Category == nil && u.Location == nil && u.MeetingPoint == nil && u.DurationMinutes == nil &&
		u.MaxParticipants == nil && u.Status == nil && u.Featured == nil && u.WeatherDependent == nil &&
		u.InstantConfirmation == nil && u.IncludedItems == nil && u.VideoURL == nil
}

// NewActivityImage is the write model for attaching an image to an activity.
type NewActivityImage struct {
	ID         string  `json:"-"`
	ActivityID string  `json:"activityId" validate:"required"`
	ImageURL   string  `json:"imageUrl" validate:"required,url"`
	AltText    *string `json:"altText" validate:"omitempty,max=300"`
	Caption    *string `json:"caption" validate:"omitempty,max=500"`
	IsPrimary  bool    `json:"isPrimary"`
	SortOrder  int     `json:"sortOrder" validate:"gte=0"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}
