package helper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mallorca-activities/activitystore-go/activitystore"
)

func GivenUniqueID(t testing.TB) string {
	id, err := uuid.NewV7()
	assert.NoError(t, err, "error in arranging test data")

	return id.String()
}

func ptr[T any](v T) *T {
	return &v
}

// FixtureActivity builds an active activity with one primary image and one adult price.
func FixtureActivity(id, slug, title string, category activitystore.Category, adultPrice string) activitystore.ActivityWithDetails {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	a := activitystore.ActivityWithDetails{
		Activity: activitystore.Activity{
			ID:                  id,
			Slug:                slug,
			Title:               title,
			ShortDescription:    ptr("Short description of " + title),
			Category:            category,
			Location:            "Palma",
			DurationMinutes:     120,
			MinParticipants:     1,
			MaxParticipants:     10,
			IncludedItems:       []string{},
			ExcludedItems:       []string{},
			WhatToBring:         []string{},
			InstantConfirmation: true,
			Status:              activitystore.StatusActive,
			AvgRating:           "4.50",
			CreatedAt:           created,
			UpdatedAt:           created,
		},
		Images: []activitystore.ActivityImage{{
			ID:         id + "-img",
			ActivityID: id,
			ImageURL:   "https://images.example.com/" + slug + ".jpg",
			IsPrimary:  true,
			CreatedAt:  created,
		}},
		Pricing: []activitystore.ActivityPricing{},
	}

	if adultPrice != "" {
		a.Pricing = append(a.Pricing, activitystore.ActivityPricing{
			ID:                 id + "-adult",
			ActivityID:         id,
			PriceType:          activitystore.PriceTypeAdult,
			BasePrice:          adultPrice,
			Currency:           "EUR",
			SeasonalMultiplier: "1.00",
			IsActive:           true,
		})
	}

	return a
}

// StoreStub is an activitystore.Store whose answers are configured per test.
// It records every query and lookup it receives.
type StoreStub struct {
	mu sync.Mutex

	QueryResults [][]activitystore.ActivityWithDetails
	QueryErr     error
	Queries      []activitystore.Query

	Activities map[string]activitystore.ActivityWithDetails // by id and by slug
	LookupErr  error
	Lookups    []string

	Counts   activitystore.StatusCounts
	CountErr error

	WriteErr error
	Created  []activitystore.NewActivity
	Updated  map[string]activitystore.ActivityUpdate
	Deleted  []string
	Images   []activitystore.NewActivityImage
}

func NewStoreStub(activities ...activitystore.ActivityWithDetails) *StoreStub {
	s := &StoreStub{
		Activities: make(map[string]activitystore.ActivityWithDetails),
		Updated:    make(map[string]activitystore.ActivityUpdate),
	}

	for _, a := range activities {
		s.Activities[a.ID] = a
		s.Activities[a.Slug] = a
	}

	return s
}

// QueryActivities returns the configured results in call order; the last entry repeats.
func (s *StoreStub) QueryActivities(_ context.Context, query activitystore.Query) ([]activitystore.ActivityWithDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Queries = append(s.Queries, query)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	if len(s.QueryResults) == 0 {
		return []activitystore.ActivityWithDetails{}, nil
	}

	result := s.QueryResults[0]
	if len(s.QueryResults) > 1 {
		s.QueryResults = s.QueryResults[1:]
	}

	return result, nil
}

func (s *StoreStub) ActivityByID(_ context.Context, id string, _ activitystore.Scope) (activitystore.ActivityWithDetails, error) {
	return s.lookup(id)
}

func (s *StoreStub) ActivityBySlug(_ context.Context, slug string, _ activitystore.Scope) (activitystore.ActivityWithDetails, error) {
	return s.lookup(slug)
}

func (s *StoreStub) lookup(key string) (activitystore.ActivityWithDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Lookups = append(s.Lookups, key)
	if s.LookupErr != nil {
		return activitystore.ActivityWithDetails{}, s.LookupErr
	}

	a, ok := s.Activities[key]
	if !ok {
		return activitystore.ActivityWithDetails{}, activitystore.ErrActivityNotFound
	}

	return a.Clone(), nil
}

func (s *StoreStub) CountByStatus(_ context.Context) (activitystore.StatusCounts, error) {
	return s.Counts, s.CountErr
}

func (s *StoreStub) CreateActivity(_ context.Context, input activitystore.NewActivity) (activitystore.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return activitystore.Activity{}, s.WriteErr
	}

	s.Created = append(s.Created, input)

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	status := input.Status
	if status == "" {
		status = activitystore.StatusDraft
	}

	return activitystore.Activity{
		ID:              id,
		Slug:            input.Slug,
		Title:           input.Title,
		Category:        input.Category,
		Location:        input.Location,
		DurationMinutes: input.DurationMinutes,
		MaxParticipants: input.MaxParticipants,
		Status:          status,
		AvgRating:       "0",
	}, nil
}

func (s *StoreStub) UpdateActivity(_ context.Context, id string, update activitystore.ActivityUpdate) (activitystore.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return activitystore.Activity{}, s.WriteErr
	}

	existing, ok := s.Activities[id]
	if !ok {
		return activitystore.Activity{}, activitystore.ErrActivityNotFound
	}

	s.Updated[id] = update
	a := existing.Activity

	if update.Title != nil {
		a.Title = *update.Title
	}

	if update.Status != nil {
		a.Status = *update.Status
	}

	return a, nil
}

func (s *StoreStub) DeleteActivity(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}

	if _, ok := s.Activities[id]; !ok {
		return activitystore.ErrActivityNotFound
	}

	s.Deleted = append(s.Deleted, id)

	return nil
}

func (s *StoreStub) AddImage(_ context.Context, input activitystore.NewActivityImage) (activitystore.ActivityImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return activitystore.ActivityImage{}, s.WriteErr
	}

	s.Images = append(s.Images, input)

	return activitystore.ActivityImage{
		ID:         uuid.NewString(),
		ActivityID: input.ActivityID,
		ImageURL:   input.ImageURL,
		AltText:    input.AltText,
		Caption:    input.Caption,
		IsPrimary:  input.IsPrimary,
		SortOrder:  input.SortOrder,
	}, nil
}

// QueryCount returns how many queries the stub received.
func (s *StoreStub) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.Queries)
}

// LastQuery returns the most recent query.
func (s *StoreStub) LastQuery() activitystore.Query {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Queries[len(s.Queries)-1]
}
