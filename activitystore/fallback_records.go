package activitystore

func ptr[T any](v T) *T {
	return &v
}

// DefaultFallbackRecords returns the literal records served when a single-activity lookup hits a failing backend.
func DefaultFallbackRecords() []ActivityWithDetails {
	return []ActivityWithDetails{
		{
			Activity: Activity{
				ID:               "activity-1",
				Slug:             "palma-cathedral-tour",
				Title:            "Palma Cathedral & Historic Quarter Tour",
				ShortDescription: ptr("Explore Palma's iconic cathedral and historic quarter with expert local guide"),
				Description: ptr("Discover the architectural marvel of Palma Cathedral (La Seu) and explore the charming " +
					"historic quarter with our expert local guide. This comprehensive tour takes you through centuries of " +
					"history, from Gothic masterpieces to hidden courtyards, offering insights into Mallorca's rich cultural heritage."),
				Category:        CategoryCultural,
				Location:        "Palma de Mallorca",
				MeetingPoint:    ptr("Palma Cathedral Main Entrance"),
				Latitude:        ptr("39.6763"),
				Longitude:       ptr("2.9712"),
				DurationMinutes: 180,
				MinParticipants: 2,
				MaxParticipants: 15,
				MinAge:          ptr(8),
				IncludedItems: []string{
					"Skip-the-line cathedral tickets",
					"Expert art historian guide",
					"Audio headset system",
					"Historic quarter walking tour",
					"Digital map and recommendations",
				},
				ExcludedItems:       []string{"Hotel pickup/drop-off", "Food and drinks", "Personal expenses"},
				WhatToBring:         []string{"Comfortable walking shoes", "Sun protection", "Water bottle", "Camera"},
				CancellationPolicy:  ptr("Free cancellation up to 24 hours before the tour"),
				SafetyRequirements:  ptr("Modest dress code required for cathedral. Some walking on uneven surfaces."),
				WeatherDependent:    false,
				InstantConfirmation: true,
				Status:              StatusActive,
				Featured:            true,
				AvgRating:           "4.8",
				TotalReviews:        324,
				TotalBookings:       1250,
			},
			Images: []ActivityImage{
				{
					ID:         "img-1",
					ActivityID: "activity-1",
					ImageURL:   "https://images.unsplash.com/photo-1556469559-7c67fdc47b81?w=1200&h=800&fit=crop&crop=center&q=85",
					AltText:    ptr("Stunning view of Palma Cathedral La Seu"),
					Caption:    ptr("The magnificent Gothic cathedral of Palma"),
					IsPrimary:  true,
					SortOrder:  1,
				},
				{
					ID:         "img-2",
					ActivityID: "activity-1",
					ImageURL:   "https://images.unsplash.com/photo-1578911373434-0cb395d2cbfb?w=1200&h=800&fit=crop&crop=center&q=85",
					AltText:    ptr("Historic quarter of Palma"),
					Caption:    ptr("Charming streets of the old town"),
					SortOrder:  2,
				},
			},
			Pricing: []ActivityPricing{
				{ID: "price-1", ActivityID: "activity-1", PriceType: PriceTypeAdult, BasePrice: "45.00", Currency: "EUR", SeasonalMultiplier: "1.0", IsActive: true},
				{ID: "price-2", ActivityID: "activity-1", PriceType: PriceTypeChild, BasePrice: "25.00", Currency: "EUR", SeasonalMultiplier: "1.0", IsActive: true},
			},
			AvailableToday: ptr(true),
			SpotsLeft:      ptr(8),
		},
		{
			Activity: Activity{
				ID:               "activity-3",
				Slug:             "sailing-adventure",
				Title:            "Mallorca Sailing & Snorkeling Adventure",
				ShortDescription: ptr("Luxury catamaran sailing with snorkeling and Mediterranean lunch"),
				Description: ptr("Set sail along Mallorca's stunning coastline aboard our luxury catamaran. Discover hidden " +
					"coves, snorkel in crystal-clear waters, and enjoy a delicious Mediterranean lunch while soaking up the " +
					"Mediterranean sun. Perfect for all skill levels."),
				Category:        CategoryWaterSports,
				Location:        "Port de Palma",
				MeetingPoint:    ptr("Marina Port de Palma, Pier 3"),
				Latitude:        ptr("39.5730"),
				Longitude:       ptr("2.6350"),
				DurationMinutes: 360,
				MinParticipants: 4,
				MaxParticipants: 12,
				MinAge:          ptr(6),
				IncludedItems: []string{
					"Luxury catamaran cruise",
					"Professional skipper and crew",
					"Snorkeling equipment",
					"Mediterranean lunch",
					"Open bar (soft drinks, beer, sangria)",
					"Towels provided",
				},
				ExcludedItems:       []string{"Hotel transfers", "Underwater camera rental", "Additional alcoholic beverages"},
				WhatToBring:         []string{"Swimwear", "Sunscreen", "Sunglasses", "Hat", "Change of clothes"},
				CancellationPolicy:  ptr("Free cancellation up to 24 hours before departure"),
				SafetyRequirements:  ptr("Swimming ability required, life jackets provided, weather conditions permitting"),
				WeatherDependent:    true,
				InstantConfirmation: true,
				Status:              StatusActive,
				Featured:            true,
				AvgRating:           "4.7",
				TotalReviews:        289,
				TotalBookings:       850,
			},
			Images: []ActivityImage{
				{
					ID:         "img-4",
					ActivityID: "activity-3",
					ImageURL:   "https://images.unsplash.com/photo-1544551763-46a013bb70d5?w=1200&h=800&fit=crop&crop=center&q=85",
					AltText:    ptr("Luxury sailing catamaran in Mallorca"),
					Caption:    ptr("Sailing the beautiful waters of Mallorca"),
					IsPrimary:  true,
					SortOrder:  1,
				},
			},
			Pricing: []ActivityPricing{
				{ID: "price-4", ActivityID: "activity-3", PriceType: PriceTypeAdult, BasePrice: "75.00", Currency: "EUR", SeasonalMultiplier: "1.0", IsActive: true},
				{ID: "price-5", ActivityID: "activity-3", PriceType: PriceTypeChild, BasePrice: "45.00", Currency: "EUR", SeasonalMultiplier: "1.0", IsActive: true},
			},
			AvailableToday: ptr(true),
			SpotsLeft:      ptr(5),
		},
	}
}
