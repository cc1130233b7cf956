package types

import (
	"time"

	"github.com/google/uuid"
)

const DefaultPriceRange = "$$"

// UserPreferences is the per-user taste snapshot read by the chatbot.
type UserPreferences struct {
	UserID              uuid.UUID `json:"user_id" swaggertype:"string" format:"uuid"`
	LikedFoods          []string  `json:"liked_foods"`
	DislikedFoods       []string  `json:"disliked_foods"`
	FavoriteCuisines    []string  `json:"favorite_cuisines"`
	PreferredPriceRange string    `json:"preferred_price_range" example:"$$"`
	DietaryRestrictions []string  `json:"dietary_restrictions"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultPreferences returns the snapshot used when a user has none stored.
func DefaultPreferences(userID uuid.UUID) *UserPreferences {
	return &UserPreferences{
		UserID:              userID,
		LikedFoods:          []string{},
		DislikedFoods:       []string{},
		FavoriteCuisines:    []string{},
		PreferredPriceRange: DefaultPriceRange,
		DietaryRestrictions: []string{},
	}
}

// UpdatePreferencesParams uses nil to mean "leave unchanged".
type UpdatePreferencesParams struct {
	LikedFoods          *[]string `json:"liked_foods,omitempty"`
	DislikedFoods       *[]string `json:"disliked_foods,omitempty"`
	FavoriteCuisines    *[]string `json:"favorite_cuisines,omitempty"`
	PreferredPriceRange *string   `json:"preferred_price_range,omitempty"`
	DietaryRestrictions *[]string `json:"dietary_restrictions,omitempty"`
}

// Apply merges the non-nil fields into p.
func (u UpdatePreferencesParams) Apply(p *UserPreferences) {
	if u.LikedFoods != nil {
		p.LikedFoods = *u.LikedFoods
	}
	if u.DislikedFoods != nil {
		p.DislikedFoods = *u.DislikedFoods
	}
	if u.FavoriteCuisines != nil {
		p.FavoriteCuisines = *u.FavoriteCuisines
	}
	if u.PreferredPriceRange != nil {
		p.PreferredPriceRange = *u.PreferredPriceRange
	}
	if u.DietaryRestrictions != nil {
		p.DietaryRestrictions = *u.DietaryRestrictions
	}
}
