package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	// InteractionTypeRestaurant is the default event type, a restaurant view.
	InteractionTypeRestaurant = "restaurant"
	// HistoryLimit bounds the recently viewed list.
	HistoryLimit = 10
	// MaxRecommendations bounds the recommendation output.
	MaxRecommendations = 5
)

// Interaction is an immutable record of a user viewing a restaurant.
type Interaction struct {
	ID           uuid.UUID `json:"id" swaggertype:"string" format:"uuid"`
	UserID       uuid.UUID `json:"user_id" swaggertype:"string" format:"uuid"`
	RestaurantID string    `json:"restaurant_id"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

// TrackClickRequest is the body of POST /clicks.
type TrackClickRequest struct {
	UserID       string `json:"user_id,omitempty" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	RestaurantID string `json:"restaurant_id" example:"gary-danko-san-francisco"`
	Type         string `json:"type,omitempty" example:"restaurant"`
}

// Enrichment outcomes reported by TrackClick.
const (
	EnrichmentCached    = "cached"
	EnrichmentScheduled = "scheduled"
	EnrichmentSkipped   = "skipped"
)

type TrackClickResult struct {
	Interaction Interaction `json:"interaction"`
	Enrichment  string      `json:"enrichment"`
}

// RecommendationRequest carries the result set currently shown to the user.
type RecommendationRequest struct {
	Restaurants []Restaurant `json:"restaurants"`
}
