package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// CacheDuration is how long a cached restaurant stays fresh.
	CacheDuration = 7 * 24 * time.Hour
	// MaxCachedResults caps any query against the cache store.
	MaxCachedResults = 50
	// DefaultSearchRadius is used when a search omits the radius, in meters.
	DefaultSearchRadius = 5000
	// MaxSearchRadius is the largest radius the directory provider accepts.
	MaxSearchRadius = 40000
	// MetersPerDegree approximates one degree of latitude.
	MetersPerDegree = 111000.0
)

// Restaurant is the canonical, provider-agnostic restaurant record.
type Restaurant struct {
	ID          string      `json:"id" example:"gary-danko-san-francisco"`
	Name        string      `json:"name" example:"Gary Danko"`
	Address     string      `json:"address" example:"800 N Point St, San Francisco, CA 94109"`
	Location    Location    `json:"location"`
	Coordinates Coordinates `json:"coordinates"`
	Price       *string     `json:"price,omitempty" example:"$$$$"`
	Rating      float64     `json:"rating" minimum:"0" maximum:"5" example:"4.5"`
	ReviewCount int         `json:"review_count" minimum:"0" example:"5296"`
	Categories  []Category  `json:"categories"`
	Phone       string      `json:"phone,omitempty"`
	URL         string      `json:"url,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	Photos      []string    `json:"photos,omitempty"`
	Distance    *float64    `json:"distance,omitempty"` // meters from the search origin, never persisted
	LastUpdated time.Time   `json:"last_updated"`
}

type Location struct {
	Address1 string `json:"address1"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
}

type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type Category struct {
	Alias string `json:"alias" example:"newamerican"`
	Title string `json:"title" example:"American (New)"`
}

// Validate checks the record invariants shared by every store backend.
func (r Restaurant) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return NewValidationError("id", "restaurant id is required")
	}
	if math.IsNaN(r.Rating) || r.Rating < 0 || r.Rating > 5 {
		return NewValidationError("rating", fmt.Sprintf("must be between 0 and 5, got %v", r.Rating))
	}
	if r.ReviewCount < 0 {
		return NewValidationError("review_count", "must not be negative")
	}
	return nil
}

// PrimaryCategory returns the alias of the first category, or "".
func (r Restaurant) PrimaryCategory() string {
	if len(r.Categories) == 0 {
		return ""
	}
	return r.Categories[0].Alias
}

func (r Restaurant) Aliases() []string {
	aliases := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		if c.Alias != "" {
			aliases = append(aliases, c.Alias)
		}
	}
	return aliases
}

// IsFresh reports whether the record was written less than maxAge before now.
func (r Restaurant) IsFresh(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.LastUpdated) < maxAge
}

// MatchesCategory reports whether q is a case-insensitive substring of any
// category alias or title.
func (r Restaurant) MatchesCategory(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, c := range r.Categories {
		if strings.Contains(strings.ToLower(c.Alias), q) || strings.Contains(strings.ToLower(c.Title), q) {
			return true
		}
	}
	return false
}

var validSortKeys = map[string]bool{
	"best_match":   true,
	"rating":       true,
	"review_count": true,
	"distance":     true,
}

// SearchParams are the canonical search inputs.
type SearchParams struct {
	Location  string   `json:"location,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Radius    int      `json:"radius,omitempty"`
	Category  string   `json:"category,omitempty"`
	Price     string   `json:"price,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
	SortBy    string   `json:"sort_by,omitempty"`
	Term      string   `json:"term,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

func (p SearchParams) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Validate requires a location or a full coordinate pair.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Location) == "" && !p.HasCoordinates() {
		return NewValidationError("location", "either location or latitude and longitude are required")
	}
	if err := validCoordinate("latitude", p.Latitude, 90); err != nil {
		return err
	}
	if err := validCoordinate("longitude", p.Longitude, 180); err != nil {
		return err
	}
	if p.SortBy != "" && !validSortKeys[p.SortBy] {
		return NewValidationError("sort_by", "must be one of best_match, rating, review_count, distance")
	}
	if p.MinRating != nil && (!isFinite(*p.MinRating) || *p.MinRating < 0 || *p.MinRating > 5) {
		return NewValidationError("min_rating", "must be between 0 and 5")
	}
	if p.Radius < 0 {
		return NewValidationError("radius", "must not be negative")
	}
	return nil
}

func validCoordinate(field string, v *float64, limit float64) error {
	if v == nil {
		return nil
	}
	if !isFinite(*v) || math.Abs(*v) > limit {
		return NewValidationError(field, fmt.Sprintf("must be a number between -%g and %g", limit, limit))
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

func (b BoundingBox) Contains(c Coordinates) bool {
	if c.Latitude == nil || c.Longitude == nil {
		return false
	}
	return *c.Latitude >= b.MinLat && *c.Latitude <= b.MaxLat &&
		*c.Longitude >= b.MinLon && *c.Longitude <= b.MaxLon
}

// CacheQuery is the structural predicate evaluated by the cache store.
type CacheQuery struct {
	Category  string
	Price     string
	MinRating *float64
	Box       *BoundingBox
	MaxAge    time.Duration
	Limit     int
}

// Matches evaluates every predicate except freshness.
func (q CacheQuery) Matches(r Restaurant) bool {
	if !r.MatchesCategory(q.Category) {
		return false
	}
	if q.Price != "" && (r.Price == nil || *r.Price != q.Price) {
		return false
	}
	if q.MinRating != nil && r.Rating < *q.MinRating {
		return false
	}
	if q.Box != nil && !q.Box.Contains(r.Coordinates) {
		return false
	}
	return true
}

// EffectiveLimit clamps Limit to (0, MaxCachedResults].
func (q CacheQuery) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > MaxCachedResults {
		return MaxCachedResults
	}
	return q.Limit
}

// EffectiveMaxAge defaults to CacheDuration.
func (q CacheQuery) EffectiveMaxAge() time.Duration {
	if q.MaxAge <= 0 {
		return CacheDuration
	}
	return q.MaxAge
}

// CacheQueryFromSearch translates search params into a cache predicate.
// Coordinates become a box of radius/111000 degrees around the origin.
func CacheQueryFromSearch(p SearchParams, maxAge time.Duration) CacheQuery {
	q := CacheQuery{
		Category:  p.Category,
		Price:     NormalizePrice(p.Price),
		MinRating: p.MinRating,
		MaxAge:    maxAge,
		Limit:     MaxCachedResults,
	}
	if p.HasCoordinates() {
		radius := p.Radius
		if radius <= 0 {
			radius = DefaultSearchRadius
		}
		delta := float64(radius) / MetersPerDegree
		q.Box = &BoundingBox{
			MinLat: *p.Latitude - delta,
			MaxLat: *p.Latitude + delta,
			MinLon: *p.Longitude - delta,
			MaxLon: *p.Longitude + delta,
		}
	}
	return q
}

// NormalizePrice maps "1".."4" to "$".."$$$$"; dollar tiers pass through.
func NormalizePrice(p string) string {
	p = strings.TrimSpace(p)
	switch p {
	case "1", "2", "3", "4":
		return strings.Repeat("$", int(p[0]-'0'))
	case "$", "$$", "$$$", "$$$$":
		return p
	default:
		return ""
	}
}

// SaveRestaurantsRequest is the body of the bulk save endpoint.
type SaveRestaurantsRequest struct {
	Restaurants []Restaurant `json:"restaurants"`
}

type SaveRestaurantsResponse struct {
	Saved  int      `json:"saved"`
	Failed []string `json:"failed,omitempty"`
}
