package yelp

import (
	"strconv"
	"strings"

	"github.com/FACorreiaa/munchmate-api/internal/types"
)

// business mirrors the subset of the Yelp Fusion business object we read.
// Pointer fields are the ones Yelp omits or nulls.
type business struct {
	ID           string      `json:"id"`
	Alias        string      `json:"alias"`
	Name         string      `json:"name"`
	ImageURL     string      `json:"image_url"`
	URL          string      `json:"url"`
	Phone        string      `json:"display_phone"`
	ReviewCount  *int        `json:"review_count"`
	Rating       *float64    `json:"rating"`
	Price        *string     `json:"price"`
	Distance     *float64    `json:"distance"`
	Photos       []string    `json:"photos"`
	Categories   []category  `json:"categories"`
	Coordinates  coordinates `json:"coordinates"`
	Location     location    `json:"location"`
	IsClosed     bool        `json:"is_closed"`
	Transactions []string    `json:"transactions"`
}

type category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

type coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type location struct {
	Address1       *string  `json:"address1"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	ZipCode        string   `json:"zip_code"`
	Country        string   `json:"country"`
	DisplayAddress []string `json:"display_address"`
}

type searchResponse struct {
	Businesses []business `json:"businesses"`
	Total      int        `json:"total"`
}

// toRestaurant maps a Yelp business to the canonical record. LastUpdated is
// left zero; the cache store stamps it on write.
func toRestaurant(b business) types.Restaurant {
	r := types.Restaurant{
		ID:         b.ID,
		Name:       b.Name,
		Phone:      b.Phone,
		URL:        b.URL,
		ImageURL:   b.ImageURL,
		Photos:     b.Photos,
		Distance:   b.Distance,
		Categories: make([]types.Category, 0, len(b.Categories)),
		Coordinates: types.Coordinates{
			Latitude:  b.Coordinates.Latitude,
			Longitude: b.Coordinates.Longitude,
		},
		Location: types.Location{
			City:    b.Location.City,
			State:   b.Location.State,
			ZipCode: b.Location.ZipCode,
		},
	}
	if b.Location.Address1 != nil {
		r.Location.Address1 = *b.Location.Address1
	}
	if len(b.Location.DisplayAddress) > 0 {
		r.Address = strings.Join(b.Location.DisplayAddress, ", ")
	} else {
		r.Address = r.Location.Address1
	}
	if b.Rating != nil {
		r.Rating = clampRating(*b.Rating)
	}
	if b.ReviewCount != nil && *b.ReviewCount > 0 {
		r.ReviewCount = *b.ReviewCount
	}
	if b.Price != nil && *b.Price != "" {
		p := *b.Price
		r.Price = &p
	}
	for _, c := range b.Categories {
		r.Categories = append(r.Categories, types.Category{Alias: c.Alias, Title: c.Title})
	}
	return r
}

func clampRating(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 5:
		return 5
	default:
		return v
	}
}

// priceQuery translates "$".."$$$$" or "1".."4" into Yelp's numeric tier.
func priceQuery(p string) string {
	n := types.NormalizePrice(p)
	if n == "" {
		return ""
	}
	return strconv.Itoa(len(n))
}
