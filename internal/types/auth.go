package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserAuth represents the core user entity in the domain.
type UserAuth struct {
	ID           uuid.UUID `json:"id" swaggertype:"string" format:"uuid" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	FirstName    string    `json:"first_name" example:"John"`
	LastName     string    `json:"last_name" example:"Doe"`
	Email        string    `json:"email" example:"john.doe@example.com"`
	PasswordHash string    `json:"-"`
	Provider     string    `json:"provider" example:"local"`
	ProviderID   *string   `json:"-"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterRequest represents the expected JSON body for user registration.
type RegisterRequest struct {
	FirstName        string   `json:"first_name" example:"John"`
	LastName         string   `json:"last_name" example:"Doe"`
	Email            string   `json:"email" example:"newuser@example.com"`
	Password         string   `json:"password" example:"Str0ngP@ss!"`
	FavoriteCuisines []string `json:"favorite_cuisines,omitempty"`
	PriceRange       string   `json:"price_range,omitempty" example:"$$"`
}

// LoginRequest represents the expected JSON body for user login.
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"password123"`
}

// LoginResponse represents the successful JSON response after login.
type LoginResponse struct {
	AccessToken string    `json:"access_token" example:"eyJhbGciOiJI..."`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserAuth  `json:"user"`
}

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"eml"`
	jwt.RegisteredClaims
}
