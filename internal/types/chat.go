package types

import (
	"time"

	"github.com/google/uuid"
)

const ChatHistoryLimit = 50

// ChatRequest is what the client sends to the assistant.
type ChatRequest struct {
	Message     string `json:"message" example:"Somewhere quiet for ramen?"`
	Location    string `json:"location,omitempty" example:"Lisbon"`
	Cuisine     string `json:"cuisine,omitempty" example:"japanese"`
	Dietary     string `json:"dietary,omitempty" example:"vegetarian"`
	Instruction string `json:"instruction,omitempty"`
}

// ChatContext is persisted alongside each exchange.
type ChatContext struct {
	Location          string   `json:"location,omitempty"`
	Cuisine           string   `json:"cuisine,omitempty"`
	Dietary           string   `json:"dietary,omitempty"`
	RecentRestaurants []string `json:"recent_restaurants,omitempty"`
}

type ChatConversation struct {
	ID        uuid.UUID   `json:"id" swaggertype:"string" format:"uuid"`
	UserID    uuid.UUID   `json:"user_id" swaggertype:"string" format:"uuid"`
	Message   string      `json:"message"`
	Response  string      `json:"response"`
	Context   ChatContext `json:"context"`
	CreatedAt time.Time   `json:"created_at"`
}

type ChatResponse struct {
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSessionGroup groups conversations that happened on the same day.
type ChatSessionGroup struct {
	Date          string             `json:"date" example:"2025-06-01"`
	Conversations []ChatConversation `json:"conversations"`
}

type ChatHistory struct {
	Sessions []ChatSessionGroup `json:"sessions"`
	Total    int                `json:"total"`
}

// ChatStreamEvent is a websocket frame.
type ChatStreamEvent struct {
	Type  string `json:"type"` // chunk, end or error
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}
