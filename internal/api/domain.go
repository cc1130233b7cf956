package api

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success   bool   `json:"success" example:"false"`
	Error     string `json:"error" example:"Upstream provider unavailable"`
	Details   string `json:"details,omitempty"` // only populated in development mode
	RequestID string `json:"request_id,omitempty"`
}

// Response represents a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation successful"`
	Error   string `json:"error,omitempty" example:"Resource not found"`
}
