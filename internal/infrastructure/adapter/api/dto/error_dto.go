package dto

// ErrorResponse represents a standardized error response for the API
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`

	// Set only for insufficient credits
	Required  string `json:"required,omitempty"`
	Available string `json:"available,omitempty"`
	Shortfall string `json:"shortfall,omitempty"`
}
