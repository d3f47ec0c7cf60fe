package dto

// ShapeRequest describes the quantities of a priced job
type ShapeRequest struct {
	Pages    int    `json:"pages" binding:"min=0"`
	Posts    int    `json:"posts" binding:"min=0"`
	Profiles int    `json:"profiles" binding:"min=0"`
	Comments int    `json:"comments" binding:"min=0"`
	Items    int    `json:"items" binding:"min=0"`
	Model    string `json:"model"`
}

// ReserveRequest holds funds before a job starts. Either Amount or Shape must be set;
// when both are present Amount wins.
type ReserveRequest struct {
	Amount      string         `json:"amount"`
	ServiceType string         `json:"serviceType" binding:"required"`
	Shape       *ShapeRequest  `json:"shape"`
	ReferenceID string         `json:"referenceId" binding:"required"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

// ReserveResponse identifies the reservation entry to confirm or cancel later
type ReserveResponse struct {
	EntryID   uint64 `json:"entryId"`
	AccountID string `json:"accountId"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance"`
}

// ConfirmRequest settles a reservation. Without an actual amount the reserved amount is charged.
type ConfirmRequest struct {
	ActualAmount *string `json:"actualAmount"`
}

// QuoteRequest asks for the cost of a job without reserving anything
type QuoteRequest struct {
	ServiceType string       `json:"serviceType" binding:"required"`
	Shape       ShapeRequest `json:"shape"`
}

// QuoteResponse carries the computed cost
type QuoteResponse struct {
	ServiceType string `json:"serviceType"`
	Cost        string `json:"cost"`
}
