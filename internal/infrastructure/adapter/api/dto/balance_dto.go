package dto

// BalanceResponse represents the API response for an account balance
type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
}
