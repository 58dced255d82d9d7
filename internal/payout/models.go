package payout

import "encoding/json"

type TransferRequest struct {
	TgUserID    int64       `json:"tgUserId"`
	Currency    string      `json:"currency"`
	Amount      json.Number `json:"amount"`
	TransferID  string      `json:"transferId"`
	Description string      `json:"description,omitempty"`
}

type Transfer struct {
	ID          int64       `json:"id"`
	TgUserID    int64       `json:"tgUserId"`
	Currency    string      `json:"currency"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

// Wrapper for API responses
type APIResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *Transfer `json:"data"`
}
