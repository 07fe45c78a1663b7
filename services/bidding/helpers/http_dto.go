package helpers

import "github.com/shopspring/decimal"

// Request/Response DTOs
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

type PlaceBidRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type CreateListingRequest struct {
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description"`
	StartingPrice   decimal.Decimal `json:"startingPrice"`
	DurationSeconds int64           `json:"durationSeconds" binding:"required,gt=0"`
}

type RelistRequest struct {
	StartingPrice   decimal.Decimal `json:"startingPrice"`
	DurationSeconds int64           `json:"durationSeconds" binding:"required,gt=0"`
}
