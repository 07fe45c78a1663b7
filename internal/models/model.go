package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// amounts travel as JSON numbers, matching the REST contract
	decimal.MarshalJSONWithoutQuotes = true
}

// ListingStatus is the status persisted by the backend
type ListingStatus string

const (
	ListingPending  ListingStatus = "pending"
	ListingActive   ListingStatus = "active"
	ListingRejected ListingStatus = "rejected"
	ListingEnded    ListingStatus = "ended"
)

// EffectiveStatus is the display status derived from the stored status and the clock
type EffectiveStatus string

const (
	StatusPending  EffectiveStatus = "pending"
	StatusActive   EffectiveStatus = "active"
	StatusEnded    EffectiveStatus = "ended"
	StatusSold     EffectiveStatus = "sold"
	StatusExpired  EffectiveStatus = "expired"
	StatusRejected EffectiveStatus = "rejected"
)

// Terminal reports whether no client-observed transition leaves s
func (s EffectiveStatus) Terminal() bool {
	switch s {
	case StatusEnded, StatusSold, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// BidStatus is assigned by the backend and finalised when the listing ends
type BidStatus string

const (
	BidActive BidStatus = "active"
	BidWon    BidStatus = "won"
	BidLost   BidStatus = "lost"
)

// Role of an authenticated user
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// User represents a marketplace participant
type User struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// Listing represents an item offered for auction ("product" on the wire)
type Listing struct {
	ListingID     string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	VendorID      string          `json:"vendor_id"`
	Status        ListingStatus   `json:"status"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	EndTime       time.Time       `json:"endTime"`
	Winner        *string         `json:"winner,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// HasWinner reports whether the backend assigned a winner
func (l Listing) HasWinner() bool {
	return l.Winner != nil && *l.Winner != ""
}

// Bid represents a user's bid on a listing
type Bid struct {
	BidID     string          `json:"id"`
	ListingID string          `json:"productId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    BidStatus       `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}
