package biddingerrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Repository-level errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrNoBids          = errors.New("no bids found for listing")
	ErrUserNoBids      = errors.New("user has not placed any bids")
)

// business logic errors
var (
	ErrInvalidBid           = errors.New("invalid bid")
	ErrBidTooLow            = errors.New("bid amount too low")
	ErrListingNotActive     = errors.New("listing is not accepting bids")
	ErrInvalidStartingPrice = errors.New("starting price must be positive")
	ErrInvalidTransition    = errors.New("invalid listing status transition")
)

// bid submission rejections, surfaced one at a time
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrNotOnIncrement    = errors.New("amount is not a valid bid increment")
	ErrBelowCurrentPrice = errors.New("amount must exceed current price")
	ErrAuctionClosed     = errors.New("auction is closed")
	ErrSubmissionPending = errors.New("a bid submission is already in progress")
)

// transport and authentication errors
var (
	ErrNetworkOrServer    = errors.New("network or server error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshFailure     = errors.New("refresh failed")
)

// RejectionError is a local validation failure. Reason is one of the submission sentinels.
type RejectionError struct {
	Reason        error
	Suggested     decimal.Decimal
	HasSuggestion bool
	Authenticated bool
}

func (e *RejectionError) Error() string {
	if e.HasSuggestion {
		return fmt.Sprintf("%s - next valid bid is %s", e.Reason, e.Suggested.String())
	}
	return e.Reason.Error()
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

// APIError wraps a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return ErrNetworkOrServer
}

// UserMessage returns the text to show for a failed request
func (e *APIError) UserMessage() string {
	msg := e.Message
	if msg == "" {
		msg = "something went wrong, please try again"
	}
	if e.StatusCode == http.StatusUnauthorized {
		msg += " (please log in again)"
	}
	return msg
}
