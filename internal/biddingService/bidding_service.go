package bidding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"bidbazaar/internal/auth"
	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/increment"
	"bidbazaar/internal/models"
	"bidbazaar/internal/notifications"
	"bidbazaar/utils"

	"github.com/shopspring/decimal"
)

// BidService is the backend collaborator that records bids
type BidService interface {
	PlaceBid(ctx context.Context, listingID string, amount decimal.Decimal) (models.Bid, error)
	GetListingBids(ctx context.Context, listingID string) ([]models.Bid, error)
}

// ListingTracker exposes the cached listing and its effective status
type ListingTracker interface {
	Listing() models.Listing
	Status() models.EffectiveStatus
	Refresh(ctx context.Context) error
}

// SessionSource provides the current authentication snapshot
type SessionSource interface {
	Snapshot() auth.Session
}

// Notifier receives user-facing notifications
type Notifier interface {
	Push(kind notifications.Kind, message string) notifications.Notification
}

// AmountParser turns raw user input into an amount
type AmountParser func(raw string) (decimal.Decimal, error)

// ParseAmount accepts a plain decimal number, ignoring surrounding spaces and thousands separators
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, errors.New("empty amount")
	}
	return decimal.NewFromString(cleaned)
}

// BiddingService gates bid attempts on one listing before they reach the backend
type BiddingService struct {
	bids     BidService
	tracker  ListingTracker
	session  SessionSource
	notifier Notifier
	parse    AmountParser

	mu      sync.Mutex
	pending bool
	closed  bool
	input   string
	lastErr error
	history []models.Bid
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithNotifier pushes a notification for every accepted bid
func WithNotifier(n Notifier) Option {
	return func(s *BiddingService) { s.notifier = n }
}

// WithAmountParser replaces ParseAmount
func WithAmountParser(p AmountParser) Option {
	return func(s *BiddingService) { s.parse = p }
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(bids BidService, tracker ListingTracker, session SessionSource, opts ...Option) *BiddingService {
	s := &BiddingService{
		bids:    bids,
		tracker: tracker,
		session: session,
		parse:   ParseAmount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate runs the bid checks in order and returns the parsed amount, or a
// *biddingerrors.RejectionError carrying the first failure.
func (s *BiddingService) Validate(raw string) (decimal.Decimal, error) {
	session := s.session.Snapshot()
	if !session.IsAuthenticated {
		return decimal.Zero, &biddingerrors.RejectionError{Reason: biddingerrors.ErrNotAuthenticated}
	}

	reject := func(reason error) *biddingerrors.RejectionError {
		return &biddingerrors.RejectionError{Reason: reason, Authenticated: true}
	}

	if status := s.tracker.Status(); status != models.StatusActive {
		return decimal.Zero, reject(fmt.Errorf("%w - listing is %s", biddingerrors.ErrAuctionClosed, status))
	}

	amount, err := s.parse(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, reject(biddingerrors.ErrInvalidAmount)
	}

	listing := s.tracker.Listing()
	next, err := increment.NextValidBid(listing.StartingPrice, listing.CurrentPrice)
	if err != nil {
		return decimal.Zero, reject(biddingerrors.ErrInvalidStartingPrice)
	}

	onLadder, err := increment.Accepts(listing.StartingPrice, listing.CurrentPrice, amount)
	if err != nil {
		return decimal.Zero, reject(biddingerrors.ErrInvalidStartingPrice)
	}
	if !onLadder {
		rej := reject(biddingerrors.ErrNotOnIncrement)
		rej.Suggested, rej.HasSuggestion = next, true
		return decimal.Zero, rej
	}

	// checked separately: the ladder may be stale against a fresh current price
	if !amount.GreaterThan(listing.CurrentPrice) {
		rej := reject(biddingerrors.ErrBelowCurrentPrice)
		rej.Suggested, rej.HasSuggestion = next, true
		return decimal.Zero, rej
	}

	return amount, nil
}

// Submit validates raw and, if it passes, places the bid. Only one submission
// runs at a time. On success the bid history and then the listing are refreshed.
func (s *BiddingService) Submit(ctx context.Context, raw string) (models.Bid, error) {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return models.Bid{}, fmt.Errorf("service: %w", biddingerrors.ErrSubmissionPending)
	}
	s.pending = true
	s.input = raw
	s.lastErr = nil
	s.mu.Unlock()

	bid, err := s.submit(ctx, raw)

	s.mu.Lock()
	s.pending = false
	s.lastErr = err
	if err == nil {
		s.input = ""
	}
	s.mu.Unlock()

	if err != nil {
		return models.Bid{}, err
	}

	s.refreshAfterBid(ctx)
	return bid, nil
}

func (s *BiddingService) submit(ctx context.Context, raw string) (models.Bid, error) {
	amount, err := s.Validate(raw)
	if err != nil {
		return models.Bid{}, err
	}

	listingID := s.tracker.Listing().ListingID
	bid, err := s.bids.PlaceBid(ctx, listingID, amount)
	if err != nil {
		if !errors.Is(err, biddingerrors.ErrNetworkOrServer) && !errors.Is(err, biddingerrors.ErrUnauthorized) {
			err = fmt.Errorf("%w: %w", biddingerrors.ErrNetworkOrServer, err)
		}
		utils.Error("bidding: failed to place bid", map[string]any{
			"listing_id": listingID,
			"amount":     amount.String(),
			"error":      err.Error(),
		})
		return models.Bid{}, fmt.Errorf("service: failed to place bid on listing %s: %w", listingID, err)
	}

	utils.Info("bidding: bid placed", map[string]any{
		"listing_id": listingID,
		"bid_id":     bid.BidID,
		"amount":     amount.String(),
	})
	if s.notifier != nil {
		s.notifier.Push(notifications.KindBidPlaced, fmt.Sprintf("your bid of %s was placed", amount.String()))
	}
	return bid, nil
}

func (s *BiddingService) refreshAfterBid(ctx context.Context) {
	listingID := s.tracker.Listing().ListingID
	if err := s.RefreshHistory(ctx); err != nil {
		utils.Warn("bidding: bid history refresh failed", map[string]any{"listing_id": listingID, "error": err.Error()})
	}
	if err := s.tracker.Refresh(ctx); err != nil {
		utils.Warn("bidding: listing refresh failed", map[string]any{"listing_id": listingID, "error": err.Error()})
	}
}

// RefreshHistory re-fetches every bid of the listing and replaces the cached history
func (s *BiddingService) RefreshHistory(ctx context.Context) error {
	listingID := s.tracker.Listing().ListingID
	bids, err := s.bids.GetListingBids(ctx, listingID)
	if err != nil {
		return fmt.Errorf("service: %w - bids for listing %s: %w", biddingerrors.ErrRefreshFailure, listingID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	s.history = bids
	return nil
}

// History returns the cached bids, most recent first
func (s *BiddingService) History() []models.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Bid(nil), s.history...)
}

// LastError returns the error of the latest attempt, nil after a success
func (s *BiddingService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Input returns the pending input; it is reset after an accepted bid
func (s *BiddingService) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Pending reports whether a submission is in flight
func (s *BiddingService) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Suggestions returns the valid bid ladder and the next valid bid for the cached listing
func (s *BiddingService) Suggestions() ([]decimal.Decimal, decimal.Decimal, error) {
	listing := s.tracker.Listing()
	table, err := increment.Table(listing.StartingPrice, listing.CurrentPrice)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("service: %w", err)
	}
	next, err := increment.NextValidBid(listing.StartingPrice, listing.CurrentPrice)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("service: %w", err)
	}
	return table, next, nil
}

// Close discards history fetches that complete afterwards
func (s *BiddingService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
