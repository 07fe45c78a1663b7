package auction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bidbazaar/internal/auth"
	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/increment"
	"bidbazaar/internal/models"
	"bidbazaar/internal/repository"
	"bidbazaar/utils"

	"github.com/shopspring/decimal"
)

// errNotDue marks a listing the settlement sweep leaves untouched
var errNotDue = errors.New("listing not due for settlement")

// NewListing holds the fields a vendor supplies
type NewListing struct {
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	Duration      time.Duration
}

// AuctionService implements the marketplace API served to clients
type AuctionService struct {
	repo   repository.AuctionDB
	tokens *auth.TokenService
	now    func() time.Time
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionDB, tokens *auth.TokenService) *AuctionService {
	return &AuctionService{
		repo:   repo,
		tokens: tokens,
		now:    time.Now,
	}
}

// Login checks credentials and issues a bearer token
func (s *AuctionService) Login(name, password string) (string, time.Time, models.User, error) {
	user, err := s.repo.Authenticate(name, password)
	if err != nil {
		return "", time.Time{}, models.User{}, fmt.Errorf("service: %w", err)
	}
	token, exp, err := s.tokens.Issue(user)
	if err != nil {
		return "", time.Time{}, models.User{}, fmt.Errorf("service: issue token for %s: %w", name, err)
	}
	return token, exp, user, nil
}

// CreateListing stores a pending listing owned by actor
func (s *AuctionService) CreateListing(actor models.User, req NewListing) (models.Listing, error) {
	if actor.Role != models.RoleVendor && actor.Role != models.RoleAdmin {
		return models.Listing{}, fmt.Errorf("service: %w - only vendors can list items", biddingerrors.ErrForbidden)
	}
	if strings.TrimSpace(req.Title) == "" || req.Duration <= 0 {
		return models.Listing{}, fmt.Errorf("service: %w - title and positive duration required", biddingerrors.ErrInvalidBid)
	}
	if _, err := increment.Increment(req.StartingPrice); err != nil {
		return models.Listing{}, fmt.Errorf("service: %w", err)
	}

	now := s.now().UTC()
	listing := models.Listing{
		ListingID:     utils.GenerateID(),
		Title:         req.Title,
		Description:   req.Description,
		VendorID:      actor.UserID,
		Status:        models.ListingPending,
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		EndTime:       now.Add(req.Duration),
		CreatedAt:     now,
	}
	if err := s.repo.AddListing(listing); err != nil {
		return models.Listing{}, fmt.Errorf("service: failed to store listing: %w", err)
	}
	return listing, nil
}

// GetListing returns a listing by ID
func (s *AuctionService) GetListing(listingID string) (models.Listing, error) {
	if listingID == "" {
		return models.Listing{}, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidBid)
	}
	listing, err := s.repo.GetListing(listingID)
	if err != nil {
		return models.Listing{}, fmt.Errorf("service: failed to get listing %s: %w", listingID, err)
	}
	return listing, nil
}

// ListListings returns listings filtered by stored status (empty = all)
func (s *AuctionService) ListListings(status models.ListingStatus) ([]models.Listing, error) {
	listings, err := s.repo.ListListings(status)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list listings: %w", err)
	}
	return listings, nil
}

// Approve moves a pending listing to active, keeping its requested duration
func (s *AuctionService) Approve(actor models.User, listingID string) (models.Listing, error) {
	return s.review(actor, listingID, func(l *models.Listing) {
		duration := l.EndTime.Sub(l.CreatedAt)
		l.Status = models.ListingActive
		l.EndTime = s.now().UTC().Add(duration)
	})
}

// Reject moves a pending listing to rejected
func (s *AuctionService) Reject(actor models.User, listingID string) (models.Listing, error) {
	return s.review(actor, listingID, func(l *models.Listing) {
		l.Status = models.ListingRejected
	})
}

func (s *AuctionService) review(actor models.User, listingID string, apply func(*models.Listing)) (models.Listing, error) {
	if actor.Role != models.RoleAdmin {
		return models.Listing{}, fmt.Errorf("service: %w - admin role required", biddingerrors.ErrForbidden)
	}
	listing, err := s.repo.UpdateListing(listingID, func(l *models.Listing) error {
		if l.Status != models.ListingPending {
			return fmt.Errorf("service: %w - listing is %s", biddingerrors.ErrInvalidTransition, l.Status)
		}
		apply(l)
		return nil
	})
	if err != nil {
		return models.Listing{}, fmt.Errorf("service: review listing %s: %w", listingID, err)
	}
	utils.Info("service: listing reviewed", map[string]any{"listing_id": listingID, "status": listing.Status, "admin": actor.UserID})
	return listing, nil
}

// Relist restarts an expired listing with a new starting price and duration.
// The ladder is recomputed from the new starting price.
func (s *AuctionService) Relist(actor models.User, listingID string, startingPrice decimal.Decimal, duration time.Duration) (models.Listing, error) {
	if _, err := increment.Increment(startingPrice); err != nil {
		return models.Listing{}, fmt.Errorf("service: %w", err)
	}
	if duration <= 0 {
		return models.Listing{}, fmt.Errorf("service: %w - positive duration required", biddingerrors.ErrInvalidBid)
	}

	listing, err := s.repo.UpdateListing(listingID, func(l *models.Listing) error {
		if l.VendorID != actor.UserID && actor.Role != models.RoleAdmin {
			return fmt.Errorf("service: %w - not the listing owner", biddingerrors.ErrForbidden)
		}
		if l.Status != models.ListingEnded || l.HasWinner() {
			return fmt.Errorf("service: %w - only unsold ended listings can be relisted", biddingerrors.ErrInvalidTransition)
		}
		l.Status = models.ListingActive
		l.StartingPrice = startingPrice
		l.CurrentPrice = startingPrice
		l.EndTime = s.now().UTC().Add(duration)
		l.Winner = nil
		return nil
	})
	if err != nil {
		return models.Listing{}, fmt.Errorf("service: relist listing %s: %w", listingID, err)
	}
	return listing, nil
}

// PlaceBid records actor's bid if the listing is open and amount is a valid step above the current price
func (s *AuctionService) PlaceBid(actor models.User, listingID string, amount decimal.Decimal) (models.Bid, error) {
	if listingID == "" || actor.UserID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing listingID or userID", biddingerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return models.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}

	now := s.now().UTC()
	bid := models.Bid{
		BidID:     utils.GenerateID(),
		ListingID: listingID,
		BidderID:  actor.UserID,
		Amount:    amount,
		Status:    models.BidActive,
		CreatedAt: now,
	}

	_, err := s.repo.RecordBid(bid, func(l models.Listing) error {
		if l.Status != models.ListingActive || !now.Before(l.EndTime) {
			return fmt.Errorf("service: %w", biddingerrors.ErrListingNotActive)
		}
		if l.VendorID == actor.UserID {
			return fmt.Errorf("service: %w - vendors cannot bid on their own listing", biddingerrors.ErrForbidden)
		}
		if !amount.GreaterThan(l.CurrentPrice) {
			return fmt.Errorf("service: %w - current price is %s", biddingerrors.ErrBidTooLow, l.CurrentPrice)
		}
		if !increment.OnLattice(l.StartingPrice, amount) {
			next, _ := increment.NextValidBid(l.StartingPrice, l.CurrentPrice)
			return fmt.Errorf("service: %w - next valid bid is %s", biddingerrors.ErrInvalidBid, next)
		}
		return nil
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to record bid for listing %s by user %s: %w", listingID, actor.UserID, err)
	}
	return bid, nil
}

// GetBidsForListing returns all bids for a listing, most recent first
func (s *AuctionService) GetBidsForListing(listingID string) ([]models.Bid, error) {
	if listingID == "" {
		return nil, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidBid)
	}
	if _, err := s.repo.GetListing(listingID); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	bids, err := s.repo.GetBidsByListing(listingID)
	if errors.Is(err, biddingerrors.ErrNoBids) {
		return []models.Bid{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for listing %s: %w", listingID, err)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for a listing
func (s *AuctionService) GetWinningBid(listingID string) (models.Bid, error) {
	if listingID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidBid)
	}
	bid, err := s.repo.GetWinningBid(listingID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for listing %s: %w", listingID, err)
	}
	return bid, nil
}

// GetBidsByUser returns every bid a user has placed
func (s *AuctionService) GetBidsByUser(userID string) ([]models.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}
	bids, err := s.repo.GetBidsByUser(userID)
	if errors.Is(err, biddingerrors.ErrUserNoBids) {
		return []models.Bid{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}
	return bids, nil
}

// SettleExpired ends every active listing whose end time has passed, assigns
// the highest bidder as winner and finalises bid statuses.
func (s *AuctionService) SettleExpired() ([]models.Listing, error) {
	active, err := s.repo.ListListings(models.ListingActive)
	if err != nil {
		return nil, fmt.Errorf("service: list active listings: %w", err)
	}

	now := s.now().UTC()
	var settled []models.Listing
	for _, l := range active {
		if now.Before(l.EndTime) {
			continue
		}

		winning, err := s.repo.GetWinningBid(l.ListingID)
		hasWinner := err == nil
		if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
			return settled, fmt.Errorf("service: winning bid for %s: %w", l.ListingID, err)
		}

		closed, err := s.repo.UpdateListing(l.ListingID, func(cur *models.Listing) error {
			if cur.Status != models.ListingActive || now.Before(cur.EndTime) {
				return errNotDue
			}
			cur.Status = models.ListingEnded
			if hasWinner {
				bidder := winning.BidderID
				cur.Winner = &bidder
				cur.CurrentPrice = winning.Amount
			}
			return nil
		})
		if errors.Is(err, errNotDue) {
			continue
		}
		if err != nil {
			return settled, fmt.Errorf("service: close listing %s: %w", l.ListingID, err)
		}

		if hasWinner {
			if err := s.repo.FinalizeBids(l.ListingID, winning.BidID); err != nil {
				return settled, fmt.Errorf("service: finalize bids for %s: %w", l.ListingID, err)
			}
		}
		settled = append(settled, closed)
	}
	return settled, nil
}
