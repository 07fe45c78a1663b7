package repository

import (
	"fmt"
	"sort"
	"sync"

	"bidbazaar/internal/biddingerrors"
	model "bidbazaar/internal/models"
)

// AuctionDB defines the storage interface of the stub API server
type AuctionDB interface {
	AddListing(listing model.Listing) error
	GetListing(listingID string) (model.Listing, error)
	ListListings(status model.ListingStatus) ([]model.Listing, error)
	UpdateListing(listingID string, fn func(*model.Listing) error) (model.Listing, error)
	RecordBid(bid model.Bid, check func(model.Listing) error) (model.Listing, error)
	GetBidsByListing(listingID string) ([]model.Bid, error)
	GetWinningBid(listingID string) (model.Bid, error)
	GetBidsByUser(userID string) ([]model.Bid, error)
	FinalizeBids(listingID, winningBidID string) error
	Authenticate(name, password string) (model.User, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu       sync.RWMutex
	bids     map[string][]model.Bid   // key: listingID -> bids in arrival order
	listings map[string]model.Listing // key: listingID -> listing
	userBids map[string][]string      // key: userID -> listingIDs the user has bid on
	users    map[string]userRecord    // key: user name
}

type userRecord struct {
	user     model.User
	password string
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		bids:     make(map[string][]model.Bid),
		listings: make(map[string]model.Listing),
		userBids: make(map[string][]string),
		users:    make(map[string]userRecord),
	}
}

// AddListing stores a new listing
func (r *MemoryRepo) AddListing(listing model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ListingID == "" {
		return fmt.Errorf("add listing: %w - empty listing ID", biddingerrors.ErrInvalidBid)
	}
	r.listings[listing.ListingID] = listing
	return nil
}

// GetListing returns a listing by ID
func (r *MemoryRepo) GetListing(listingID string) (model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	return listing, nil
}

// ListListings returns listings with the given stored status, or all when status is empty, newest first
func (r *MemoryRepo) ListListings(status model.ListingStatus) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listings := make([]model.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		if status == "" || l.Status == status {
			listings = append(listings, l)
		}
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].ListingID < listings[j].ListingID
		}
		return listings[i].CreatedAt.After(listings[j].CreatedAt)
	})
	return listings, nil
}

// UpdateListing applies fn to a copy of the listing and stores it if fn succeeds
func (r *MemoryRepo) UpdateListing(listingID string, fn func(*model.Listing) error) (model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("update listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	if err := fn(&listing); err != nil {
		return model.Listing{}, err
	}
	r.listings[listingID] = listing
	return listing, nil
}

// RecordBid runs check against the current listing and, if it passes, records
// the bid and raises the listing's current price, all under one lock.
func (r *MemoryRepo) RecordBid(bid model.Bid, check func(model.Listing) error) (model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[bid.ListingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("record bid for listing %s: %w", bid.ListingID, biddingerrors.ErrListingNotFound)
	}
	if check != nil {
		if err := check(listing); err != nil {
			return model.Listing{}, err
		}
	}

	r.bids[bid.ListingID] = append(r.bids[bid.ListingID], bid)
	if bid.Amount.GreaterThan(listing.CurrentPrice) {
		listing.CurrentPrice = bid.Amount
		r.listings[bid.ListingID] = listing
	}

	for _, id := range r.userBids[bid.BidderID] {
		if id == bid.ListingID {
			return listing, nil
		}
	}
	r.userBids[bid.BidderID] = append(r.userBids[bid.BidderID], bid.ListingID)

	return listing, nil
}

// GetBidsByListing returns all bids for a listing, most recent first
func (r *MemoryRepo) GetBidsByListing(listingID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[listingID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, biddingerrors.ErrNoBids)
	}

	out := make([]model.Bid, len(bids))
	for i, b := range bids {
		out[len(bids)-1-i] = b
	}
	return out, nil
}

// GetWinningBid returns the highest bid for a listing, earliest first on ties
func (r *MemoryRepo) GetWinningBid(listingID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[listingID]
	if !ok || len(bids) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for listing %s: %w", listingID, biddingerrors.ErrNoBids)
	}

	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Amount.GreaterThan(winning.Amount) || (b.Amount.Equal(winning.Amount) && b.CreatedAt.Before(winning.CreatedAt)) {
			winning = b
		}
	}
	return winning, nil
}

// GetBidsByUser returns every bid the user placed, most recent first
func (r *MemoryRepo) GetBidsByUser(userID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listingIDs, ok := r.userBids[userID]
	if !ok || len(listingIDs) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	var out []model.Bid
	for _, id := range listingIDs {
		for _, b := range r.bids[id] {
			if b.BidderID == userID {
				out = append(out, b)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// FinalizeBids marks winningBidID as won and every other bid on the listing as lost
func (r *MemoryRepo) FinalizeBids(listingID, winningBidID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[listingID]; !ok {
		return fmt.Errorf("finalize bids for listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	bids := r.bids[listingID]
	for i := range bids {
		if bids[i].BidID == winningBidID {
			bids[i].Status = model.BidWon
		} else {
			bids[i].Status = model.BidLost
		}
	}
	return nil
}

// AddUser registers a user that can log in with password
func (r *MemoryRepo) AddUser(user model.User, password string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.Name] = userRecord{user: user, password: password}
}

// Authenticate returns the user registered under name if password matches
func (r *MemoryRepo) Authenticate(name, password string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.users[name]
	if !ok || rec.password != password {
		return model.User{}, fmt.Errorf("authenticate %s: %w", name, biddingerrors.ErrInvalidCredentials)
	}
	return rec.user, nil
}
