package listingview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bidbazaar/internal/auth"
	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/lifecycle"
	"bidbazaar/internal/models"
	"bidbazaar/internal/notifications"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	listing  models.Listing
	bids     []models.Bid
	getErr   error
	bidsErr  error
	gets     atomic.Int32
	bidCalls atomic.Int32
}

func (f *fakeBackend) GetListing(context.Context, string) (models.Listing, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return models.Listing{}, f.getErr
	}
	return f.listing, nil
}

func (f *fakeBackend) GetListingBids(context.Context, string) ([]models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bidsErr != nil {
		return nil, f.bidsErr
	}
	return append([]models.Bid(nil), f.bids...), nil
}

func (f *fakeBackend) PlaceBid(_ context.Context, listingID string, amount decimal.Decimal) (models.Bid, error) {
	f.bidCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	bid := models.Bid{BidID: "b1", ListingID: listingID, BidderID: "user1", Amount: amount, Status: models.BidActive}
	f.bids = append([]models.Bid{bid}, f.bids...)
	f.listing.CurrentPrice = amount
	return bid, nil
}

func newListing(end time.Time) models.Listing {
	return models.Listing{
		ListingID:     "l1",
		Title:         "Lamp",
		Status:        models.ListingActive,
		StartingPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(100),
		EndTime:       end,
	}
}

func loggedIn(t *testing.T) *auth.Store {
	t.Helper()
	token, _, err := auth.NewTokenService("secret", time.Hour).Issue(models.User{UserID: "user1", Name: "bea", Role: models.RoleBuyer})
	require.NoError(t, err)
	store := auth.NewStore()
	require.NoError(t, store.Login(token))
	return store
}

func TestOpen_LoadsListingAndHistory(t *testing.T) {
	backend := &fakeBackend{
		listing: newListing(time.Now().Add(time.Hour)),
		bids:    []models.Bid{{BidID: "b0", Amount: decimal.NewFromInt(105)}},
	}

	v, err := Open(context.Background(), backend, loggedIn(t), "l1", WithIntervals(time.Hour, time.Hour))
	require.NoError(t, err)
	defer v.Close()

	require.Equal(t, models.StatusActive, v.Tracker().Status())
	require.Len(t, v.Bidding().History(), 1)
}

func TestOpen_ListingUnavailable(t *testing.T) {
	backend := &fakeBackend{getErr: biddingerrors.ErrNetworkOrServer}

	_, err := Open(context.Background(), backend, auth.NewStore(), "l1")
	require.True(t, errors.Is(err, biddingerrors.ErrNetworkOrServer))
}

func TestOpen_HistoryFailureIsSoft(t *testing.T) {
	backend := &fakeBackend{listing: newListing(time.Now().Add(time.Hour)), bidsErr: errors.New("boom")}

	v, err := Open(context.Background(), backend, auth.NewStore(), "l1", WithIntervals(time.Hour, time.Hour))
	require.NoError(t, err)
	defer v.Close()

	require.Empty(t, v.Bidding().History())
}

func TestView_SubmitRefreshes(t *testing.T) {
	backend := &fakeBackend{listing: newListing(time.Now().Add(time.Hour))}
	store := notifications.NewStore(0)

	v, err := Open(context.Background(), backend, loggedIn(t), "l1",
		WithIntervals(time.Hour, time.Hour),
		WithNotifications(store))
	require.NoError(t, err)
	defer v.Close()

	bid, err := v.Bidding().Submit(context.Background(), "110")
	require.NoError(t, err)
	require.Equal(t, "110", bid.Amount.String())
	require.Equal(t, "110", v.Tracker().Listing().CurrentPrice.String())
	require.Len(t, v.Bidding().History(), 1)
	require.Equal(t, notifications.KindBidPlaced, store.List()[0].Kind)
}

func TestView_EndsAndNotifies(t *testing.T) {
	backend := &fakeBackend{listing: newListing(time.Now().Add(100 * time.Millisecond))}
	store := notifications.NewStore(0)

	var updates atomic.Int32
	v, err := Open(context.Background(), backend, loggedIn(t), "l1",
		WithIntervals(5*time.Millisecond, time.Hour),
		WithNotifications(store),
		WithObserver(func(lifecycle.Update) { updates.Add(1) }))
	require.NoError(t, err)
	defer v.Close()

	require.Eventually(t, func() bool { return v.Tracker().Status() == models.StatusEnded }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return store.Unread() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, notifications.KindAuctionEnded, store.List()[0].Kind)
	require.Positive(t, updates.Load())

	_, err = v.Bidding().Submit(context.Background(), "110")
	require.True(t, errors.Is(err, biddingerrors.ErrAuctionClosed))
	require.Zero(t, backend.bidCalls.Load())
}

func TestView_CloseStopsLoop(t *testing.T) {
	backend := &fakeBackend{listing: newListing(time.Now().Add(time.Hour))}

	v, err := Open(context.Background(), backend, auth.NewStore(), "l1", WithIntervals(time.Millisecond, time.Millisecond))
	require.NoError(t, err)

	v.Close()
	v.Close()

	select {
	case <-v.Done():
	default:
		t.Fatal("tracker loop still running after Close")
	}

	backend.mu.Lock()
	backend.listing.CurrentPrice = decimal.NewFromInt(500)
	backend.mu.Unlock()

	require.NoError(t, v.Tracker().Refresh(context.Background()))
	require.Equal(t, "100", v.Tracker().Listing().CurrentPrice.String(), "fetch after close is discarded")
}
