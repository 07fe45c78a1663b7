// Package listingview ties a lifecycle tracker and a bid validator to the
// lifetime of one opened listing.
package listingview

import (
	"context"
	"fmt"
	"sync"
	"time"

	bidding "bidbazaar/internal/biddingService"
	"bidbazaar/internal/lifecycle"
	"bidbazaar/internal/notifications"
	"bidbazaar/utils"
)

// Backend is the REST collaborator used by a view
type Backend interface {
	lifecycle.ListingService
	bidding.BidService
}

type options struct {
	activeInterval time.Duration
	idleInterval   time.Duration
	now            func() time.Time
	notifier       *notifications.Store
	observer       func(lifecycle.Update)
}

// Option configures a View
type Option func(*options)

// WithIntervals sets the tracker recompute intervals
func WithIntervals(active, idle time.Duration) Option {
	return func(o *options) {
		o.activeInterval = active
		o.idleInterval = idle
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNotifications routes bid and auction-ended notifications to store
func WithNotifications(store *notifications.Store) Option {
	return func(o *options) { o.notifier = store }
}

// WithObserver receives every tracker recomputation
func WithObserver(fn func(lifecycle.Update)) Option {
	return func(o *options) { o.observer = fn }
}

// View is one opened listing
type View struct {
	tracker *lifecycle.Tracker
	bidding *bidding.BiddingService

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Open loads the listing and its bid history, then starts the tracker loop.
// The loop runs until Close or until ctx is cancelled.
func Open(ctx context.Context, backend Backend, session bidding.SessionSource, listingID string, opts ...Option) (*View, error) {
	o := options{
		activeInterval: lifecycle.DefaultActiveInterval,
		idleInterval:   lifecycle.DefaultIdleInterval,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	listing, err := backend.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("listingview: open %s: %w", listingID, err)
	}

	trackerOpts := []lifecycle.Option{
		lifecycle.WithClock(o.now),
		lifecycle.WithIntervals(o.activeInterval, o.idleInterval),
	}
	var biddingOpts []bidding.Option
	if o.notifier != nil {
		trackerOpts = append(trackerOpts, lifecycle.WithNotifier(o.notifier))
		biddingOpts = append(biddingOpts, bidding.WithNotifier(o.notifier))
	}
	if o.observer != nil {
		trackerOpts = append(trackerOpts, lifecycle.WithObserver(o.observer))
	}

	tracker := lifecycle.NewTracker(listing, backend, trackerOpts...)
	v := &View{
		tracker: tracker,
		bidding: bidding.NewBiddingService(backend, tracker, session, biddingOpts...),
		done:    make(chan struct{}),
	}

	if err := v.bidding.RefreshHistory(ctx); err != nil {
		utils.Warn("listingview: initial bid history unavailable", map[string]any{
			"listing_id": listingID,
			"error":      err.Error(),
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	go func() {
		defer close(v.done)
		tracker.Run(runCtx)
	}()

	utils.Debug("listingview: opened", map[string]any{"listing_id": listingID, "status": tracker.Status()})
	return v, nil
}

// Tracker returns the listing's lifecycle tracker
func (v *View) Tracker() *lifecycle.Tracker { return v.tracker }

// Bidding returns the bid validator bound to this listing
func (v *View) Bidding() *bidding.BiddingService { return v.bidding }

// Done is closed once the tracker loop has exited
func (v *View) Done() <-chan struct{} { return v.done }

// Close stops the tracker loop and discards every in-flight fetch. Safe to call more than once.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.tracker.Stop()
		v.bidding.Close()
		v.cancel()
		<-v.done
	})
}
