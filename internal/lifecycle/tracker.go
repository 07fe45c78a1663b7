// Package lifecycle tracks the effective status of one auction listing.
//
// The persisted status only changes when the backend says so, but an active
// listing whose end time has passed is treated as ended immediately. The
// tracker recomputes the status on a timer, fires a single confirmation
// refresh when it first observes that derived edge, and keeps the listing as
// a soft cache that every fresh fetch replaces wholesale.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/models"
	"bidbazaar/internal/notifications"
	"bidbazaar/utils"
)

const (
	DefaultActiveInterval = time.Second
	DefaultIdleInterval   = time.Minute
)

// ListingService fetches the authoritative listing record
type ListingService interface {
	GetListing(ctx context.Context, listingID string) (models.Listing, error)
}

// Notifier receives user-facing notifications
type Notifier interface {
	Push(kind notifications.Kind, message string) notifications.Notification
}

// Update is passed to observers after every recomputation
type Update struct {
	Listing models.Listing
	Status  models.EffectiveStatus
}

// Effective derives the display status of l at now
func Effective(l models.Listing, now time.Time) models.EffectiveStatus {
	switch l.Status {
	case models.ListingPending:
		return models.StatusPending
	case models.ListingRejected:
		return models.StatusRejected
	case models.ListingActive:
		if !now.Before(l.EndTime) {
			return models.StatusEnded
		}
		return models.StatusActive
	case models.ListingEnded:
		if l.HasWinner() {
			return models.StatusSold
		}
		return models.StatusExpired
	}
	return models.EffectiveStatus(l.Status)
}

// Tracker is the per-listing state machine
type Tracker struct {
	svc      ListingService
	notifier Notifier
	observer func(Update)
	now      func() time.Time

	activeInterval time.Duration
	idleInterval   time.Duration

	mu          sync.Mutex
	listing     models.Listing
	status      models.EffectiveStatus
	endedFired  bool
	fetchSeq    uint64
	appliedSeq  uint64
	stopped     bool
	refreshErrs int
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIntervals sets the recompute interval for active and non-active listings
func WithIntervals(active, idle time.Duration) Option {
	return func(t *Tracker) {
		t.activeInterval = active
		t.idleInterval = idle
	}
}

// WithNotifier pushes an "auction ended" notification on the derived edge
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithObserver is called after every recomputation, outside the tracker lock
func WithObserver(fn func(Update)) Option {
	return func(t *Tracker) { t.observer = fn }
}

// NewTracker creates a tracker seeded with an already fetched listing
func NewTracker(listing models.Listing, svc ListingService, opts ...Option) *Tracker {
	t := &Tracker{
		svc:            svc,
		now:            time.Now,
		activeInterval: DefaultActiveInterval,
		idleInterval:   DefaultIdleInterval,
		listing:        listing,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.status = Effective(listing, t.now())
	return t
}

// Status returns the effective status as of now. It never lags the last tick.
func (t *Tracker) Status() models.EffectiveStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Effective(t.listing, t.now())
}

// Listing returns the cached listing
func (t *Tracker) Listing() models.Listing {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listing
}

// Tick recomputes the effective status. The first time an active listing is
// seen past its end time, it refreshes the listing from the backend once.
func (t *Tracker) Tick(ctx context.Context) models.EffectiveStatus {
	t.mu.Lock()
	prev := t.status
	t.status = Effective(t.listing, t.now())
	status := t.status
	listing := t.listing
	fire := status == models.StatusEnded && !t.endedFired
	if fire {
		t.endedFired = true
	}
	t.mu.Unlock()

	if prev != status {
		utils.Info("lifecycle: status changed", map[string]any{
			"listing_id": listing.ListingID,
			"from":       prev,
			"to":         status,
		})
	}

	if fire {
		if t.notifier != nil {
			t.notifier.Push(notifications.KindAuctionEnded, fmt.Sprintf("auction %q has ended", listing.Title))
		}
		if err := t.Refresh(ctx); err != nil {
			// the derived ended status stays in force
			utils.Warn("lifecycle: post-auction refresh failed", map[string]any{
				"listing_id": listing.ListingID,
				"error":      err.Error(),
			})
		}
		status = t.Status()
	}

	if t.observer != nil {
		t.observer(Update{Listing: t.Listing(), Status: status})
	}
	return status
}

// Refresh fetches the listing and replaces the cache. A result is dropped when
// the tracker has stopped or a fetch started later has already been applied.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	t.fetchSeq++
	seq := t.fetchSeq
	id := t.listing.ListingID
	t.mu.Unlock()

	listing, err := t.svc.GetListing(ctx, id)
	if err != nil {
		t.mu.Lock()
		t.refreshErrs++
		t.mu.Unlock()
		return fmt.Errorf("lifecycle: %w - listing %s: %w", biddingerrors.ErrRefreshFailure, id, err)
	}

	t.apply(seq, listing)
	return nil
}

func (t *Tracker) apply(seq uint64, listing models.Listing) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || seq <= t.appliedSeq {
		utils.Debug("lifecycle: discarded stale listing fetch", map[string]any{
			"listing_id": listing.ListingID,
			"seq":        seq,
		})
		return false
	}
	t.appliedSeq = seq
	t.listing = listing
	return true
}

// RefreshFailures counts failed refreshes over the tracker's lifetime
func (t *Tracker) RefreshFailures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshErrs
}

// Run ticks immediately and then on the interval matching the current status,
// until ctx is cancelled. On return the tracker is stopped.
func (t *Tracker) Run(ctx context.Context) {
	defer t.Stop()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			status := t.Tick(ctx)
			timer.Reset(t.interval(status))
		}
	}
}

func (t *Tracker) interval(status models.EffectiveStatus) time.Duration {
	if status == models.StatusActive {
		return t.activeInterval
	}
	return t.idleInterval
}

// Stop makes the tracker discard every fetch that completes afterwards
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
