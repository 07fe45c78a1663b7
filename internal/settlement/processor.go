package settlement

import (
	"context"
	"time"

	"bidbazaar/internal/models"
	"bidbazaar/utils"
)

// Settler closes listings whose end time has passed
type Settler interface {
	SettleExpired() ([]models.Listing, error)
}

// Processor periodically settles expired auctions
type Processor struct {
	settler  Settler
	interval time.Duration
}

// NewProcessor creates a processor sweeping every interval
func NewProcessor(settler Settler, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Processor{
		settler:  settler,
		interval: interval,
	}
}

// Start runs the settlement loop until ctx is cancelled
func (p *Processor) Start(ctx context.Context) {
	utils.Info("settlement: starting processor", map[string]any{"interval": p.interval.String()})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.Info("settlement: shutting down processor", nil)
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}

// Sweep settles every due listing once and returns how many were closed
func (p *Processor) Sweep() int {
	settled, err := p.settler.SettleExpired()
	if err != nil {
		utils.Error("settlement: failed to settle expired listings", map[string]any{"error": err.Error()})
	}

	for _, l := range settled {
		fields := map[string]any{"listing_id": l.ListingID, "final_price": l.CurrentPrice.String()}
		if l.HasWinner() {
			fields["winner"] = *l.Winner
			utils.Info("settlement: listing sold", fields)
			continue
		}
		utils.Info("settlement: listing expired without bids", fields)
	}
	return len(settled)
}
