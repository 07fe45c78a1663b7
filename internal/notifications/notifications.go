package notifications

import (
	"sync"
	"time"

	"bidbazaar/utils"
)

// Kind classifies a notification
type Kind string

const (
	KindBidPlaced    Kind = "bid_placed"
	KindAuctionEnded Kind = "auction_ended"
	KindError        Kind = "error"
)

// Notification is a single user-facing message
type Notification struct {
	ID        string
	Kind      Kind
	Message   string
	CreatedAt time.Time
	Read      bool
}

// Store keeps the notifications of one client session, newest first
type Store struct {
	mu    sync.RWMutex
	items []Notification
	limit int
}

// NewStore creates a store keeping at most limit notifications (0 = unbounded)
func NewStore(limit int) *Store {
	return &Store{limit: limit}
}

// Push records a new unread notification
func (s *Store) Push(kind Kind, message string) Notification {
	n := Notification{
		ID:        utils.GenerateID(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Notification{n}, s.items...)
	if s.limit > 0 && len(s.items) > s.limit {
		s.items = s.items[:s.limit]
	}
	return n
}

// List returns all notifications, newest first
func (s *Store) List() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.items...)
}

// Unread counts unread notifications
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkAllRead marks every notification as read
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		s.items[i].Read = true
	}
}
