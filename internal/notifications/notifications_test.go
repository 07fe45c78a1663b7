package notifications

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStore_PushAndList(t *testing.T) {
	store := NewStore(0)

	first := store.Push(KindBidPlaced, "bid of 1050 placed")
	second := store.Push(KindAuctionEnded, "auction ended")

	_, err := uuid.Parse(first.ID)
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID, "newest first")
	require.Equal(t, first.ID, list[1].ID)
	require.Equal(t, 2, store.Unread())

	store.MarkAllRead()
	require.Equal(t, 0, store.Unread())

	store.Push(KindError, "refresh failed")
	require.Equal(t, 1, store.Unread())
}

func TestStore_Limit(t *testing.T) {
	store := NewStore(2)
	store.Push(KindBidPlaced, "one")
	store.Push(KindBidPlaced, "two")
	store.Push(KindBidPlaced, "three")

	list := store.List()
	require.Len(t, list, 2)
	require.Equal(t, "three", list[0].Message)
	require.Equal(t, "two", list[1].Message)
}

func TestStore_ConcurrentPush(t *testing.T) {
	store := NewStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Push(KindBidPlaced, "bid")
		}()
	}
	wg.Wait()

	require.Len(t, store.List(), 50)
	require.Equal(t, 50, store.Unread())
}
