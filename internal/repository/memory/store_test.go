package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RowLockSerializes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	key, err := domain.NewSlotKey("2025-12-01", "10:00")
	require.NoError(t, err)
	require.NoError(t, store.Slots().Upsert(ctx, &domain.Slot{Key: key, MaxCapacity: 1, IsAvailable: true}))

	var (
		mu     sync.Mutex
		inside int
		peak   int
		wg     sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Tx().WithTx(ctx, func(ctx context.Context) error {
				if _, err := store.Slots().GetForUpdate(ctx, key); err != nil {
					return err
				}
				mu.Lock()
				inside++
				if inside > peak {
					peak = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}

func TestStore_HoldUpsertKeepsLatestExpiry(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	key, _ := domain.NewSlotKey("2025-12-01", "10:00")
	now := time.Now()

	require.NoError(t, store.Holds().Upsert(ctx, &domain.SoftHold{SessionID: "a", Key: key, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	h := &domain.SoftHold{SessionID: "a", Key: key, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, store.Holds().Upsert(ctx, h))
	assert.Equal(t, now.Add(time.Hour), h.ExpiresAt)

	n, err := store.Holds().CountActive(ctx, key, now, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.Holds().CountActive(ctx, key, now, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_DeleteSlotCascadesHolds(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	key, _ := domain.NewSlotKey("2025-12-01", "10:00")
	now := time.Now()

	require.NoError(t, store.Slots().Upsert(ctx, &domain.Slot{Key: key, MaxCapacity: 2, IsAvailable: true}))
	require.NoError(t, store.Holds().Upsert(ctx, &domain.SoftHold{SessionID: "a", Key: key, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.Slots().Delete(ctx, key))

	h, err := store.Holds().GetActive(ctx, key, "a", now)
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.ErrorIs(t, store.Slots().Delete(ctx, key), domain.ErrSlotNotFound)
}
