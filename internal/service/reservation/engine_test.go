package reservation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type closedDays map[string]bool

func (c closedDays) IsOpen(_ context.Context, date time.Time) (bool, error) {
	return !c[date.Format(domain.DateLayout)], nil
}

type fixture struct {
	store  *memory.Store
	engine *Engine
	clock  *testClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := newTestClock()
	opts = append([]Option{WithClock(clock.Now), WithProducts(store.Products())}, opts...)
	engine := NewEngine(store.Tx(), store.Slots(), store.Holds(), store.Bookings(), opts...)
	return &fixture{store: store, engine: engine, clock: clock}
}

func (f *fixture) slot(t *testing.T, date, tm string, capacity int) domain.SlotKey {
	t.Helper()
	key, err := domain.NewSlotKey(date, tm)
	require.NoError(t, err)
	require.NoError(t, f.store.Slots().Upsert(context.Background(), &domain.Slot{Key: key, MaxCapacity: capacity, IsAvailable: true}))
	return key
}

func TestEngine_CapacityOneTwoSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 1)

	res, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), res.ExpiresAt)

	availB, err := f.engine.Check(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.False(t, availB.Available)
	assert.Equal(t, domain.ReasonFull, availB.Reason)

	holdB, err := f.engine.Hold(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.False(t, holdB.Success)
	assert.Equal(t, domain.ReasonFull, holdB.Reason)

	availA, err := f.engine.Check(ctx, key, "A", nil)
	require.NoError(t, err)
	assert.True(t, availA.Available)

	final, err := f.engine.CheckFinal(ctx, key, "A", true, nil)
	require.NoError(t, err)
	assert.True(t, final.Valid)

	finalB, err := f.engine.CheckFinal(ctx, key, "B", false, nil)
	require.NoError(t, err)
	assert.False(t, finalB.Valid)
	assert.NotEmpty(t, finalB.Message)

	order, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{Key: key, SessionID: "A", Email: "a@example.com"})
	require.NoError(t, err)
	require.True(t, order.Success)
	assert.Equal(t, domain.PaymentStatusPending, order.Booking.PaymentStatus)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), order.Booking.ReservationExpiresAt)

	hold, err := f.store.Holds().GetActive(ctx, key, "A", f.clock.Now())
	require.NoError(t, err)
	assert.Nil(t, hold)

	availB, err = f.engine.Check(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.False(t, availB.Available)

	availA, err = f.engine.Check(ctx, key, "A", nil)
	require.NoError(t, err)
	assert.True(t, availA.Available, "own booking keeps the slot selectable")

	orderB, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{Key: key, SessionID: "B"})
	require.NoError(t, err)
	assert.False(t, orderB.Success)
	assert.Equal(t, domain.ReasonFull, orderB.Reason)
}

func TestEngine_NoOversellUnderConcurrentHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const capacity, extra = 5, 15
	key := f.slot(t, "2025-12-01", "11:00", capacity)

	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < capacity+extra; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.engine.Hold(ctx, key, fmt.Sprintf("session-%d", i), nil)
			if err == nil && res.Success {
				success.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(capacity), success.Load())
	held, err := f.store.Holds().CountActive(ctx, key, f.clock.Now(), "")
	require.NoError(t, err)
	assert.Equal(t, capacity, held)
}

func TestEngine_NoOversellUnderConcurrentOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "12:00", 3)

	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{Key: key, SessionID: fmt.Sprintf("s-%d", i)})
			if err == nil && res.Success {
				success.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(3), success.Load())
	booked, err := f.store.Bookings().CountActive(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, booked)
}

func TestEngine_HoldIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 2)

	first, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	require.True(t, first.Success)

	f.clock.Advance(5 * time.Minute)
	second, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.True(t, !second.ExpiresAt.Before(first.ExpiresAt))

	avail, err := f.engine.Check(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.Remaining)
}

func TestEngine_ExistingHoldExtendedWhenCapacityLowered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 2)

	_, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	_, err = f.engine.Hold(ctx, key, "B", nil)
	require.NoError(t, err)

	require.NoError(t, f.store.Slots().Upsert(ctx, &domain.Slot{Key: key, MaxCapacity: 1, IsAvailable: true}))

	res, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = f.engine.Hold(ctx, key, "C", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestEngine_ExpiredHoldFreesCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 1)

	res, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	f.clock.Advance(15*time.Minute + time.Second)

	avail, err := f.engine.Check(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.True(t, avail.Available)

	res, err = f.engine.Hold(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestEngine_CheckIgnoresExpiredHoldsWithoutSweeping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 1)

	res, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	f.clock.Advance(15*time.Minute + time.Second)

	avail, err := f.engine.Check(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, 1, avail.Remaining)

	// Check is read-only; the expired row is still there for the next write to sweep.
	swept, err := f.store.Holds().DeleteExpired(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)
}

func TestEngine_DisabledBeatsSelfException(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 1)

	_, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	require.NoError(t, f.store.Slots().Upsert(ctx, &domain.Slot{Key: key, MaxCapacity: 1, IsAvailable: false}))

	avail, err := f.engine.Check(ctx, key, "A", nil)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, domain.ReasonDisabled, avail.Reason)

	final, err := f.engine.CheckFinal(ctx, key, "A", true, nil)
	require.NoError(t, err)
	assert.False(t, final.Valid)
	assert.Equal(t, domain.ReasonDisabled.Message(), final.Message)
}

func TestEngine_CheckFinalWithoutOwnSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 1)

	order, err := f.engine.PlaceOrder(ctx, PlaceOrderInput{Key: key, SessionID: "A"})
	require.NoError(t, err)
	require.True(t, order.Success)

	own, err := f.engine.CheckFinal(ctx, key, "A", true, nil)
	require.NoError(t, err)
	assert.True(t, own.Valid)

	raw, err := f.engine.CheckFinal(ctx, key, "A", false, nil)
	require.NoError(t, err)
	assert.False(t, raw.Valid)
	assert.Equal(t, domain.ReasonFull, raw.Reason)
}

func TestEngine_MissingAndClosedSlots(t *testing.T) {
	closed := closedDays{"2025-12-25": true}
	f := newFixture(t, WithCalendar(closed))
	ctx := context.Background()

	missing, _ := domain.NewSlotKey("2025-12-02", "10:00")
	avail, err := f.engine.Check(ctx, missing, "A", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNotFound, avail.Reason)

	res, err := f.engine.Hold(ctx, missing, "A", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.ReasonNotFound, res.Reason)

	xmas := f.slot(t, "2025-12-25", "10:00", 5)
	avail, err = f.engine.Check(ctx, xmas, "A", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonClosed, avail.Reason)
}

func TestEngine_CategoryGate(t *testing.T) {
	rules := domain.CategoryRules{
		"bread": {{Start: "07:00", End: "12:00"}},
	}
	f := newFixture(t, WithCategoryRules(rules))
	ctx := context.Background()
	f.store.AddProduct(1, "bread")
	f.store.AddProduct(2, "cake")

	morning := f.slot(t, "2025-12-01", "08:00", 5)
	evening := f.slot(t, "2025-12-01", "17:00", 5)

	avail, err := f.engine.Check(ctx, morning, "A", []int64{1})
	require.NoError(t, err)
	assert.True(t, avail.Available)

	avail, err = f.engine.Check(ctx, evening, "A", []int64{1})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonCategoryMismatch, avail.Reason)

	avail, err = f.engine.Check(ctx, evening, "A", []int64{2})
	require.NoError(t, err)
	assert.True(t, avail.Available, "unconfigured category is unrestricted")

	tagged, _ := domain.NewSlotKey("2025-12-01", "09:00")
	require.NoError(t, f.store.Slots().Upsert(ctx, &domain.Slot{Key: tagged, MaxCapacity: 5, IsAvailable: true, Category: "bread"}))

	res, err := f.engine.Hold(ctx, tagged, "A", []int64{1, 2})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.ReasonCategoryMismatch, res.Reason)

	res, err = f.engine.Hold(ctx, tagged, "A", []int64{1})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestEngine_ReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 1)

	require.NoError(t, f.engine.Release(ctx, key, "A"))

	_, err := f.engine.Hold(ctx, key, "A", nil)
	require.NoError(t, err)
	require.NoError(t, f.engine.Release(ctx, key, "A"))
	require.NoError(t, f.engine.Release(ctx, key, "A"))

	avail, err := f.engine.Check(ctx, key, "B", nil)
	require.NoError(t, err)
	assert.True(t, avail.Available)
}

func TestEngine_RequiresSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 1)

	_, err := f.engine.Hold(ctx, key, "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	_, err = f.engine.PlaceOrder(ctx, PlaceOrderInput{Key: key})
	assert.ErrorIs(t, err, domain.ErrInvalidSession)

	assert.ErrorIs(t, f.engine.Release(ctx, key, ""), domain.ErrInvalidSession)
}

func TestEngine_SweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.slot(t, "2025-12-01", "10:00", 3)

	for _, s := range []string{"A", "B"} {
		_, err := f.engine.Hold(ctx, key, s, nil)
		require.NoError(t, err)
	}

	n, err := f.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(time.Hour)
	n, err = f.engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
