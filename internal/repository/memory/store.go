// Package memory provides in-process implementations of the repository
// interfaces. Slot row locks are emulated with a mutex per slot held until the
// surrounding transaction returns. Writes are not rolled back on error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	slots    map[string]domain.Slot
	holds    map[string]domain.SoftHold
	bookings map[string]domain.Booking
	products map[int64]string
	rowLocks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		slots:    make(map[string]domain.Slot),
		holds:    make(map[string]domain.SoftHold),
		bookings: make(map[string]domain.Booking),
		products: make(map[int64]string),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Store) Tx() repository.TxRunner { return txRunner{s} }
func (s *Store) Slots() repository.SlotRepository { return slotRepo{s} }
func (s *Store) Holds() repository.HoldRepository { return holdRepo{s} }
func (s *Store) Bookings() repository.BookingRepository { return bookingRepo{s} }
func (s *Store) Products() repository.ProductRepository { return productRepo{s} }

func (s *Store) AddProduct(id int64, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = category
}

func (s *Store) rowLock(key domain.SlotKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rowLocks[key.String()]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[key.String()] = m
	}
	return m
}

type txState struct {
	held map[string]*sync.Mutex
}

type txKey struct{}

type txRunner struct{ s *Store }

func (r txRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	state := &txState{held: make(map[string]*sync.Mutex)}
	defer func() {
		for _, m := range state.held {
			m.Unlock()
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, state))
}

type slotRepo struct{ s *Store }

func (r slotRepo) Get(_ context.Context, key domain.SlotKey) (*domain.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[key.String()]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	return &slot, nil
}

func (r slotRepo) GetForUpdate(ctx context.Context, key domain.SlotKey) (*domain.Slot, error) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		if _, held := state.held[key.String()]; !held {
			m := r.s.rowLock(key)
			m.Lock()
			state.held[key.String()] = m
		}
	}
	return r.Get(ctx, key)
}

func (r slotRepo) ListRange(_ context.Context, from, to time.Time) ([]domain.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	slots := make([]domain.Slot, 0)
	for _, slot := range r.s.slots {
		if inRange(slot.Key.Date, from, to) {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Key.String() < slots[j].Key.String()
	})
	return slots, nil
}

func (r slotRepo) Upsert(_ context.Context, slot *domain.Slot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	if existing, ok := r.s.slots[slot.Key.String()]; ok {
		slot.CreatedAt = existing.CreatedAt
	} else {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	r.s.slots[slot.Key.String()] = *slot
	return nil
}

func (r slotRepo) Delete(_ context.Context, key domain.SlotKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.slots[key.String()]; !ok {
		return domain.ErrSlotNotFound
	}
	delete(r.s.slots, key.String())
	for id, h := range r.s.holds {
		if h.Key.String() == key.String() {
			delete(r.s.holds, id)
		}
	}
	return nil
}

type holdRepo struct{ s *Store }

func holdID(key domain.SlotKey, sessionID string) string {
	return sessionID + "|" + key.String()
}

func (r holdRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, h := range r.s.holds {
		if !h.Active(now) {
			delete(r.s.holds, id)
			n++
		}
	}
	return n, nil
}

func (r holdRepo) CountActive(_ context.Context, key domain.SlotKey, now time.Time, excludeSession string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, h := range r.s.holds {
		if h.Key.String() == key.String() && h.Active(now) && h.SessionID != excludeSession {
			n++
		}
	}
	return n, nil
}

func (r holdRepo) GetActive(_ context.Context, key domain.SlotKey, sessionID string, now time.Time) (*domain.SoftHold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.holds[holdID(key, sessionID)]
	if !ok || !h.Active(now) {
		return nil, nil
	}
	return &h, nil
}

func (r holdRepo) Upsert(_ context.Context, hold *domain.SoftHold) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id := holdID(hold.Key, hold.SessionID)
	if existing, ok := r.s.holds[id]; ok {
		hold.CreatedAt = existing.CreatedAt
		if existing.ExpiresAt.After(hold.ExpiresAt) {
			hold.ExpiresAt = existing.ExpiresAt
		}
	}
	r.s.holds[id] = *hold
	return nil
}

func (r holdRepo) Delete(_ context.Context, key domain.SlotKey, sessionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id := holdID(key, sessionID)
	if _, ok := r.s.holds[id]; !ok {
		return false, nil
	}
	delete(r.s.holds, id)
	return true, nil
}

func (r holdRepo) CountActiveByRange(_ context.Context, from, to, now time.Time) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[string]int)
	for _, h := range r.s.holds {
		if h.Active(now) && inRange(h.Key.Date, from, to) {
			counts[h.Key.String()]++
		}
	}
	return counts, nil
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) CountActive(_ context.Context, key domain.SlotKey) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, b := range r.s.bookings {
		if b.Key.String() == key.String() && b.CountsAgainstCapacity() {
			n++
		}
	}
	return n, nil
}

func (r bookingRepo) HasActiveForSession(_ context.Context, key domain.SlotKey, sessionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, b := range r.s.bookings {
		if b.Key.String() == key.String() && b.SessionID == sessionID && b.CountsAgainstCapacity() {
			return true, nil
		}
	}
	return false, nil
}

func (r bookingRepo) Create(_ context.Context, booking *domain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.s.bookings[booking.OrderID] = *booking
	return nil
}

func (r bookingRepo) Get(_ context.Context, orderID string) (*domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &b, nil
}

func (r bookingRepo) TransitionStatus(_ context.Context, orderID string, to domain.PaymentStatus, from ...domain.PaymentStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[orderID]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if b.PaymentStatus == status {
			b.PaymentStatus = to
			b.UpdatedAt = time.Now()
			r.s.bookings[orderID] = b
			return true, nil
		}
	}
	return false, nil
}

func (r bookingRepo) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	expired := make([]domain.Booking, 0)
	for _, b := range r.s.bookings {
		if b.PaymentStatus == domain.PaymentStatusPending && b.ReservationExpiresAt.Before(now) {
			expired = append(expired, b)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ReservationExpiresAt.Before(expired[j].ReservationExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (r bookingRepo) CountActiveByRange(_ context.Context, from, to time.Time) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := make(map[string]int)
	for _, b := range r.s.bookings {
		if b.CountsAgainstCapacity() && inRange(b.Key.Date, from, to) {
			counts[b.Key.String()]++
		}
	}
	return counts, nil
}

type productRepo struct{ s *Store }

func (r productRepo) Categories(_ context.Context, productIDs []int64) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, id := range productIDs {
		c, ok := r.s.products[id]
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}
