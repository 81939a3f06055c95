package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/kafka"
	"github.com/Domenick1991/pickupslots/internal/metrics"
	"github.com/Domenick1991/pickupslots/internal/repository"
	"github.com/Domenick1991/pickupslots/internal/service/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHoldTTL      = 15 * time.Minute
	defaultPaymentTTL   = 30 * time.Minute
	defaultSlotLength   = 30 * time.Minute
	defaultMaxRangeDays = 62
)

type UseCase interface {
	Check(ctx context.Context, key domain.SlotKey, sessionID string, productIDs []int64) (domain.Availability, error)
	Hold(ctx context.Context, key domain.SlotKey, sessionID string, productIDs []int64) (domain.HoldResult, error)
	Release(ctx context.Context, key domain.SlotKey, sessionID string) error
	CheckFinal(ctx context.Context, key domain.SlotKey, sessionID string, isUserOwnSelection bool, productIDs []int64) (domain.FinalCheck, error)
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (domain.PlaceOrderResult, error)
	SweepExpired(ctx context.Context) (int64, error)
	Availability(ctx context.Context, from, to time.Time, category string) ([]domain.SlotAvailability, error)
}

type Calendar interface {
	IsOpen(ctx context.Context, date time.Time) (bool, error)
}

// AvailabilityCache stores read models by cache version. SetAvailability must
// receive the version returned by the GetAvailability miss it follows.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, from, to time.Time, category string) ([]domain.SlotAvailability, int64, error)
	SetAvailability(ctx context.Context, version int64, from, to time.Time, category string, slots []domain.SlotAvailability) error
	InvalidateAvailability(ctx context.Context) error
}

type PlaceOrderInput struct {
	Key        domain.SlotKey
	SessionID  string
	Email      string
	ProductIDs []int64
}

type Engine struct {
	tx       repository.TxRunner
	slots    repository.SlotRepository
	holds    repository.HoldRepository
	bookings repository.BookingRepository
	products repository.ProductRepository
	calendar Calendar
	cache    AvailabilityCache
	events   *events.Publisher
	rules    domain.CategoryRules
	logger   *zap.Logger
	now      func() time.Time

	holdTTL      time.Duration
	paymentTTL   time.Duration
	slotLength   time.Duration
	maxRangeDays int
}

type Option func(*Engine)

func WithHoldTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.holdTTL = ttl
		}
	}
}

func WithPaymentTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.paymentTTL = ttl
		}
	}
}

func WithSlotLength(length time.Duration) Option {
	return func(e *Engine) {
		if length > 0 {
			e.slotLength = length
		}
	}
}

func WithMaxRangeDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.maxRangeDays = days
		}
	}
}

func WithCategoryRules(rules domain.CategoryRules) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

func WithProducts(products repository.ProductRepository) Option {
	return func(e *Engine) {
		e.products = products
	}
}

func WithCalendar(calendar Calendar) Option {
	return func(e *Engine) {
		e.calendar = calendar
	}
}

func WithCache(cache AvailabilityCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

func WithPublisher(p *events.Publisher) Option {
	return func(e *Engine) {
		e.events = p
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(
	tx repository.TxRunner,
	slots repository.SlotRepository,
	holds repository.HoldRepository,
	bookings repository.BookingRepository,
	opts ...Option,
) *Engine {
	e := &Engine{
		tx:           tx,
		slots:        slots,
		holds:        holds,
		bookings:     bookings,
		logger:       zap.NewNop(),
		now:          time.Now,
		holdTTL:      defaultHoldTTL,
		paymentTTL:   defaultPaymentTTL,
		slotLength:   defaultSlotLength,
		maxRangeDays: defaultMaxRangeDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check reports whether the session may pick the slot. It takes no locks.
func (e *Engine) Check(ctx context.Context, key domain.SlotKey, sessionID string, productIDs []int64) (domain.Availability, error) {
	categories, err := e.categories(ctx, productIDs)
	if err != nil {
		return domain.Availability{}, err
	}

	slot, err := e.slots.Get(ctx, key)
	if err != nil && !domain.IsNotFoundError(err) {
		return domain.Availability{}, err
	}

	return e.evaluate(ctx, slot, key, sessionID, categories, true, e.now())
}

// Hold claims one unit of capacity for the session, or extends its existing hold.
func (e *Engine) Hold(ctx context.Context, key domain.SlotKey, sessionID string, productIDs []int64) (domain.HoldResult, error) {
	if sessionID == "" {
		return domain.HoldResult{}, domain.ErrInvalidSession
	}

	categories, err := e.categories(ctx, productIDs)
	if err != nil {
		return domain.HoldResult{}, err
	}

	var result domain.HoldResult
	err = e.tx.WithTx(ctx, func(ctx context.Context) error {
		now := e.now()
		if err := e.sweep(ctx, now); err != nil {
			return err
		}

		slot, err := e.lockSlot(ctx, key)
		if err != nil {
			return err
		}

		avail, err := e.evaluate(ctx, slot, key, sessionID, categories, false, now)
		if err != nil {
			return err
		}

		existing, err := e.holds.GetActive(ctx, key, sessionID, now)
		if err != nil {
			return err
		}

		// An existing hold is extended even when capacity was lowered under it.
		if !avail.Available && (existing == nil || avail.Reason != domain.ReasonFull) {
			result = domain.HoldResult{Reason: avail.Reason}
			return nil
		}

		hold := &domain.SoftHold{
			SessionID: sessionID,
			Key:       key,
			CreatedAt: now,
			ExpiresAt: now.Add(e.holdTTL),
		}
		if err := e.holds.Upsert(ctx, hold); err != nil {
			return err
		}

		result = domain.HoldResult{Success: true, ExpiresAt: hold.ExpiresAt}
		return nil
	})
	if err != nil {
		return domain.HoldResult{}, fmt.Errorf("hold %s: %w", key, err)
	}

	if !result.Success {
		metrics.IncHoldAttempt(string(result.Reason))
		return result, nil
	}

	metrics.IncHoldAttempt("success")
	e.invalidate(ctx)
	e.events.Publish(ctx, kafka.SlotEvent{
		Type:       kafka.EventHoldPlaced,
		SlotDate:   key.DateString(),
		SlotTime:   key.Time,
		SessionID:  sessionID,
		ExpiresAt:  result.ExpiresAt,
		OccurredAt: e.now(),
	})
	return result, nil
}

// Release drops the session's hold. Releasing a missing hold succeeds.
func (e *Engine) Release(ctx context.Context, key domain.SlotKey, sessionID string) error {
	if sessionID == "" {
		return domain.ErrInvalidSession
	}

	deleted, err := e.holds.Delete(ctx, key, sessionID)
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if !deleted {
		return nil
	}

	e.invalidate(ctx)
	e.events.Publish(ctx, kafka.SlotEvent{
		Type:       kafka.EventHoldReleased,
		SlotDate:   key.DateString(),
		SlotTime:   key.Time,
		SessionID:  sessionID,
		OccurredAt: e.now(),
	})
	return nil
}

// CheckFinal is the gate before an order is created. It holds the slot row
// lock while counting. Without isUserOwnSelection only raw capacity counts.
func (e *Engine) CheckFinal(ctx context.Context, key domain.SlotKey, sessionID string, isUserOwnSelection bool, productIDs []int64) (domain.FinalCheck, error) {
	categories, err := e.categories(ctx, productIDs)
	if err != nil {
		return domain.FinalCheck{}, err
	}

	var avail domain.Availability
	err = e.tx.WithTx(ctx, func(ctx context.Context) error {
		now := e.now()
		if err := e.sweep(ctx, now); err != nil {
			return err
		}

		slot, err := e.lockSlot(ctx, key)
		if err != nil {
			return err
		}

		avail, err = e.evaluate(ctx, slot, key, sessionID, categories, isUserOwnSelection, now)
		return err
	})
	if err != nil {
		return domain.FinalCheck{}, fmt.Errorf("final check %s: %w", key, err)
	}

	return domain.FinalCheck{
		Valid:   avail.Available,
		Reason:  avail.Reason,
		Message: avail.Reason.Message(),
	}, nil
}

// PlaceOrder converts the session's claim into a pending booking. The final
// check and the insert share one row-locked transaction.
func (e *Engine) PlaceOrder(ctx context.Context, input PlaceOrderInput) (domain.PlaceOrderResult, error) {
	if input.SessionID == "" {
		return domain.PlaceOrderResult{}, domain.ErrInvalidSession
	}

	categories, err := e.categories(ctx, input.ProductIDs)
	if err != nil {
		return domain.PlaceOrderResult{}, err
	}

	var result domain.PlaceOrderResult
	err = e.tx.WithTx(ctx, func(ctx context.Context) error {
		now := e.now()
		if err := e.sweep(ctx, now); err != nil {
			return err
		}

		slot, err := e.lockSlot(ctx, input.Key)
		if err != nil {
			return err
		}

		avail, err := e.evaluate(ctx, slot, input.Key, input.SessionID, categories, false, now)
		if err != nil {
			return err
		}
		if !avail.Available {
			result = domain.PlaceOrderResult{Reason: avail.Reason, Message: avail.Reason.Message()}
			return nil
		}

		booking := &domain.Booking{
			OrderID:              uuid.NewString(),
			SessionID:            input.SessionID,
			Email:                input.Email,
			Key:                  input.Key,
			PaymentStatus:        domain.PaymentStatusPending,
			ReservationExpiresAt: now.Add(e.paymentTTL),
		}
		if err := e.bookings.Create(ctx, booking); err != nil {
			return err
		}
		if _, err := e.holds.Delete(ctx, input.Key, input.SessionID); err != nil {
			return err
		}

		result = domain.PlaceOrderResult{Success: true, Booking: booking}
		return nil
	})
	if err != nil {
		return domain.PlaceOrderResult{}, fmt.Errorf("place order %s: %w", input.Key, err)
	}

	if !result.Success {
		metrics.IncOrderPlaced(string(result.Reason))
		return result, nil
	}

	metrics.IncOrderPlaced("success")
	e.invalidate(ctx)
	e.events.Publish(ctx, kafka.SlotEvent{
		Type:       kafka.EventOrderPlaced,
		SlotDate:   input.Key.DateString(),
		SlotTime:   input.Key.Time,
		SessionID:  input.SessionID,
		OrderID:    result.Booking.OrderID,
		Email:      input.Email,
		ExpiresAt:  result.Booking.ReservationExpiresAt,
		OccurredAt: e.now(),
	})
	e.logger.Info("order placed",
		zap.String("order_id", result.Booking.OrderID),
		zap.String("slot", input.Key.String()))
	return result, nil
}

// SweepExpired deletes holds whose expiry has passed.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	n, err := e.holds.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}
	metrics.AddHoldsSwept(n)
	return n, nil
}

func (e *Engine) sweep(ctx context.Context, now time.Time) error {
	n, err := e.holds.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	metrics.AddHoldsSwept(n)
	return nil
}

// lockSlot returns nil without error when the slot does not exist.
func (e *Engine) lockSlot(ctx context.Context, key domain.SlotKey) (*domain.Slot, error) {
	slot, err := e.slots.GetForUpdate(ctx, key)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return slot, nil
}

// evaluate applies the slot rules in order: existence, operator switch,
// business calendar, category, then capacity. The session's own hold or
// booking only rescues a capacity failure, and only when withSelf is set.
func (e *Engine) evaluate(ctx context.Context, slot *domain.Slot, key domain.SlotKey, sessionID string, categories []string, withSelf bool, now time.Time) (domain.Availability, error) {
	if slot == nil {
		return domain.Availability{Reason: domain.ReasonNotFound}, nil
	}
	if !slot.IsAvailable {
		return domain.Availability{Reason: domain.ReasonDisabled}, nil
	}

	open, err := e.isOpen(ctx, key.Date)
	if err != nil {
		return domain.Availability{}, err
	}
	if !open {
		return domain.Availability{Reason: domain.ReasonClosed}, nil
	}

	if !e.categoryAllowed(slot, categories) {
		return domain.Availability{Reason: domain.ReasonCategoryMismatch}, nil
	}

	confirmed, err := e.bookings.CountActive(ctx, key)
	if err != nil {
		return domain.Availability{}, err
	}
	held, err := e.holds.CountActive(ctx, key, now, sessionID)
	if err != nil {
		return domain.Availability{}, err
	}

	remaining := slot.MaxCapacity - confirmed - held
	if remaining < 0 {
		remaining = 0
	}
	if remaining > 0 {
		return domain.Availability{Available: true, Remaining: remaining}, nil
	}

	if withSelf && sessionID != "" {
		own, err := e.ownsSlot(ctx, key, sessionID, now)
		if err != nil {
			return domain.Availability{}, err
		}
		if own {
			return domain.Availability{Available: true, Remaining: remaining}, nil
		}
	}

	return domain.Availability{Remaining: remaining, Reason: domain.ReasonFull}, nil
}

func (e *Engine) ownsSlot(ctx context.Context, key domain.SlotKey, sessionID string, now time.Time) (bool, error) {
	hold, err := e.holds.GetActive(ctx, key, sessionID, now)
	if err != nil {
		return false, err
	}
	if hold != nil {
		return true, nil
	}
	return e.bookings.HasActiveForSession(ctx, key, sessionID)
}

// categoryAllowed requires every product category to match the slot's tag
// when the slot has one, and the slot to fit each category's time windows.
func (e *Engine) categoryAllowed(slot *domain.Slot, categories []string) bool {
	for _, c := range categories {
		if c == "" {
			continue
		}
		if slot.Category != "" && slot.Category != c {
			return false
		}
		if !e.rules.AllowsSlot(c, slot.Key.Time, e.slotLength) {
			return false
		}
	}
	return true
}

func (e *Engine) categories(ctx context.Context, productIDs []int64) ([]string, error) {
	if e.products == nil || len(productIDs) == 0 {
		return nil, nil
	}
	categories, err := e.products.Categories(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve product categories: %w", err)
	}
	return categories, nil
}

func (e *Engine) invalidate(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateAvailability(ctx); err != nil {
		e.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

var _ UseCase = (*Engine)(nil)
