package reclaimer

import (
	"context"
	"errors"
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
	defaultBatchSize = 100
	lockName         = "reclaimer"
	lockTTL          = 5 * time.Minute
)

// UseCase owns the payment lifecycle of placed orders.
type UseCase interface {
	ReclaimExpiredPendingOrders(ctx context.Context) (ReclaimResult, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Booking, error)
	MarkPaid(ctx context.Context, orderID string) (*domain.Booking, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Booking, error)
}

type Invalidator interface {
	InvalidateAvailability(ctx context.Context) error
}

// Locker keeps concurrent worker instances from sweeping the same batch.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
}

type ReclaimResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Skipped counts orders paid or cancelled between listing and locking.
	Skipped int `json:"skipped"`
}

type Service struct {
	tx        repository.TxRunner
	slots     repository.SlotRepository
	bookings  repository.BookingRepository
	cache     Invalidator
	locker    Locker
	events    *events.Publisher
	logger    *zap.Logger
	now       func() time.Time
	batchSize int
}

type Option func(*Service)

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithCache(cache Invalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLocker(locker Locker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(tx repository.TxRunner, slots repository.SlotRepository, bookings repository.BookingRepository, opts ...Option) *Service {
	s := &Service{
		tx:        tx,
		slots:     slots,
		bookings:  bookings,
		logger:    zap.NewNop(),
		now:       time.Now,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReclaimExpiredPendingOrders cancels pending orders whose payment window has
// passed. Each order is handled in its own transaction; a failure is counted
// and the sweep moves on.
func (s *Service) ReclaimExpiredPendingOrders(ctx context.Context) (ReclaimResult, error) {
	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, lockName, lockTTL)
		if err != nil {
			s.logger.Warn("reclaimer lock unavailable, running unlocked", zap.Error(err))
		} else if !ok {
			s.logger.Debug("reclaimer already running elsewhere")
			return ReclaimResult{}, nil
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockName, token); err != nil {
					s.logger.Warn("failed to release reclaimer lock", zap.Error(err))
				}
			}()
		}
	}

	now := s.now()
	expired, err := s.bookings.ListExpiredPending(ctx, now, s.batchSize)
	if err != nil {
		return ReclaimResult{}, fmt.Errorf("list expired orders: %w", err)
	}

	result := ReclaimResult{Processed: len(expired)}
	for _, b := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		cancelled, err := s.expireOne(ctx, b)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Error("failed to expire order", zap.String("order_id", b.OrderID), zap.Error(err))
		case !cancelled:
			result.Skipped++
		default:
			result.Succeeded++
			s.events.Publish(ctx, orderEvent(kafka.EventOrderExpired, b, now))
		}
	}

	metrics.AddReclaimed(result.Succeeded, result.Failed)
	if result.Succeeded > 0 {
		s.invalidate(ctx)
	}
	if result.Processed > 0 {
		s.logger.Info("reclaimed expired orders",
			zap.Int("processed", result.Processed),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped))
	}
	return result, nil
}

func (s *Service) expireOne(ctx context.Context, b domain.Booking) (bool, error) {
	var cancelled bool
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.slots.GetForUpdate(ctx, b.Key); err != nil && !errors.Is(err, domain.ErrSlotNotFound) {
			return err
		}

		ok, err := s.bookings.TransitionStatus(ctx, b.OrderID, domain.PaymentStatusCancelled, domain.PaymentStatusPending)
		if err != nil {
			return err
		}
		cancelled = ok
		return nil
	})
	return cancelled, err
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Booking, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	return s.bookings.Get(ctx, orderID)
}

// MarkPaid records a captured payment. Paying a paid order is a no-op.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*domain.Booking, error) {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch current.PaymentStatus {
	case domain.PaymentStatusPaid:
		return current, nil
	case domain.PaymentStatusCancelled:
		return nil, domain.ErrOrderCancelled
	}

	ok, err := s.bookings.TransitionStatus(ctx, orderID, domain.PaymentStatusPaid, domain.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("mark paid %s: %w", orderID, err)
	}

	updated, err := s.bookings.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok && updated.PaymentStatus == domain.PaymentStatusCancelled {
		return nil, domain.ErrOrderCancelled
	}

	if ok {
		metrics.IncOrderTransition(string(domain.PaymentStatusPaid))
		s.events.Publish(ctx, orderEvent(kafka.EventOrderPaid, *updated, s.now()))
	}
	return updated, nil
}

// CancelOrder cancels an order and returns its unit to the slot. Cancelling
// a cancelled order is a no-op.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*domain.Booking, error) {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.PaymentStatus == domain.PaymentStatusCancelled {
		return current, nil
	}

	ok, err := s.bookings.TransitionStatus(ctx, orderID, domain.PaymentStatusCancelled, domain.PaymentStatusPending, domain.PaymentStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	updated, err := s.bookings.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if ok {
		metrics.IncOrderTransition(string(domain.PaymentStatusCancelled))
		s.invalidate(ctx)
		s.events.Publish(ctx, orderEvent(kafka.EventOrderCancelled, *updated, s.now()))
	}
	return updated, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailability(ctx); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

func orderEvent(t kafka.EventType, b domain.Booking, now time.Time) kafka.SlotEvent {
	return kafka.SlotEvent{
		Type:       t,
		SlotDate:   b.Key.DateString(),
		SlotTime:   b.Key.Time,
		SessionID:  b.SessionID,
		OrderID:    b.OrderID,
		Email:      b.Email,
		ExpiresAt:  b.ReservationExpiresAt,
		OccurredAt: now,
	}
}

var _ UseCase = (*Service)(nil)
