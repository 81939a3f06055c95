package slots

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/metrics"
	"github.com/Domenick1991/pickupslots/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultWarnThreshold = 100
	defaultSlotLength    = 30 * time.Minute
)

type UseCase interface {
	Preview(ctx context.Context, target Target) (Preview, error)
	BulkUpsert(ctx context.Context, target Target, patch Patch) (BulkResult, error)
	BulkDelete(ctx context.Context, target Target) (BulkResult, error)
	UpsertSlot(ctx context.Context, input SlotInput) (*domain.Slot, error)
	DeleteSlot(ctx context.Context, key domain.SlotKey) error
}

type Invalidator interface {
	InvalidateAvailability(ctx context.Context) error
}

// Preview is advisory: TooMany never blocks an operation.
type Preview struct {
	Count   int  `json:"count"`
	TooMany bool `json:"too_many"`
}

// Patch carries the fields to change. Nil fields are left untouched.
type Patch struct {
	Capacity    *int    `json:"capacity,omitempty"`
	IsAvailable *bool   `json:"is_available,omitempty"`
	Category    *string `json:"category,omitempty"`
}

func (p Patch) empty() bool {
	return p.Capacity == nil && p.IsAvailable == nil && p.Category == nil
}

type SlotInput struct {
	Key         domain.SlotKey
	Capacity    int
	IsAvailable bool
	Category    string
}

type SlotError struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Error string `json:"error"`
}

type BulkResult struct {
	Count   int         `json:"count"`
	TooMany bool        `json:"too_many"`
	Applied int         `json:"applied"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Errors  []SlotError `json:"errors,omitempty"`
}

func (r *BulkResult) fail(key domain.SlotKey, err error) {
	r.Failed++
	r.Errors = append(r.Errors, SlotError{Date: key.DateString(), Time: key.Time, Error: err.Error()})
}

type Service struct {
	tx            repository.TxRunner
	slots         repository.SlotRepository
	bookings      repository.BookingRepository
	cache         Invalidator
	rules         domain.CategoryRules
	slotLength    time.Duration
	warnThreshold int
	logger        *zap.Logger
}

type Option func(*Service)

func WithCategoryRules(rules domain.CategoryRules) Option {
	return func(s *Service) {
		s.rules = rules
	}
}

func WithSlotLength(length time.Duration) Option {
	return func(s *Service) {
		if length > 0 {
			s.slotLength = length
		}
	}
}

func WithWarnThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.warnThreshold = n
		}
	}
}

func WithCache(cache Invalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(tx repository.TxRunner, slots repository.SlotRepository, bookings repository.BookingRepository, opts ...Option) *Service {
	s := &Service{
		tx:            tx,
		slots:         slots,
		bookings:      bookings,
		slotLength:    defaultSlotLength,
		warnThreshold: defaultWarnThreshold,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Preview(_ context.Context, target Target) (Preview, error) {
	keys, err := Expand(target)
	if err != nil {
		return Preview{}, err
	}
	return s.preview(len(keys)), nil
}

func (s *Service) preview(n int) Preview {
	return Preview{Count: n, TooMany: n >= s.warnThreshold}
}

// BulkUpsert applies patch to every targeted slot. Missing slots are created
// only when the patch carries a positive capacity; otherwise they are skipped.
// A non-positive capacity fails per slot for slots that already exist.
func (s *Service) BulkUpsert(ctx context.Context, target Target, patch Patch) (BulkResult, error) {
	keys, err := Expand(target)
	if err != nil {
		return BulkResult{}, err
	}

	p := s.preview(len(keys))
	result := BulkResult{Count: p.Count, TooMany: p.TooMany}
	if patch.empty() {
		return result, domain.ErrEmptyPatch
	}
	metrics.ObserveBulkTargets(len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		applied, err := s.upsertOne(ctx, key, patch)
		switch {
		case err != nil:
			result.fail(key, err)
		case applied:
			result.Applied++
		default:
			result.Skipped++
		}
	}

	s.afterWrite(ctx, "bulk upsert", result)
	return result, nil
}

func (s *Service) upsertOne(ctx context.Context, key domain.SlotKey, patch Patch) (bool, error) {
	applied := false
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		slot, err := s.slots.GetForUpdate(ctx, key)
		if err != nil && !errors.Is(err, domain.ErrSlotNotFound) {
			return err
		}

		if slot == nil {
			if patch.Capacity == nil || *patch.Capacity <= 0 {
				return nil
			}
			slot = &domain.Slot{Key: key, IsAvailable: true}
		}

		if patch.Capacity != nil {
			if *patch.Capacity <= 0 {
				return domain.ErrInvalidCapacity
			}
			slot.MaxCapacity = *patch.Capacity
		}
		if patch.IsAvailable != nil {
			slot.IsAvailable = *patch.IsAvailable
		}
		if patch.Category != nil {
			if err := s.validateCategory(key, *patch.Category); err != nil {
				return err
			}
			slot.Category = *patch.Category
		}

		if err := s.slots.Upsert(ctx, slot); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// BulkDelete removes every targeted slot that has no live bookings.
func (s *Service) BulkDelete(ctx context.Context, target Target) (BulkResult, error) {
	keys, err := Expand(target)
	if err != nil {
		return BulkResult{}, err
	}

	p := s.preview(len(keys))
	result := BulkResult{Count: p.Count, TooMany: p.TooMany}
	metrics.ObserveBulkTargets(len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := s.deleteOne(ctx, key)
		switch {
		case errors.Is(err, domain.ErrSlotNotFound):
			result.Skipped++
		case err != nil:
			result.fail(key, err)
		default:
			result.Applied++
		}
	}

	s.afterWrite(ctx, "bulk delete", result)
	return result, nil
}

func (s *Service) UpsertSlot(ctx context.Context, input SlotInput) (*domain.Slot, error) {
	if input.Capacity <= 0 {
		return nil, domain.ErrInvalidCapacity
	}
	if err := s.validateCategory(input.Key, input.Category); err != nil {
		return nil, err
	}

	slot := &domain.Slot{
		Key:         input.Key,
		MaxCapacity: input.Capacity,
		IsAvailable: input.IsAvailable,
		Category:    input.Category,
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.slots.GetForUpdate(ctx, input.Key); err != nil && !errors.Is(err, domain.ErrSlotNotFound) {
			return err
		}
		return s.slots.Upsert(ctx, slot)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return slot, nil
}

func (s *Service) DeleteSlot(ctx context.Context, key domain.SlotKey) error {
	if err := s.deleteOne(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) deleteOne(ctx context.Context, key domain.SlotKey) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.slots.GetForUpdate(ctx, key); err != nil {
			return err
		}

		booked, err := s.bookings.CountActive(ctx, key)
		if err != nil {
			return err
		}
		if booked > 0 {
			return domain.ErrSlotHasBookings
		}

		return s.slots.Delete(ctx, key)
	})
}

func (s *Service) validateCategory(key domain.SlotKey, category string) error {
	if !s.rules.AllowsSlot(category, key.Time, s.slotLength) {
		return domain.ErrCategoryMismatch
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, op string, result BulkResult) {
	s.logger.Info(op,
		zap.Int("count", result.Count),
		zap.Bool("too_many", result.TooMany),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	if result.Applied > 0 {
		s.invalidate(ctx)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAvailability(ctx); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}

var _ UseCase = (*Service)(nil)
