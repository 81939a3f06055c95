package api

import (
	"context"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/Domenick1991/pickupslots/internal/service/reclaimer"
	"github.com/Domenick1991/pickupslots/internal/service/reservation"
	"github.com/Domenick1991/pickupslots/internal/service/slots"
	"github.com/stretchr/testify/mock"
)

type MockReservationUseCase struct {
	mock.Mock
}

func (m *MockReservationUseCase) Check(ctx context.Context, key domain.SlotKey, sessionID string, productIDs []int64) (domain.Availability, error) {
	args := m.Called(ctx, key, sessionID, productIDs)
	return args.Get(0).(domain.Availability), args.Error(1)
}

func (m *MockReservationUseCase) Hold(ctx context.Context, key domain.SlotKey, sessionID string, productIDs []int64) (domain.HoldResult, error) {
	args := m.Called(ctx, key, sessionID, productIDs)
	return args.Get(0).(domain.HoldResult), args.Error(1)
}

func (m *MockReservationUseCase) Release(ctx context.Context, key domain.SlotKey, sessionID string) error {
	args := m.Called(ctx, key, sessionID)
	return args.Error(0)
}

func (m *MockReservationUseCase) CheckFinal(ctx context.Context, key domain.SlotKey, sessionID string, isUserOwnSelection bool, productIDs []int64) (domain.FinalCheck, error) {
	args := m.Called(ctx, key, sessionID, isUserOwnSelection, productIDs)
	return args.Get(0).(domain.FinalCheck), args.Error(1)
}

func (m *MockReservationUseCase) PlaceOrder(ctx context.Context, input reservation.PlaceOrderInput) (domain.PlaceOrderResult, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(domain.PlaceOrderResult), args.Error(1)
}

func (m *MockReservationUseCase) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReservationUseCase) Availability(ctx context.Context, from, to time.Time, category string) ([]domain.SlotAvailability, error) {
	args := m.Called(ctx, from, to, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SlotAvailability), args.Error(1)
}

type MockOrderUseCase struct {
	mock.Mock
}

func (m *MockOrderUseCase) ReclaimExpiredPendingOrders(ctx context.Context) (reclaimer.ReclaimResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(reclaimer.ReclaimResult), args.Error(1)
}

func (m *MockOrderUseCase) GetOrder(ctx context.Context, orderID string) (*domain.Booking, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockOrderUseCase) MarkPaid(ctx context.Context, orderID string) (*domain.Booking, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockOrderUseCase) CancelOrder(ctx context.Context, orderID string) (*domain.Booking, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockSlotUseCase struct {
	mock.Mock
}

func (m *MockSlotUseCase) Preview(ctx context.Context, target slots.Target) (slots.Preview, error) {
	args := m.Called(ctx, target)
	return args.Get(0).(slots.Preview), args.Error(1)
}

func (m *MockSlotUseCase) BulkUpsert(ctx context.Context, target slots.Target, patch slots.Patch) (slots.BulkResult, error) {
	args := m.Called(ctx, target, patch)
	return args.Get(0).(slots.BulkResult), args.Error(1)
}

func (m *MockSlotUseCase) BulkDelete(ctx context.Context, target slots.Target) (slots.BulkResult, error) {
	args := m.Called(ctx, target)
	return args.Get(0).(slots.BulkResult), args.Error(1)
}

func (m *MockSlotUseCase) UpsertSlot(ctx context.Context, input slots.SlotInput) (*domain.Slot, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Slot), args.Error(1)
}

func (m *MockSlotUseCase) DeleteSlot(ctx context.Context, key domain.SlotKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
