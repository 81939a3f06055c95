package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/pickupslots/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	// CountActive counts bookings on key that are not cancelled.
	CountActive(ctx context.Context, key domain.SlotKey) (int, error)
	HasActiveForSession(ctx context.Context, key domain.SlotKey, sessionID string) (bool, error)
	Create(ctx context.Context, booking *domain.Booking) error
	Get(ctx context.Context, orderID string) (*domain.Booking, error)
	// TransitionStatus moves the order to status only when its current status is
	// one of from. It reports whether a row changed.
	TransitionStatus(ctx context.Context, orderID string, to domain.PaymentStatus, from ...domain.PaymentStatus) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
	CountActiveByRange(ctx context.Context, from, to time.Time) (map[string]int, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `order_id::text, session_id, email, slot_date, slot_time, payment_status, reservation_expires_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.OrderID, &b.SessionID, &b.Email, &b.Key.Date, &b.Key.Time, &b.PaymentStatus, &b.ReservationExpiresAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) CountActive(ctx context.Context, key domain.SlotKey) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM booking
		WHERE slot_date=$1 AND slot_time=$2 AND payment_status <> $3`,
		key.Date, key.Time, domain.PaymentStatusCancelled).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings %s: %w", key, err)
	}
	return n, nil
}

func (r *PGBookingRepository) HasActiveForSession(ctx context.Context, key domain.SlotKey, sessionID string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM booking
		WHERE slot_date=$1 AND slot_time=$2 AND session_id=$3 AND payment_status <> $4)`,
		key.Date, key.Time, sessionID, domain.PaymentStatusCancelled).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session booking %s: %w", key, err)
	}
	return exists, nil
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO booking (order_id, session_id, email, slot_date, slot_time, payment_status, reservation_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		booking.OrderID, booking.SessionID, booking.Email, booking.Key.Date, booking.Key.Time, booking.PaymentStatus, booking.ReservationExpiresAt).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) Get(ctx context.Context, orderID string) (*domain.Booking, error) {
	b, err := scanBooking(conn(ctx, r.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM booking WHERE order_id=$1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get booking %s: %w", orderID, err)
	}
	return b, nil
}

func (r *PGBookingRepository) TransitionStatus(ctx context.Context, orderID string, to domain.PaymentStatus, from ...domain.PaymentStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE booking SET payment_status=$1, updated_at=now()
		WHERE order_id=$2 AND payment_status = ANY($3)`, to, orderID, allowed)
	if err != nil {
		return false, fmt.Errorf("update booking %s: %w", orderID, err)
	}
	return res.RowsAffected() > 0, nil
}

func (r *PGBookingRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+bookingColumns+` FROM booking
		WHERE payment_status=$1 AND reservation_expires_at < $2
		ORDER BY reservation_expires_at
		LIMIT $3`, domain.PaymentStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired bookings: %w", err)
	}
	defer rows.Close()

	expired := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		expired = append(expired, *b)
	}
	return expired, rows.Err()
}

func (r *PGBookingRepository) CountActiveByRange(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT slot_date, slot_time, COUNT(*) FROM booking
		WHERE slot_date BETWEEN $1 AND $2 AND payment_status <> $3
		GROUP BY slot_date, slot_time`, from, to, domain.PaymentStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("count bookings by range: %w", err)
	}
	return scanCounts(rows)
}

var _ BookingRepository = (*PGBookingRepository)(nil)
