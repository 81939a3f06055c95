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

type SlotRepository interface {
	Get(ctx context.Context, key domain.SlotKey) (*domain.Slot, error)
	// GetForUpdate locks the slot row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, key domain.SlotKey) (*domain.Slot, error)
	ListRange(ctx context.Context, from, to time.Time) ([]domain.Slot, error)
	Upsert(ctx context.Context, slot *domain.Slot) error
	Delete(ctx context.Context, key domain.SlotKey) error
}

type PGSlotRepository struct {
	db *pgxpool.Pool
}

func NewSlotRepository(db *pgxpool.Pool) SlotRepository {
	return &PGSlotRepository{db: db}
}

const slotColumns = `slot_date, slot_time, max_capacity, is_available, category, created_at, updated_at`

func scanSlot(row pgx.Row) (*domain.Slot, error) {
	var s domain.Slot
	if err := row.Scan(&s.Key.Date, &s.Key.Time, &s.MaxCapacity, &s.IsAvailable, &s.Category, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PGSlotRepository) Get(ctx context.Context, key domain.SlotKey) (*domain.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM slot_unit WHERE slot_date=$1 AND slot_time=$2`, key)
}

func (r *PGSlotRepository) GetForUpdate(ctx context.Context, key domain.SlotKey) (*domain.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM slot_unit WHERE slot_date=$1 AND slot_time=$2 FOR UPDATE`, key)
}

func (r *PGSlotRepository) get(ctx context.Context, query string, key domain.SlotKey) (*domain.Slot, error) {
	s, err := scanSlot(conn(ctx, r.db).QueryRow(ctx, query, key.Date, key.Time))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot %s: %w", key, err)
	}
	return s, nil
}

func (r *PGSlotRepository) ListRange(ctx context.Context, from, to time.Time) ([]domain.Slot, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+slotColumns+` FROM slot_unit
		WHERE slot_date BETWEEN $1 AND $2
		ORDER BY slot_date, slot_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	slots := make([]domain.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

func (r *PGSlotRepository) Upsert(ctx context.Context, slot *domain.Slot) error {
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO slot_unit (slot_date, slot_time, max_capacity, is_available, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slot_date, slot_time) DO UPDATE
		SET max_capacity = EXCLUDED.max_capacity,
			is_available = EXCLUDED.is_available,
			category = EXCLUDED.category,
			updated_at = now()
		RETURNING created_at, updated_at`,
		slot.Key.Date, slot.Key.Time, slot.MaxCapacity, slot.IsAvailable, slot.Category).
		Scan(&slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", slot.Key, err)
	}
	return nil
}

func (r *PGSlotRepository) Delete(ctx context.Context, key domain.SlotKey) error {
	res, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM slot_unit WHERE slot_date=$1 AND slot_time=$2`, key.Date, key.Time)
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", key, err)
	}
	if res.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

var _ SlotRepository = (*PGSlotRepository)(nil)
