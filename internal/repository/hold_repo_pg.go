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

type HoldRepository interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// CountActive counts unexpired holds on key, ignoring excludeSession's own hold.
	CountActive(ctx context.Context, key domain.SlotKey, now time.Time, excludeSession string) (int, error)
	// GetActive returns nil when the session holds nothing unexpired on key.
	GetActive(ctx context.Context, key domain.SlotKey, sessionID string, now time.Time) (*domain.SoftHold, error)
	Upsert(ctx context.Context, hold *domain.SoftHold) error
	Delete(ctx context.Context, key domain.SlotKey, sessionID string) (bool, error)
	// CountActiveByRange returns unexpired hold counts keyed by SlotKey.String().
	CountActiveByRange(ctx context.Context, from, to, now time.Time) (map[string]int, error)
}

type PGHoldRepository struct {
	db *pgxpool.Pool
}

func NewHoldRepository(db *pgxpool.Pool) HoldRepository {
	return &PGHoldRepository{db: db}
}

func (r *PGHoldRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM soft_hold WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired holds: %w", err)
	}
	return res.RowsAffected(), nil
}

func (r *PGHoldRepository) CountActive(ctx context.Context, key domain.SlotKey, now time.Time, excludeSession string) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT COUNT(*) FROM soft_hold
		WHERE slot_date=$1 AND slot_time=$2 AND expires_at > $3 AND session_id <> $4`,
		key.Date, key.Time, now, excludeSession).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count holds %s: %w", key, err)
	}
	return n, nil
}

func (r *PGHoldRepository) GetActive(ctx context.Context, key domain.SlotKey, sessionID string, now time.Time) (*domain.SoftHold, error) {
	h := domain.SoftHold{SessionID: sessionID, Key: key}
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT created_at, expires_at FROM soft_hold
		WHERE slot_date=$1 AND slot_time=$2 AND session_id=$3 AND expires_at > $4`,
		key.Date, key.Time, sessionID, now).Scan(&h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get hold %s: %w", key, err)
	}
	return &h, nil
}

func (r *PGHoldRepository) Upsert(ctx context.Context, hold *domain.SoftHold) error {
	err := conn(ctx, r.db).QueryRow(ctx, `INSERT INTO soft_hold (session_id, slot_date, slot_time, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, slot_date, slot_time) DO UPDATE
		SET expires_at = GREATEST(soft_hold.expires_at, EXCLUDED.expires_at)
		RETURNING created_at, expires_at`,
		hold.SessionID, hold.Key.Date, hold.Key.Time, hold.CreatedAt, hold.ExpiresAt).
		Scan(&hold.CreatedAt, &hold.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert hold %s: %w", hold.Key, err)
	}
	return nil
}

func (r *PGHoldRepository) Delete(ctx context.Context, key domain.SlotKey, sessionID string) (bool, error) {
	res, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM soft_hold WHERE slot_date=$1 AND slot_time=$2 AND session_id=$3`,
		key.Date, key.Time, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete hold %s: %w", key, err)
	}
	return res.RowsAffected() > 0, nil
}

func (r *PGHoldRepository) CountActiveByRange(ctx context.Context, from, to, now time.Time) (map[string]int, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT slot_date, slot_time, COUNT(*) FROM soft_hold
		WHERE slot_date BETWEEN $1 AND $2 AND expires_at > $3
		GROUP BY slot_date, slot_time`, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("count holds by range: %w", err)
	}
	return scanCounts(rows)
}

func scanCounts(rows pgx.Rows) (map[string]int, error) {
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key domain.SlotKey
			n   int
		)
		if err := rows.Scan(&key.Date, &key.Time, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[key.String()] = n
	}
	return counts, rows.Err()
}

var _ HoldRepository = (*PGHoldRepository)(nil)
