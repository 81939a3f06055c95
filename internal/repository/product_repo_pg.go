package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository interface {
	// Categories returns the distinct categories of the given products.
	Categories(ctx context.Context, productIDs []int64) ([]string, error)
}

type PGProductRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) ProductRepository {
	return &PGProductRepository{db: db}
}

func (r *PGProductRepository) Categories(ctx context.Context, productIDs []int64) ([]string, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	rows, err := conn(ctx, r.db).Query(ctx, `SELECT DISTINCT category FROM product WHERE id = ANY($1) ORDER BY category`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list product categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

var _ ProductRepository = (*PGProductRepository)(nil)
