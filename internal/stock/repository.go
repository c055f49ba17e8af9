package stock

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads stock levels maintained by the legacy system.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Totals returns the item count and summed quantity across all levels.
func (r *Repository) Totals(ctx context.Context) (int64, decimal.Decimal, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM stock_levels`
	var count int64
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, query).Scan(&count, &total)
	return count, total, err
}

func (r *Repository) scanItemQuantities(ctx context.Context, query string, args ...interface{}) ([]ItemQuantity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemQuantity
	for rows.Next() {
		var iq ItemQuantity
		if err := rows.Scan(&iq.ItemID, &iq.Code, &iq.Name, &iq.Quantity); err != nil {
			return nil, err
		}
		out = append(out, iq)
	}
	return out, rows.Err()
}

// TopMissing lists items with no stock left, alphabetically.
func (r *Repository) TopMissing(ctx context.Context, limit int) ([]ItemQuantity, error) {
	query := `
		SELECT sl.item_id, i.code, i.name, sl.quantity
		FROM stock_levels sl
		JOIN items i ON i.id = sl.item_id
		WHERE sl.quantity <= 0
		ORDER BY i.name
		LIMIT $1
	`
	return r.scanItemQuantities(ctx, query, limit)
}

// TopNeedsFill lists items furthest below their minimum level.
func (r *Repository) TopNeedsFill(ctx context.Context, limit int) ([]ItemQuantity, error) {
	query := `
		SELECT sl.item_id, i.code, i.name, sl.quantity
		FROM stock_levels sl
		JOIN items i ON i.id = sl.item_id
		WHERE sl.quantity > 0 AND sl.quantity < sl.min_quantity
		ORDER BY (sl.min_quantity - sl.quantity) DESC
		LIMIT $1
	`
	return r.scanItemQuantities(ctx, query, limit)
}

// TopInStock lists the largest stock positions.
func (r *Repository) TopInStock(ctx context.Context, limit int) ([]ItemQuantity, error) {
	query := `
		SELECT sl.item_id, i.code, i.name, sl.quantity
		FROM stock_levels sl
		JOIN items i ON i.id = sl.item_id
		ORDER BY sl.quantity DESC
		LIMIT $1
	`
	return r.scanItemQuantities(ctx, query, limit)
}
