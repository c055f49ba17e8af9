package slots

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository answers slot, warehouse and tax rate lookups from the legacy
// mapping tables. It implements the slot directory the booking engine
// validates against.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// WarehouseForSlot resolves the warehouse a slot books into.
func (r *Repository) WarehouseForSlot(ctx context.Context, slotID int64) (int64, bool, error) {
	query := `SELECT warehouse_id FROM slot_mappings WHERE slot_id = $1`
	var whID int64
	err := r.db.QueryRow(ctx, query, slotID).Scan(&whID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return whID, true, nil
}

// SlotWarehouseExists reports whether the pair is a known booking target.
func (r *Repository) SlotWarehouseExists(ctx context.Context, slotID, warehouseID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM slot_mappings WHERE slot_id = $1 AND warehouse_id = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, slotID, warehouseID).Scan(&exists)
	return exists, err
}

// TaxRateFor returns the rate reference configured for the pair.
func (r *Repository) TaxRateFor(ctx context.Context, slotID, warehouseID int64) (int64, bool, error) {
	query := `SELECT tax_rate_ref FROM slot_tax_rates WHERE slot_id = $1 AND warehouse_id = $2`
	var rate int64
	err := r.db.QueryRow(ctx, query, slotID, warehouseID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rate, true, nil
}

// List returns all slot mappings, used by the lookup endpoint.
func (r *Repository) List(ctx context.Context) ([]SlotMapping, error) {
	query := `SELECT slot_id, warehouse_id, COALESCE(description, '') FROM slot_mappings ORDER BY slot_id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []SlotMapping
	for rows.Next() {
		var m SlotMapping
		if err := rows.Scan(&m.SlotID, &m.WarehouseID, &m.Description); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
