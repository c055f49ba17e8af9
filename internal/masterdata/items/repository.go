package items

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agape-erp/agape-erp/internal/dispatch"
	"github.com/agape-erp/agape-erp/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error)
	Get(ctx context.Context, id int64) (Item, error)
	IsMissingOrInactive(ctx context.Context, id int64) (bool, error)
	FindAttributes(ctx context.Context, itemIDs []int64) (map[int64]dispatch.ItemAttributes, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Item, int, error) {
	query := `SELECT id, code, name, name_ref, uom_ref, active FROM items WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	if filters.IsActive != nil {
		argCount++
		query += ` AND active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	countQuery := `SELECT COUNT(*) FROM items WHERE 1=1`
	countArgs := []interface{}{}
	countArgCount := 0
	if filters.Search != "" {
		countArgCount++
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(countArgCount) + ` OR code ILIKE $` + strconv.Itoa(countArgCount) + `)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		countArgCount++
		countQuery += ` AND active = $` + strconv.Itoa(countArgCount)
		countArgs = append(countArgs, *filters.IsActive)
	}

	var total int
	err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.NameRef, &it.UOMRef, &it.Active); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Item, error) {
	query := `SELECT id, code, name, name_ref, uom_ref, active FROM items WHERE id = $1`
	var it Item
	err := r.db.QueryRow(ctx, query, id).Scan(&it.ID, &it.Code, &it.Name, &it.NameRef, &it.UOMRef, &it.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.ErrNotFound
	}
	return it, err
}

// IsMissingOrInactive reports whether the item cannot appear on new
// dispatch lines.
func (r *repository) IsMissingOrInactive(ctx context.Context, id int64) (bool, error) {
	query := `SELECT active FROM items WHERE id = $1`
	var active bool
	err := r.db.QueryRow(ctx, query, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !active, nil
}

// FindAttributes loads line attribute references for all requested items in
// one query. Items without a row simply stay absent from the map.
func (r *repository) FindAttributes(ctx context.Context, itemIDs []int64) (map[int64]dispatch.ItemAttributes, error) {
	query := `SELECT id, name_ref, uom_ref FROM items WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attrs := make(map[int64]dispatch.ItemAttributes, len(itemIDs))
	for rows.Next() {
		var id int64
		var a dispatch.ItemAttributes
		if err := rows.Scan(&id, &a.NameRef, &a.UOMRef); err != nil {
			return nil, err
		}
		attrs[id] = a
	}
	return attrs, rows.Err()
}
