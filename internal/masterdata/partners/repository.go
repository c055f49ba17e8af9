package partners

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agape-erp/agape-erp/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Partner, int, error)
	Get(ctx context.Context, id int64) (Partner, error)
	Create(ctx context.Context, partner Partner) (Partner, error)
	Update(ctx context.Context, id int64, partner Partner) error
	Delete(ctx context.Context, id int64) error
	IsMissingOrInactive(ctx context.Context, id int64) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Partner, int, error) {
	query := `SELECT id, code, name, address, email, phone, active, created_at, updated_at FROM partners WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	if filters.IsActive != nil {
		argCount++
		query += ` AND COALESCE(active, TRUE) = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	countQuery := `SELECT COUNT(*) FROM partners WHERE 1=1`
	countArgs := []interface{}{}
	countArgCount := 0
	if filters.Search != "" {
		countArgCount++
		countQuery += ` AND (name ILIKE $` + strconv.Itoa(countArgCount) + ` OR code ILIKE $` + strconv.Itoa(countArgCount) + `)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		countArgCount++
		countQuery += ` AND COALESCE(active, TRUE) = $` + strconv.Itoa(countArgCount)
		countArgs = append(countArgs, *filters.IsActive)
	}

	var total int
	err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

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

	var partners []Partner
	for rows.Next() {
		var p Partner
		err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Address, &p.Email, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		partners = append(partners, p)
	}
	return partners, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Partner, error) {
	query := `SELECT id, code, name, address, email, phone, active, created_at, updated_at FROM partners WHERE id = $1`
	var p Partner
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Code, &p.Name, &p.Address, &p.Email, &p.Phone, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Partner{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, partner Partner) (Partner, error) {
	query := `INSERT INTO partners (code, name, address, email, phone, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, partner.Code, partner.Name, partner.Address, partner.Email, partner.Phone, partner.Active, now, now).Scan(&partner.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Partner{}, shared.ErrDuplicate
		}
		return Partner{}, err
	}
	partner.CreatedAt = now
	partner.UpdatedAt = now
	return partner, nil
}

func (r *repository) Update(ctx context.Context, id int64, partner Partner) error {
	query := `UPDATE partners SET code = $1, name = $2, address = $3, email = $4, phone = $5, active = $6, updated_at = $7 WHERE id = $8`
	tag, err := r.db.Exec(ctx, query, partner.Code, partner.Name, partner.Address, partner.Email, partner.Phone, partner.Active, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM partners WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// IsMissingOrInactive reports whether the partner cannot appear on new
// documents. The nullable active flag defaults to active.
func (r *repository) IsMissingOrInactive(ctx context.Context, id int64) (bool, error) {
	query := `SELECT COALESCE(active, TRUE) FROM partners WHERE id = $1`
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

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
