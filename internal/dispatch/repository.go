package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agape-erp/agape-erp/internal/platform/db"
)

var (
	ErrNotFound = errors.New("dispatch not found")
)

// Repository provides PostgreSQL backed persistence for dispatch documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the write operations that must share one transaction.
// Every mutation of a dispatch document runs through it so a failure at any
// step rolls back everything written before it.
type TxRepository interface {
	NextDocumentNumber(ctx context.Context, slotID int64, year int) (int64, error)
	InsertHeader(ctx context.Context, h *DocumentHeader) (int64, error)
	InsertLines(ctx context.Context, headerID int64, lines []DocumentLine) error
	DeleteLines(ctx context.Context, headerID int64) error
	GetHeaderForUpdate(ctx context.Context, id int64) (*DocumentHeader, error)
	UpdateDraftHeader(ctx context.Context, id int64, partnerID *int64, note *string) (bool, error)
	CancelDispatch(ctx context.Context, id, by int64, note *string) (bool, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn against a transactional view of the repository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const headerColumns = `
	id, slot_id, warehouse_id, document_number, document_date, partner_id,
	dispatch_number, note, created_by, created_at,
	posted, posted_by, posted_at, cancelled_by, cancelled_at, cancel_note
`

func scanHeader(row pgx.Row) (*DocumentHeader, error) {
	var h DocumentHeader
	var f headerFlags
	err := row.Scan(
		&h.ID, &h.SlotID, &h.WarehouseID, &h.DocumentNumber, &h.DocumentDate,
		&h.PartnerID, &h.DispatchNumber, &h.Note, &h.CreatedBy, &h.CreatedAt,
		&f.Posted, &f.PostedBy, &f.PostedAt, &f.CancelledBy, &f.CancelledAt, &f.CancelNote,
	)
	if err != nil {
		return nil, err
	}
	h.State = stateFromFlags(f)
	return &h, nil
}

// FindHeader retrieves a dispatch header by ID with all of its lines.
func (r *Repository) FindHeader(ctx context.Context, id int64) (*DocumentHeader, error) {
	query := fmt.Sprintf(`SELECT %s FROM dispatch_headers WHERE id = $1`, headerColumns)
	h, err := scanHeader(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	h.Lines = lines

	return h, nil
}

func (r *Repository) getLines(ctx context.Context, headerID int64) ([]DocumentLine, error) {
	query := `
		SELECT id, header_id, item_id, quantity, name_ref, uom_ref, tax_rate_ref, line_number
		FROM dispatch_lines
		WHERE header_id = $1
		ORDER BY line_number, id
	`
	rows, err := r.pool.Query(ctx, query, headerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []DocumentLine
	for rows.Next() {
		var line DocumentLine
		err := rows.Scan(
			&line.ID, &line.HeaderID, &line.ItemID, &line.Quantity,
			&line.NameRef, &line.UOMRef, &line.TaxRateRef, &line.LineNumber,
		)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

// SearchHeaders retrieves dispatch headers matching the filter, newest
// business date first, with the total match count for pagination.
func (r *Repository) SearchHeaders(ctx context.Context, f SearchFilter, limit, offset int) ([]DocumentHeader, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if f.SlotID != nil {
		conditions = append(conditions, fmt.Sprintf("slot_id = $%d", argPos))
		args = append(args, *f.SlotID)
		argPos++
	}

	if f.PartnerID != nil {
		conditions = append(conditions, fmt.Sprintf("partner_id = $%d", argPos))
		args = append(args, *f.PartnerID)
		argPos++
	}

	if f.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argPos))
		args = append(args, *f.CreatedBy)
		argPos++
	}

	if f.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("document_date >= $%d", argPos))
		args = append(args, *f.DateFrom)
		argPos++
	}

	if f.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("document_date <= $%d", argPos))
		args = append(args, *f.DateTo)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM dispatch_headers %s`, whereClause)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM dispatch_headers
		%s
		ORDER BY document_date DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, headerColumns, whereClause, argPos, argPos+1)

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var headers []DocumentHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		headers = append(headers, *h)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return headers, total, nil
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

// NextDocumentNumber allocates the next document number for the slot and
// year from the counter table. The upsert both creates the counter on first
// use and serializes concurrent allocations via the row lock it takes.
func (t *txRepo) NextDocumentNumber(ctx context.Context, slotID int64, year int) (int64, error) {
	query := `
		INSERT INTO document_counters (slot_id, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (slot_id, year)
		DO UPDATE SET last_number = document_counters.last_number + 1
		RETURNING last_number
	`
	var n int64
	err := t.tx.QueryRow(ctx, query, slotID, year).Scan(&n)
	return n, err
}

func (t *txRepo) InsertHeader(ctx context.Context, h *DocumentHeader) (int64, error) {
	var f headerFlags
	switch st := h.State.(type) {
	case Posted:
		f.Posted = true
		f.PostedBy, f.PostedAt = &st.By, &st.At
	case Cancelled:
		f.Posted = true
		f.PostedBy, f.PostedAt = &st.PostedBy, &st.PostedAt
		f.CancelledBy, f.CancelledAt = &st.By, &st.At
		if st.Note != "" {
			f.CancelNote = &st.Note
		}
	}

	query := `
		INSERT INTO dispatch_headers (
			slot_id, warehouse_id, document_number, document_date, partner_id,
			dispatch_number, note, created_by,
			posted, posted_by, posted_at, cancelled_by, cancelled_at, cancel_note
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`
	err := t.tx.QueryRow(ctx, query,
		h.SlotID, h.WarehouseID, h.DocumentNumber, h.DocumentDate, h.PartnerID,
		h.DispatchNumber, h.Note, h.CreatedBy,
		f.Posted, f.PostedBy, f.PostedAt, f.CancelledBy, f.CancelledAt, f.CancelNote,
	).Scan(&h.ID, &h.CreatedAt)
	return h.ID, err
}

func (t *txRepo) InsertLines(ctx context.Context, headerID int64, lines []DocumentLine) error {
	if len(lines) == 0 {
		return nil
	}

	query := `
		INSERT INTO dispatch_lines (
			header_id, item_id, quantity, name_ref, uom_ref, tax_rate_ref, line_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(query,
			headerID, line.ItemID, line.Quantity,
			line.NameRef, line.UOMRef, line.TaxRateRef, line.LineNumber,
		)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for range lines {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

func (t *txRepo) DeleteLines(ctx context.Context, headerID int64) error {
	query := `DELETE FROM dispatch_lines WHERE header_id = $1`
	_, err := t.tx.Exec(ctx, query, headerID)
	return err
}

// GetHeaderForUpdate reads the header under a row lock so the state it
// reports stays true for the rest of the transaction.
func (t *txRepo) GetHeaderForUpdate(ctx context.Context, id int64) (*DocumentHeader, error) {
	query := fmt.Sprintf(`SELECT %s FROM dispatch_headers WHERE id = $1 FOR UPDATE`, headerColumns)
	h, err := scanHeader(t.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

// UpdateDraftHeader applies a partial edit to a header that is still a
// draft. Omitted fields keep their stored values. The state predicate in
// the WHERE clause is the authoritative guard; zero rows means the document
// stopped being an editable draft.
func (t *txRepo) UpdateDraftHeader(ctx context.Context, id int64, partnerID *int64, note *string) (bool, error) {
	query := `
		UPDATE dispatch_headers
		SET partner_id = COALESCE($2, partner_id),
		    note = COALESCE($3, note)
		WHERE id = $1
		  AND posted = FALSE
		  AND cancelled_by IS NULL
		RETURNING id
	`
	var updated int64
	err := t.tx.QueryRow(ctx, query, id, partnerID, note).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CancelDispatch marks a posted, not yet cancelled dispatch as cancelled.
// Zero rows means the document was not in a cancellable state anymore.
func (t *txRepo) CancelDispatch(ctx context.Context, id, by int64, note *string) (bool, error) {
	query := `
		UPDATE dispatch_headers
		SET cancelled_by = $2,
		    cancelled_at = $3,
		    cancel_note = $4
		WHERE id = $1
		  AND posted = TRUE
		  AND cancelled_by IS NULL
		RETURNING id
	`
	var updated int64
	err := t.tx.QueryRow(ctx, query, id, by, time.Now(), note).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
