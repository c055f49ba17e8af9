package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/agape-erp/agape-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindHeader(ctx context.Context, id int64) (*DocumentHeader, error)
	SearchHeaders(ctx context.Context, f SearchFilter, limit, offset int) ([]DocumentHeader, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// outcomeError carries a request-scoped failure out of a transaction
// callback so the transaction rolls back before the failure becomes a
// Result. The code picks the envelope constructor.
type outcomeError struct {
	code int
	msg  string
}

func (e *outcomeError) Error() string { return e.msg }

func failValidation(msg string) error {
	return &outcomeError{code: 400, msg: msg}
}

func failState(msg string) error {
	return &outcomeError{code: 409, msg: msg}
}

func failMissing(msg string) error {
	return &outcomeError{code: 404, msg: msg}
}

func resultFromOutcome[T any](e *outcomeError) Result[T] {
	return Result[T]{Code: e.code, Message: e.msg}
}

func internalFailure[T any](log *slog.Logger, op string, err error) Result[T] {
	log.Error(op+" failed", "error", err)
	return internal[T]("Internal error.")
}

// Service coordinates dispatch booking, editing, cancellation and search.
type Service struct {
	repo        RepositoryPort
	validator   *ReferenceValidator
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	log         *slog.Logger
	now         func() time.Time
}

// NewService builds Service. The audit port and idempotency store are
// optional; a nil store disables idempotency checks entirely.
func NewService(repo RepositoryPort, slots SlotDirectory, partners PartnerDirectory, items ItemDirectory, audit AuditPort, idem *shared.IdempotencyStore, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		validator:   &ReferenceValidator{Slots: slots, Partners: partners, Items: items},
		audit:       audit,
		idempotency: idem,
		log:         log,
		now:         time.Now,
	}
}

// prepared is one fully resolved booking: validated references, resolved
// warehouse and tax rate, and lines ready to insert.
type prepared struct {
	req         BookingRequest
	warehouseID int64
	date        time.Time
	lines       []DocumentLine
}

// prepareAll runs the whole read phase for a batch in two strict passes:
// fixed-order reference validation for every request first, then tax rate
// resolution (memoized per (slot, warehouse) pair) and one batched attribute
// query covering every distinct item in the batch. Validation finishes for
// the full batch before any resolution starts, so a resolution failure never
// masks a later request's reference failure. The first failure aborts with
// its request-scoped message; nothing is written yet.
func (s *Service) prepareAll(ctx context.Context, reqs []BookingRequest) ([]prepared, error) {
	resolver := NewAttributeResolver(s.validator.Slots, s.validator.Items)

	out := make([]prepared, len(reqs))
	for i := range reqs {
		whID, msg, err := s.validator.Validate(ctx, i, &reqs[i])
		if err != nil {
			return nil, err
		}
		if msg != "" {
			return nil, failValidation(msg)
		}

		date := s.now()
		if reqs[i].DocumentDate != nil {
			date = *reqs[i].DocumentDate
		}

		out[i] = prepared{req: reqs[i], warehouseID: whID, date: date}
	}

	taxRefs := make([]int64, len(reqs))
	for i := range out {
		rate, found, err := resolver.ResolveTaxRate(ctx, out[i].req.SlotID, out[i].warehouseID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, failValidation(fmt.Sprintf("no tax rate for slotId=%d in warehouse %d", out[i].req.SlotID, out[i].warehouseID))
		}
		taxRefs[i] = rate
	}

	var allItemIDs []int64
	seen := make(map[int64]struct{})
	for i := range reqs {
		for _, id := range reqs[i].ItemIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			allItemIDs = append(allItemIDs, id)
		}
	}

	attrs, err := resolver.ResolveItemAttributes(ctx, allItemIDs)
	if err != nil {
		return nil, err
	}

	for i := range out {
		lines, err := PrepareLines(out[i].req.Items, attrs, taxRefs[i], 1)
		if err != nil {
			return nil, failValidation(fmt.Sprintf("Request[%d]: %s", i, err))
		}
		out[i].lines = lines
	}

	return out, nil
}

// bookAll writes every prepared booking in one transaction: number, header
// and lines per request, in request order. Any failure rolls back the whole
// batch.
func (s *Service) bookAll(ctx context.Context, actorID int64, batch []prepared) ([]*DocumentHeader, error) {
	headers := make([]*DocumentHeader, len(batch))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i := range batch {
			p := &batch[i]

			number, err := tx.NextDocumentNumber(ctx, p.req.SlotID, p.date.Year())
			if err != nil {
				return fmt.Errorf("allocate document number: %w", err)
			}

			var state State = Draft{}
			if p.req.PostNow() {
				state = Draft{}.Post(actorID, s.now())
			}

			h := &DocumentHeader{
				SlotID:         p.req.SlotID,
				WarehouseID:    p.warehouseID,
				DocumentNumber: number,
				DocumentDate:   p.date,
				PartnerID:      p.req.PartnerID,
				DispatchNumber: p.req.DispatchNumber,
				Note:           p.req.Note,
				CreatedBy:      actorID,
				State:          state,
			}
			id, err := tx.InsertHeader(ctx, h)
			if err != nil {
				return fmt.Errorf("insert header: %w", err)
			}

			for j := range p.lines {
				p.lines[j].HeaderID = id
			}
			if err := tx.InsertLines(ctx, id, p.lines); err != nil {
				return fmt.Errorf("insert lines: %w", err)
			}
			h.Lines = p.lines
			headers[i] = h
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// BookOne books a single dispatch note. The request validates exactly like
// a bulk batch of one, so its failure messages carry index 0.
func (s *Service) BookOne(ctx context.Context, actorID int64, idempotencyKey string, req BookingRequest) Result[*DispatchResponse] {
	if s.idempotency != nil && idempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "dispatch"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return conflict[*DispatchResponse]("Duplicate request: idempotency key already processed.")
			}
			return internalFailure[*DispatchResponse](s.log, "book dispatch", err)
		}
	}

	batch, err := s.prepareAll(ctx, []BookingRequest{req})
	if err == nil {
		var headers []*DocumentHeader
		headers, err = s.bookAll(ctx, actorID, batch)
		if err == nil {
			h := headers[0]
			s.recordAudit(ctx, actorID, "dispatch.book", h)
			msg := "Dispatch note saved as DRAFT."
			if h.Status() == StatusPosted {
				msg = "Dispatch note booked (POSTED)."
			}
			return ok(toResponse(h), msg)
		}
	}

	if s.idempotency != nil && idempotencyKey != "" {
		if delErr := s.idempotency.Delete(ctx, idempotencyKey); delErr != nil {
			s.log.Warn("release idempotency key", "key", idempotencyKey, "error", delErr)
		}
	}

	var oe *outcomeError
	if errors.As(err, &oe) {
		return resultFromOutcome[*DispatchResponse](oe)
	}
	return internalFailure[*DispatchResponse](s.log, "book dispatch", err)
}

// BookBulk books a batch of dispatch notes atomically: either every request
// produces a document or none does.
func (s *Service) BookBulk(ctx context.Context, actorID int64, reqs []BookingRequest) Result[[]*DispatchResponse] {
	if len(reqs) == 0 {
		return badRequest[[]*DispatchResponse]("Bulk booking requires at least one request.")
	}

	batch, err := s.prepareAll(ctx, reqs)
	if err == nil {
		var headers []*DocumentHeader
		headers, err = s.bookAll(ctx, actorID, batch)
		if err == nil {
			responses := make([]*DispatchResponse, len(headers))
			for i, h := range headers {
				responses[i] = toResponse(h)
				s.recordAudit(ctx, actorID, "dispatch.book", h)
			}
			return ok(responses, "Bulk dispatch processed.")
		}
	}

	var oe *outcomeError
	if errors.As(err, &oe) {
		return resultFromOutcome[[]*DispatchResponse](oe)
	}
	return internalFailure[[]*DispatchResponse](s.log, "book bulk dispatch", err)
}

// UpdateDispatch cancels a posted dispatch or edits a draft one, depending
// on the patch. Both branches re-check the lifecycle state under the row
// lock and again in the conditional update itself.
func (s *Service) UpdateDispatch(ctx context.Context, id int64, patch UpdatePatch) Result[*DispatchResponse] {
	var response *DispatchResponse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		h, err := tx.GetHeaderForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return failMissing(fmt.Sprintf("Dispatch %d not found.", id))
			}
			return err
		}

		if patch.Cancel {
			return s.cancelLocked(ctx, tx, h, patch, &response)
		}
		return s.editDraftLocked(ctx, tx, h, patch, &response)
	})
	if err == nil {
		msg := "Draft dispatch updated."
		if patch.Cancel {
			msg = "Dispatch cancelled."
		}
		return ok(response, msg)
	}

	var oe *outcomeError
	if errors.As(err, &oe) {
		return resultFromOutcome[*DispatchResponse](oe)
	}
	return internalFailure[*DispatchResponse](s.log, "update dispatch", err)
}

func (s *Service) cancelLocked(ctx context.Context, tx TxRepository, h *DocumentHeader, patch UpdatePatch, out **DispatchResponse) error {
	posted, isPosted := h.State.(Posted)
	if !isPosted {
		if h.Status() == StatusCancelled {
			return failState("Cannot cancel: already CANCELLED.")
		}
		return failState("Cannot cancel: dispatch is not POSTED.")
	}

	var note *string
	if patch.CancelReason != "" {
		note = &patch.CancelReason
	}
	updated, err := tx.CancelDispatch(ctx, h.ID, patch.ActorID, note)
	if err != nil {
		return err
	}
	if !updated {
		return failState("Unable to cancel (already cancelled or not posted).")
	}

	h.State = posted.Cancel(patch.ActorID, s.now(), patch.CancelReason)
	s.recordAudit(ctx, patch.ActorID, "dispatch.cancel", h)
	*out = toResponse(h)
	return nil
}

func (s *Service) editDraftLocked(ctx context.Context, tx TxRepository, h *DocumentHeader, patch UpdatePatch, out **DispatchResponse) error {
	switch h.Status() {
	case StatusPosted:
		return failState("Cannot edit: dispatch already POSTED.")
	case StatusCancelled:
		return failState("Cannot edit: dispatch CANCELLED.")
	}

	updated, err := tx.UpdateDraftHeader(ctx, h.ID, patch.PartnerID, patch.Note)
	if err != nil {
		return err
	}
	if !updated {
		return failState("Draft update failed (maybe already posted or cancelled)")
	}

	if patch.PartnerID != nil {
		missing, err := s.validator.Partners.IsMissingOrInactive(ctx, *patch.PartnerID)
		if err != nil {
			return err
		}
		if missing {
			return failValidation(fmt.Sprintf("Request[0]: partner not found or inactive: %d", *patch.PartnerID))
		}
		h.PartnerID = *patch.PartnerID
	}
	if patch.Note != nil {
		h.Note = patch.Note
	}

	if len(patch.Items) > 0 {
		for _, it := range patch.Items {
			missing, err := s.validator.Items.IsMissingOrInactive(ctx, it.ItemID)
			if err != nil {
				return err
			}
			if missing {
				return failValidation(fmt.Sprintf("Request[0]: item not found or inactive: %d", it.ItemID))
			}
		}

		resolver := NewAttributeResolver(s.validator.Slots, s.validator.Items)
		rate, found, err := resolver.ResolveTaxRate(ctx, h.SlotID, h.WarehouseID)
		if err != nil {
			return err
		}
		if !found {
			return failValidation(fmt.Sprintf("no tax rate for slotId=%d in warehouse %d", h.SlotID, h.WarehouseID))
		}

		ids := make([]int64, 0, len(patch.Items))
		seen := make(map[int64]struct{}, len(patch.Items))
		for _, it := range patch.Items {
			if _, ok := seen[it.ItemID]; ok {
				continue
			}
			seen[it.ItemID] = struct{}{}
			ids = append(ids, it.ItemID)
		}
		attrs, err := resolver.ResolveItemAttributes(ctx, ids)
		if err != nil {
			return err
		}

		lines, err := PrepareLines(patch.Items, attrs, rate, 1)
		if err != nil {
			return failValidation(err.Error())
		}

		if err := tx.DeleteLines(ctx, h.ID); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, h.ID, lines); err != nil {
			return err
		}
		for i := range lines {
			lines[i].HeaderID = h.ID
		}
		h.Lines = lines
	}

	s.recordAudit(ctx, patch.ActorID, "dispatch.edit", h)
	*out = toResponse(h)
	return nil
}

// GetDispatch returns one dispatch with its lines.
func (s *Service) GetDispatch(ctx context.Context, id int64) Result[*DispatchResponse] {
	h, err := s.repo.FindHeader(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound[*DispatchResponse](fmt.Sprintf("Dispatch %d not found.", id))
		}
		return internalFailure[*DispatchResponse](s.log, "get dispatch", err)
	}
	return ok(toResponse(h), "OK")
}

// Search lists dispatch summaries matching the filter, newest first.
func (s *Service) Search(ctx context.Context, f SearchFilter) Result[shared.PagedResult[DispatchSummary]] {
	page, size := shared.NormalizePage(f.Page, f.Size)
	headers, total, err := s.repo.SearchHeaders(ctx, f, size, shared.PageOffset(page, size))
	if err != nil {
		return internalFailure[shared.PagedResult[DispatchSummary]](s.log, "search dispatches", err)
	}

	items := make([]DispatchSummary, 0, len(headers))
	for _, h := range headers {
		items = append(items, toSummary(h))
	}

	return ok(shared.PagedResult[DispatchSummary]{
		Items: items,
		Page:  page,
		Size:  size,
		Total: int64(total),
	}, "OK")
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, h *DocumentHeader) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "dispatch",
		EntityID: strconv.FormatInt(h.ID, 10),
		Meta: map[string]any{
			"slot_id":         h.SlotID,
			"document_number": h.DocumentNumber,
			"status":          h.Status(),
		},
	})
	if err != nil {
		s.log.Warn("audit record failed", "action", action, "dispatch_id", h.ID, "error", err)
	}
}
