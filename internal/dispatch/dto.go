package dispatch

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingRequest asks for one dispatch note to be booked. The warehouse is
// normally derived from the slot mapping; a caller that knows it may send
// it explicitly.
type BookingRequest struct {
	SlotID         int64         `json:"slot_id" validate:"required,gt=0"`
	WarehouseID    *int64        `json:"warehouse_id,omitempty" validate:"omitempty,gt=0"`
	DocumentDate   *time.Time    `json:"document_date,omitempty"`
	PartnerID      int64         `json:"partner_id" validate:"required,gt=0"`
	DispatchNumber *string       `json:"dispatch_number,omitempty" validate:"omitempty,max=50"`
	Note           *string       `json:"note,omitempty"`
	Draft          *bool         `json:"draft,omitempty"`
	Items          []BookingItem `json:"items" validate:"required,min=1,dive"`
}

// BookingItem is one requested line: item plus exact decimal quantity.
// Strict positivity is enforced at the request-parsing boundary.
type BookingItem struct {
	ItemID   int64           `json:"item_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PostNow reports whether the request asks for immediate posting. Booking
// defaults to draft unless the draft flag is explicitly false.
func (r BookingRequest) PostNow() bool {
	return r.Draft != nil && !*r.Draft
}

// ItemIDs returns the distinct item identifiers referenced by the request.
func (r BookingRequest) ItemIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.Items))
	ids := make([]int64, 0, len(r.Items))
	for _, it := range r.Items {
		if _, ok := seen[it.ItemID]; ok {
			continue
		}
		seen[it.ItemID] = struct{}{}
		ids = append(ids, it.ItemID)
	}
	return ids
}

// UpdatePatch edits or cancels an existing dispatch. Cancel wins when set;
// otherwise the patch is a draft edit. Omitted partner/note keep their
// stored values; items, when supplied, replace all lines wholesale.
type UpdatePatch struct {
	Cancel       bool          `json:"cancel"`
	CancelReason string        `json:"cancel_reason,omitempty" validate:"omitempty,max=500"`
	PartnerID    *int64        `json:"partner_id,omitempty" validate:"omitempty,gt=0"`
	Note         *string       `json:"note,omitempty"`
	Items        []BookingItem `json:"items,omitempty" validate:"omitempty,min=1,dive"`

	// ActorID is filled from the authenticated context, never from the body.
	ActorID int64 `json:"-"`
}

// SearchFilter narrows a dispatch listing. Date bounds are inclusive on the
// business date.
type SearchFilter struct {
	SlotID    *int64     `json:"slot_id,omitempty"`
	PartnerID *int64     `json:"partner_id,omitempty"`
	CreatedBy *int64     `json:"created_by,omitempty"`
	DateFrom  *time.Time `json:"date_from,omitempty"`
	DateTo    *time.Time `json:"date_to,omitempty"`
	Page      int        `json:"page" validate:"gte=0"`
	Size      int        `json:"size" validate:"gte=0,lte=200"`
}

// DispatchResponse is the outward shape of a booked or updated dispatch.
type DispatchResponse struct {
	DocumentHeaderID int64          `json:"document_header_id"`
	SlotID           int64          `json:"slot_id"`
	WarehouseID      int64          `json:"warehouse_id"`
	DocumentNumber   int64          `json:"document_number"`
	DocumentDate     time.Time      `json:"document_date"`
	PartnerID        int64          `json:"partner_id"`
	DispatchNumber   *string        `json:"dispatch_number,omitempty"`
	Note             *string        `json:"note,omitempty"`
	Status           Status         `json:"status"`
	PostedBy         *int64         `json:"posted_by,omitempty"`
	PostedAt         *time.Time     `json:"posted_at,omitempty"`
	CancelledBy      *int64         `json:"cancelled_by,omitempty"`
	CancelledAt      *time.Time     `json:"cancelled_at,omitempty"`
	CancelNote       *string        `json:"cancel_note,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	Lines            []LineResponse `json:"lines,omitempty"`
}

// LineResponse is the outward shape of one dispatch line.
type LineResponse struct {
	LineNumber int             `json:"line_number"`
	ItemID     int64           `json:"item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	NameRef    int64           `json:"name_ref"`
	UOMRef     int64           `json:"uom_ref"`
	TaxRateRef int64           `json:"tax_rate_ref"`
}

// DispatchSummary is the row shape returned by search.
type DispatchSummary struct {
	ID             int64     `json:"id"`
	SlotID         int64     `json:"slot_id"`
	WarehouseID    int64     `json:"warehouse_id"`
	DocumentNumber int64     `json:"document_number"`
	DocumentDate   time.Time `json:"document_date"`
	PartnerID      int64     `json:"partner_id"`
	CreatedBy      int64     `json:"created_by"`
	Status         Status    `json:"status"`
}

func toResponse(h *DocumentHeader) *DispatchResponse {
	out := &DispatchResponse{
		DocumentHeaderID: h.ID,
		SlotID:           h.SlotID,
		WarehouseID:      h.WarehouseID,
		DocumentNumber:   h.DocumentNumber,
		DocumentDate:     h.DocumentDate,
		PartnerID:        h.PartnerID,
		DispatchNumber:   h.DispatchNumber,
		Note:             h.Note,
		Status:           h.Status(),
		CreatedAt:        h.CreatedAt,
	}
	switch st := h.State.(type) {
	case Posted:
		by, at := st.By, st.At
		out.PostedBy, out.PostedAt = &by, &at
	case Cancelled:
		pby, pat := st.PostedBy, st.PostedAt
		cby, cat := st.By, st.At
		note := st.Note
		out.PostedBy, out.PostedAt = &pby, &pat
		out.CancelledBy, out.CancelledAt = &cby, &cat
		if note != "" {
			out.CancelNote = &note
		}
	}
	for _, l := range h.Lines {
		out.Lines = append(out.Lines, LineResponse{
			LineNumber: l.LineNumber,
			ItemID:     l.ItemID,
			Quantity:   l.Quantity,
			NameRef:    l.NameRef,
			UOMRef:     l.UOMRef,
			TaxRateRef: l.TaxRateRef,
		})
	}
	return out
}

func toSummary(h DocumentHeader) DispatchSummary {
	return DispatchSummary{
		ID:             h.ID,
		SlotID:         h.SlotID,
		WarehouseID:    h.WarehouseID,
		DocumentNumber: h.DocumentNumber,
		DocumentDate:   h.DocumentDate,
		PartnerID:      h.PartnerID,
		CreatedBy:      h.CreatedBy,
		Status:         h.Status(),
	}
}
