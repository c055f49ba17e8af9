// Package dispatch implements the dispatch note booking engine: reference
// validation, attribute resolution, line preparation, atomic header+line
// persistence and the Draft/Posted/Cancelled lifecycle against a legacy
// schema shared with other applications.
package dispatch

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status labels the lifecycle state of a document header.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusCancelled Status = "CANCELLED"
)

// State is the tagged lifecycle state of a document header. The legacy
// schema stores it as independent flag columns (posted, posted_by/at,
// cancelled_by/at, cancel_note); in memory it is exactly one of Draft,
// Posted or Cancelled, and the only transitions that exist are
// Draft.Post and Posted.Cancel.
type State interface {
	Status() Status
	sealed()
}

// Draft is the initial state. A draft can be edited or posted, never cancelled.
type Draft struct{}

func (Draft) Status() Status { return StatusDraft }
func (Draft) sealed()        {}

// Post transitions a draft into the posted state.
func (Draft) Post(by int64, at time.Time) Posted {
	return Posted{By: by, At: at}
}

// Posted records who posted the document and when. A posted document is
// immutable except for cancellation.
type Posted struct {
	By int64
	At time.Time
}

func (Posted) Status() Status { return StatusPosted }
func (Posted) sealed()        {}

// Cancel transitions a posted document into the terminal cancelled state.
func (p Posted) Cancel(by int64, at time.Time, note string) Cancelled {
	return Cancelled{PostedBy: p.By, PostedAt: p.At, By: by, At: at, Note: note}
}

// Cancelled is terminal. It keeps the posting audit trail alongside the
// cancellation one.
type Cancelled struct {
	PostedBy int64
	PostedAt time.Time
	By       int64
	At       time.Time
	Note     string
}

func (Cancelled) Status() Status { return StatusCancelled }
func (Cancelled) sealed()        {}

// DocumentHeader is one commercial dispatch document.
type DocumentHeader struct {
	ID             int64          `json:"id"`
	SlotID         int64          `json:"slot_id"`
	WarehouseID    int64          `json:"warehouse_id"`
	DocumentNumber int64          `json:"document_number"`
	DocumentDate   time.Time      `json:"document_date"`
	PartnerID      int64          `json:"partner_id"`
	DispatchNumber *string        `json:"dispatch_number,omitempty"`
	Note           *string        `json:"note,omitempty"`
	CreatedBy      int64          `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	State          State          `json:"-"`
	Lines          []DocumentLine `json:"lines,omitempty"`
}

// Status reports the lifecycle status of the header.
func (h *DocumentHeader) Status() Status {
	if h.State == nil {
		return StatusDraft
	}
	return h.State.Status()
}

// headerFlags is the legacy flag-column representation of State. The
// storage schema is fixed externally, so the store maps through it.
type headerFlags struct {
	Posted      bool
	PostedBy    *int64
	PostedAt    *time.Time
	CancelledBy *int64
	CancelledAt *time.Time
	CancelNote  *string
}

// stateFromFlags rebuilds the tagged state from raw flag columns.
func stateFromFlags(f headerFlags) State {
	switch {
	case f.Posted && f.CancelledBy != nil:
		c := Cancelled{By: *f.CancelledBy}
		if f.PostedBy != nil {
			c.PostedBy = *f.PostedBy
		}
		if f.PostedAt != nil {
			c.PostedAt = *f.PostedAt
		}
		if f.CancelledAt != nil {
			c.At = *f.CancelledAt
		}
		if f.CancelNote != nil {
			c.Note = *f.CancelNote
		}
		return c
	case f.Posted:
		p := Posted{}
		if f.PostedBy != nil {
			p.By = *f.PostedBy
		}
		if f.PostedAt != nil {
			p.At = *f.PostedAt
		}
		return p
	default:
		return Draft{}
	}
}

// DocumentLine is one item+quantity entry under a header. Name, unit of
// measure and tax rate references are resolved before insertion; a line
// never stores a null reference.
type DocumentLine struct {
	ID         int64           `json:"id"`
	HeaderID   int64           `json:"header_id"`
	ItemID     int64           `json:"item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	NameRef    int64           `json:"name_ref"`
	UOMRef     int64           `json:"uom_ref"`
	TaxRateRef int64           `json:"tax_rate_ref"`
	LineNumber int             `json:"line_number"`
}

// ItemAttributes carries the master-data references an item contributes to
// a line. Either reference may be missing in the master data; missing
// attributes fail validation before any write.
type ItemAttributes struct {
	NameRef *int64
	UOMRef  *int64
}
