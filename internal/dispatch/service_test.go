package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/agape-erp/agape-erp/testing"
)

type memoryRepo struct {
	headers  map[int64]DocumentHeader
	lines    map[int64][]DocumentLine
	counters map[string]int64
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		headers:  make(map[int64]DocumentHeader),
		lines:    make(map[int64][]DocumentLine),
		counters: make(map[string]int64),
	}
}

// WithTx snapshots the whole store and restores it when the callback fails,
// mirroring a rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	headers := make(map[int64]DocumentHeader, len(r.headers))
	for k, v := range r.headers {
		headers[k] = v
	}
	lines := make(map[int64][]DocumentLine, len(r.lines))
	for k, v := range r.lines {
		lines[k] = append([]DocumentLine(nil), v...)
	}
	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	nextID := r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.headers, r.lines, r.counters, r.nextID = headers, lines, counters, nextID
		return err
	}
	return nil
}

func (r *memoryRepo) FindHeader(ctx context.Context, id int64) (*DocumentHeader, error) {
	h, ok := r.headers[id]
	if !ok {
		return nil, ErrNotFound
	}
	h.Lines = append([]DocumentLine(nil), r.lines[id]...)
	return &h, nil
}

func (r *memoryRepo) SearchHeaders(ctx context.Context, f SearchFilter, limit, offset int) ([]DocumentHeader, int, error) {
	var matched []DocumentHeader
	for _, h := range r.headers {
		if f.SlotID != nil && h.SlotID != *f.SlotID {
			continue
		}
		if f.PartnerID != nil && h.PartnerID != *f.PartnerID {
			continue
		}
		if f.CreatedBy != nil && h.CreatedBy != *f.CreatedBy {
			continue
		}
		if f.DateFrom != nil && h.DocumentDate.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && h.DocumentDate.After(*f.DateTo) {
			continue
		}
		matched = append(matched, h)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].DocumentDate.Equal(matched[j].DocumentDate) {
			return matched[i].DocumentDate.After(matched[j].DocumentDate)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (tx *memoryTx) NextDocumentNumber(ctx context.Context, slotID int64, year int) (int64, error) {
	key := fmt.Sprintf("%d#%d", slotID, year)
	tx.repo.counters[key]++
	return tx.repo.counters[key], nil
}

func (tx *memoryTx) InsertHeader(ctx context.Context, h *DocumentHeader) (int64, error) {
	tx.repo.nextID++
	h.ID = tx.repo.nextID
	h.CreatedAt = time.Now()
	stored := *h
	stored.Lines = nil
	tx.repo.headers[h.ID] = stored
	return h.ID, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, headerID int64, lines []DocumentLine) error {
	tx.repo.lines[headerID] = append(tx.repo.lines[headerID], lines...)
	return nil
}

func (tx *memoryTx) DeleteLines(ctx context.Context, headerID int64) error {
	delete(tx.repo.lines, headerID)
	return nil
}

func (tx *memoryTx) GetHeaderForUpdate(ctx context.Context, id int64) (*DocumentHeader, error) {
	h, ok := tx.repo.headers[id]
	if !ok {
		return nil, ErrNotFound
	}
	h.Lines = append([]DocumentLine(nil), tx.repo.lines[id]...)
	return &h, nil
}

func (tx *memoryTx) UpdateDraftHeader(ctx context.Context, id int64, partnerID *int64, note *string) (bool, error) {
	h, ok := tx.repo.headers[id]
	if !ok || h.Status() != StatusDraft {
		return false, nil
	}
	if partnerID != nil {
		h.PartnerID = *partnerID
	}
	if note != nil {
		h.Note = note
	}
	tx.repo.headers[id] = h
	return true, nil
}

func (tx *memoryTx) CancelDispatch(ctx context.Context, id, by int64, note *string) (bool, error) {
	h, ok := tx.repo.headers[id]
	if !ok {
		return false, nil
	}
	posted, isPosted := h.State.(Posted)
	if !isPosted {
		return false, nil
	}
	reason := ""
	if note != nil {
		reason = *note
	}
	h.State = posted.Cancel(by, time.Now(), reason)
	tx.repo.headers[id] = h
	return true, nil
}

type fakeSlots struct {
	warehouses map[int64]int64
	taxRates   map[string]int64
	taxCalls   int
}

func (f *fakeSlots) WarehouseForSlot(ctx context.Context, slotID int64) (int64, bool, error) {
	wh, ok := f.warehouses[slotID]
	return wh, ok, nil
}

func (f *fakeSlots) SlotWarehouseExists(ctx context.Context, slotID, warehouseID int64) (bool, error) {
	wh, ok := f.warehouses[slotID]
	return ok && wh == warehouseID, nil
}

func (f *fakeSlots) TaxRateFor(ctx context.Context, slotID, warehouseID int64) (int64, bool, error) {
	f.taxCalls++
	rate, ok := f.taxRates[fmt.Sprintf("%d#%d", slotID, warehouseID)]
	return rate, ok, nil
}

type fakePartners struct {
	// active flag per partner, nil meaning the legacy column is null
	partners map[int64]*bool
}

func (f *fakePartners) IsMissingOrInactive(ctx context.Context, partnerID int64) (bool, error) {
	flag, ok := f.partners[partnerID]
	if !ok {
		return true, nil
	}
	return flag != nil && !*flag, nil
}

type fakeItem struct {
	active bool
	attrs  *ItemAttributes
}

type fakeItems struct {
	items     map[int64]fakeItem
	attrCalls int
}

func (f *fakeItems) IsMissingOrInactive(ctx context.Context, itemID int64) (bool, error) {
	it, ok := f.items[itemID]
	return !ok || !it.active, nil
}

func (f *fakeItems) FindAttributes(ctx context.Context, itemIDs []int64) (map[int64]ItemAttributes, error) {
	f.attrCalls++
	out := make(map[int64]ItemAttributes)
	for _, id := range itemIDs {
		if it, ok := f.items[id]; ok && it.attrs != nil {
			out[id] = *it.attrs
		}
	}
	return out, nil
}

func ref[T any](v T) *T { return &v }

func fixtureDirectories() (*fakeSlots, *fakePartners, *fakeItems) {
	slots := &fakeSlots{
		warehouses: map[int64]int64{3: 1, 4: 2},
		taxRates:   map[string]int64{"3#1": 25},
	}
	partners := &fakePartners{partners: map[int64]*bool{
		500: ref(true),
		501: nil,
		502: ref(false),
	}}
	items := &fakeItems{items: map[int64]fakeItem{
		900: {active: true, attrs: &ItemAttributes{NameRef: ref(int64(77)), UOMRef: ref(int64(5))}},
		901: {active: false, attrs: &ItemAttributes{NameRef: ref(int64(78)), UOMRef: ref(int64(5))}},
		902: {active: true},
	}}
	return slots, partners, items
}

func newTestService(repo RepositoryPort) (*Service, *fakeSlots, *fakeItems) {
	slots, partners, items := fixtureDirectories()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, slots, partners, items, nil, nil, logger), slots, items
}

func bookingFixture() BookingRequest {
	return BookingRequest{
		SlotID:    3,
		PartnerID: 500,
		Items: []BookingItem{
			{ItemID: 900, Quantity: decimal.NewFromInt(4)},
		},
	}
}

func TestBookOneDefaultsToDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)

	res := svc.BookOne(context.Background(), 7, "", bookingFixture())
	require.True(t, res.Success())
	require.Equal(t, "Dispatch note saved as DRAFT.", res.Message)
	require.Equal(t, StatusDraft, res.Data.Status)
	require.Equal(t, int64(1), res.Data.WarehouseID)
	require.Equal(t, int64(1), res.Data.DocumentNumber)
	require.Nil(t, res.Data.PostedBy)

	require.Len(t, res.Data.Lines, 1)
	line := res.Data.Lines[0]
	require.Equal(t, int64(77), line.NameRef)
	require.Equal(t, int64(5), line.UOMRef)
	require.Equal(t, int64(25), line.TaxRateRef)
	require.Equal(t, 1, line.LineNumber)
}

func TestBookOnePostsWhenDraftExplicitlyFalse(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)

	req := bookingFixture()
	req.Draft = ref(false)

	res := svc.BookOne(context.Background(), 7, "", req)
	require.True(t, res.Success())
	require.Equal(t, "Dispatch note booked (POSTED).", res.Message)
	require.Equal(t, StatusPosted, res.Data.Status)
	require.NotNil(t, res.Data.PostedBy)
	require.Equal(t, int64(7), *res.Data.PostedBy)
}

func TestBookOneNumbersPerSlotAndYear(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	first := svc.BookOne(ctx, 7, "", bookingFixture())
	second := svc.BookOne(ctx, 7, "", bookingFixture())
	require.True(t, first.Success())
	require.True(t, second.Success())
	require.Equal(t, int64(1), first.Data.DocumentNumber)
	require.Equal(t, int64(2), second.Data.DocumentNumber)
}

func TestBookOneNullActiveFlagCountsAsActive(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)

	req := bookingFixture()
	req.PartnerID = 501

	res := svc.BookOne(context.Background(), 7, "", req)
	require.True(t, res.Success())
}

func TestBookOneReferenceFailures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*BookingRequest)
		message string
	}{
		{
			name:    "unknown slot",
			mutate:  func(r *BookingRequest) { r.SlotID = 99 },
			message: "Request[0]: cannot resolve warehouse for slotId=99",
		},
		{
			name:    "mismatched warehouse",
			mutate:  func(r *BookingRequest) { r.WarehouseID = ref(int64(2)) },
			message: "Request[0]: unknown (slotId, warehouseId)=(3,2)",
		},
		{
			name:    "inactive partner",
			mutate:  func(r *BookingRequest) { r.PartnerID = 502 },
			message: "Request[0]: partner not found or inactive: 502",
		},
		{
			name:    "unknown partner",
			mutate:  func(r *BookingRequest) { r.PartnerID = 999 },
			message: "Request[0]: partner not found or inactive: 999",
		},
		{
			name:    "inactive item",
			mutate:  func(r *BookingRequest) { r.Items[0].ItemID = 901 },
			message: "Request[0]: item not found or inactive: 901",
		},
		{
			name:    "missing item attributes",
			mutate:  func(r *BookingRequest) { r.Items[0].ItemID = 902 },
			message: "Request[0]: item attributes missing (nameRef/uomRef) for itemId=902",
		},
		{
			name:    "no tax rate",
			mutate:  func(r *BookingRequest) { r.SlotID = 4 },
			message: "no tax rate for slotId=4 in warehouse 2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			svc, _, _ := newTestService(repo)

			req := bookingFixture()
			tc.mutate(&req)

			res := svc.BookOne(context.Background(), 7, "", req)
			require.Equal(t, http.StatusBadRequest, res.Code)
			require.Equal(t, tc.message, res.Message)
			require.Empty(t, repo.headers)
		})
	}
}

func TestBookBulkIsAtomic(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)

	good := bookingFixture()
	bad := bookingFixture()
	bad.SlotID = 99

	res := svc.BookBulk(context.Background(), 7, []BookingRequest{good, bad})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "Request[1]: cannot resolve warehouse for slotId=99", res.Message)
	require.Empty(t, repo.headers)
	require.Empty(t, repo.counters)
}

func TestBookBulkQualifiesAttributeFailuresWithIndex(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)

	good := bookingFixture()
	bad := bookingFixture()
	bad.Items[0].ItemID = 902

	res := svc.BookBulk(context.Background(), 7, []BookingRequest{good, bad})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "Request[1]: item attributes missing (nameRef/uomRef) for itemId=902", res.Message)
	require.Empty(t, repo.headers)
}

func TestBookBulkValidatesAllBeforeResolving(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)

	// request 0 has no configured tax rate, request 1 an unknown partner;
	// reference validation must finish for the whole batch before any
	// resolution runs, so the partner failure wins
	noTax := bookingFixture()
	noTax.SlotID = 4
	badPartner := bookingFixture()
	badPartner.PartnerID = 999

	res := svc.BookBulk(context.Background(), 7, []BookingRequest{noTax, badPartner})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "Request[1]: partner not found or inactive: 999", res.Message)
	require.Empty(t, repo.headers)
}

func TestBookBulkSharesLookupsAcrossBatch(t *testing.T) {
	repo := newMemoryRepo()
	svc, slots, items := newTestService(repo)

	reqs := []BookingRequest{bookingFixture(), bookingFixture(), bookingFixture()}

	res := svc.BookBulk(context.Background(), 7, reqs)
	require.True(t, res.Success())
	require.Equal(t, "Bulk dispatch processed.", res.Message)
	require.Len(t, res.Data, 3)

	// one memoized tax lookup and one batched attribute query for the batch
	require.Equal(t, 1, slots.taxCalls)
	require.Equal(t, 1, items.attrCalls)

	require.Equal(t, int64(1), res.Data[0].DocumentNumber)
	require.Equal(t, int64(2), res.Data[1].DocumentNumber)
	require.Equal(t, int64(3), res.Data[2].DocumentNumber)
}

func TestCancelDispatch(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	req := bookingFixture()
	req.Draft = ref(false)
	booked := svc.BookOne(ctx, 7, "", req)
	require.True(t, booked.Success())
	id := booked.Data.DocumentHeaderID

	res := svc.UpdateDispatch(ctx, id, UpdatePatch{Cancel: true, CancelReason: "wrong partner", ActorID: 9})
	require.True(t, res.Success())
	require.Equal(t, "Dispatch cancelled.", res.Message)
	require.Equal(t, StatusCancelled, res.Data.Status)
	require.NotNil(t, res.Data.CancelledBy)
	require.Equal(t, int64(9), *res.Data.CancelledBy)
	require.NotNil(t, res.Data.PostedBy)

	again := svc.UpdateDispatch(ctx, id, UpdatePatch{Cancel: true, ActorID: 9})
	require.Equal(t, http.StatusConflict, again.Code)
	require.Equal(t, "Cannot cancel: already CANCELLED.", again.Message)
}

func TestCancelRequiresPostedState(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	booked := svc.BookOne(ctx, 7, "", bookingFixture())
	require.True(t, booked.Success())

	res := svc.UpdateDispatch(ctx, booked.Data.DocumentHeaderID, UpdatePatch{Cancel: true, ActorID: 9})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "Cannot cancel: dispatch is not POSTED.", res.Message)

	missing := svc.UpdateDispatch(ctx, 42, UpdatePatch{Cancel: true, ActorID: 9})
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, "Dispatch 42 not found.", missing.Message)
}

func TestEditDraftReplacesLines(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	booked := svc.BookOne(ctx, 7, "", bookingFixture())
	require.True(t, booked.Success())
	id := booked.Data.DocumentHeaderID

	res := svc.UpdateDispatch(ctx, id, UpdatePatch{
		PartnerID: ref(int64(501)),
		Note:      ref("rush order"),
		Items: []BookingItem{
			{ItemID: 900, Quantity: decimal.NewFromInt(2)},
			{ItemID: 900, Quantity: decimal.NewFromInt(6)},
		},
		ActorID: 9,
	})
	require.True(t, res.Success())
	require.Equal(t, "Draft dispatch updated.", res.Message)
	require.Equal(t, int64(501), res.Data.PartnerID)
	require.Len(t, res.Data.Lines, 2)
	require.Equal(t, 1, res.Data.Lines[0].LineNumber)
	require.Equal(t, 2, res.Data.Lines[1].LineNumber)
	require.True(t, res.Data.Lines[1].Quantity.Equal(decimal.NewFromInt(6)))

	stored, err := repo.FindHeader(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	require.Equal(t, int64(501), stored.PartnerID)
}

func TestEditDraftRollsBackOnBadItem(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	booked := svc.BookOne(ctx, 7, "", bookingFixture())
	require.True(t, booked.Success())
	id := booked.Data.DocumentHeaderID

	res := svc.UpdateDispatch(ctx, id, UpdatePatch{
		PartnerID: ref(int64(501)),
		Items:     []BookingItem{{ItemID: 901, Quantity: decimal.NewFromInt(1)}},
		ActorID:   9,
	})
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "Request[0]: item not found or inactive: 901", res.Message)

	// header edit rolled back with the line replacement
	stored, err := repo.FindHeader(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int64(500), stored.PartnerID)
	require.Len(t, stored.Lines, 1)
}

func TestEditRejectsNonDraftStates(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	req := bookingFixture()
	req.Draft = ref(false)
	posted := svc.BookOne(ctx, 7, "", req)
	require.True(t, posted.Success())

	res := svc.UpdateDispatch(ctx, posted.Data.DocumentHeaderID, UpdatePatch{Note: ref("late"), ActorID: 9})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "Cannot edit: dispatch already POSTED.", res.Message)

	cancelled := svc.UpdateDispatch(ctx, posted.Data.DocumentHeaderID, UpdatePatch{Cancel: true, ActorID: 9})
	require.True(t, cancelled.Success())

	res = svc.UpdateDispatch(ctx, posted.Data.DocumentHeaderID, UpdatePatch{Note: ref("late"), ActorID: 9})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "Cannot edit: dispatch CANCELLED.", res.Message)
}

func TestSearchFiltersAndPaginates(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		req := bookingFixture()
		day := time.Date(2026, 8, 10+i, 0, 0, 0, 0, time.UTC)
		req.DocumentDate = &day
		if i == 4 {
			req.PartnerID = 501
		}
		res := svc.BookOne(ctx, 7, "", req)
		require.True(t, res.Success())
	}

	res := svc.Search(ctx, SearchFilter{PartnerID: ref(int64(500)), Page: 0, Size: 3})
	require.True(t, res.Success())
	require.Equal(t, int64(4), res.Data.Total)
	require.Len(t, res.Data.Items, 3)
	// newest business date first
	require.Equal(t, time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC), res.Data.Items[0].DocumentDate)

	// the same filter over unmodified data returns the same page
	repeat := svc.Search(ctx, SearchFilter{PartnerID: ref(int64(500)), Page: 0, Size: 3})
	require.Equal(t, res.Data, repeat.Data)

	last := svc.Search(ctx, SearchFilter{PartnerID: ref(int64(500)), Page: 1, Size: 3})
	require.Len(t, last.Data.Items, 1)
}

func TestGetDispatch(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	booked := svc.BookOne(ctx, 7, "", bookingFixture())
	require.True(t, booked.Success())

	res := svc.GetDispatch(ctx, booked.Data.DocumentHeaderID)
	require.True(t, res.Success())
	require.Len(t, res.Data.Lines, 1)

	missing := svc.GetDispatch(ctx, 42)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, "Dispatch 42 not found.", missing.Message)
}
