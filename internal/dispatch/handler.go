package dispatch

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agape-erp/agape-erp/internal/platform/httpx"
	"github.com/agape-erp/agape-erp/internal/shared"
)

// Handler manages dispatch endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validate,
	}
}

// MountRoutes registers dispatch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.bookDispatch)
	r.Post("/bulk", h.bookBulk)
	r.Get("/", h.searchDispatches)
	r.Get("/{id}", h.getDispatch)
	r.Patch("/{id}", h.updateDispatch)
}

func (h *Handler) actorID(r *http.Request) int64 {
	if actor := shared.ActorFromContext(r.Context()); actor != nil {
		return actor.UserID
	}
	return 0
}

// checkBooking runs struct validation plus the quantity checks the tag
// language cannot express on exact decimals.
func (h *Handler) checkBooking(req *BookingRequest) string {
	if err := h.validate.Struct(req); err != nil {
		return err.Error()
	}
	for _, it := range req.Items {
		if it.Quantity.Sign() <= 0 {
			return "quantity must be greater than zero for item " + strconv.FormatInt(it.ItemID, 10)
		}
	}
	return ""
}

func (h *Handler) bookDispatch(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if msg := h.checkBooking(&req); msg != "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msg)
		return
	}

	result := h.service.BookOne(r.Context(), h.actorID(r), r.Header.Get("Idempotency-Key"), req)
	httpx.JSON(w, result.Code, result)
}

func (h *Handler) bookBulk(w http.ResponseWriter, r *http.Request) {
	var reqs []BookingRequest
	if err := httpx.DecodeJSON(r, &reqs); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	for i := range reqs {
		if msg := h.checkBooking(&reqs[i]); msg != "" {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Request["+strconv.Itoa(i)+"]: "+msg)
			return
		}
	}

	result := h.service.BookBulk(r.Context(), h.actorID(r), reqs)
	httpx.JSON(w, result.Code, result)
}

func (h *Handler) getDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid dispatch id")
		return
	}

	result := h.service.GetDispatch(r.Context(), id)
	httpx.JSON(w, result.Code, result)
}

func (h *Handler) updateDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid dispatch id")
		return
	}

	var patch UpdatePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(&patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	for _, it := range patch.Items {
		if it.Quantity.Sign() <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed",
				"quantity must be greater than zero for item "+strconv.FormatInt(it.ItemID, 10))
			return
		}
	}
	patch.ActorID = h.actorID(r)

	result := h.service.UpdateDispatch(r.Context(), id, patch)
	httpx.JSON(w, result.Code, result)
}

func (h *Handler) searchDispatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f SearchFilter

	if v := q.Get("slot_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.SlotID = &id
		}
	}
	if v := q.Get("partner_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.PartnerID = &id
		}
	}
	if v := q.Get("created_by"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.CreatedBy = &id
		}
	}
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.DateTo = &t
		}
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Size, _ = strconv.Atoi(q.Get("size"))

	result := h.service.Search(r.Context(), f)
	httpx.JSON(w, result.Code, result)
}
