package dispatch

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/agape-erp/agape-erp/internal/shared"
)

func newTestRouter(repo RepositoryPort) http.Handler {
	svc, _, _ := newTestService(repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, svc, validator.New())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithActor(req.Context(), &shared.Actor{UserID: 7})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/dispatches", handler.MountRoutes)
	return r
}

func TestBookDispatchEndpoint(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	body := `{"slot_id":3,"partner_id":500,"draft":false,"items":[{"item_id":900,"quantity":"2.5"}]}`
	req := httptest.NewRequest(http.MethodPost, "/dispatches/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result Result[*DispatchResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "Dispatch note booked (POSTED).", result.Message)
	require.NotNil(t, result.Data)
	require.Equal(t, int64(1), result.Data.DocumentNumber)
	require.Equal(t, StatusPosted, result.Data.Status)
	require.Len(t, result.Data.Lines, 1)
	require.Equal(t, int64(25), result.Data.Lines[0].TaxRateRef)
}

func TestBookDispatchEndpointRejectsZeroQuantity(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	body := `{"slot_id":3,"partner_id":500,"items":[{"item_id":900,"quantity":"0"}]}`
	req := httptest.NewRequest(http.MethodPost, "/dispatches/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Validation Failed", problem["title"])
	require.Contains(t, problem["detail"], "quantity must be greater than zero")
}

func TestBookBulkEndpointPrefixesValidationErrors(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	body := `[{"slot_id":3,"partner_id":500,"items":[{"item_id":900,"quantity":"1"}]},` +
		`{"slot_id":3,"partner_id":500,"items":[]}]`
	req := httptest.NewRequest(http.MethodPost, "/dispatches/bulk", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Contains(t, problem["detail"], "Request[1]:")
}

func TestGetDispatchEndpointNotFound(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	req := httptest.NewRequest(http.MethodGet, "/dispatches/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var result Result[*DispatchResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "Dispatch 99 not found.", result.Message)
}

func TestUpdateDispatchEndpointCancel(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(repo)

	book := `{"slot_id":3,"partner_id":500,"draft":false,"items":[{"item_id":900,"quantity":"1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/dispatches/", strings.NewReader(book))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var booked Result[*DispatchResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booked))

	patch := `{"cancel":true,"cancel_reason":"wrong partner"}`
	req = httptest.NewRequest(http.MethodPatch, "/dispatches/1", strings.NewReader(patch))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled Result[*DispatchResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	require.Equal(t, "Dispatch cancelled.", cancelled.Message)
	require.Equal(t, StatusCancelled, cancelled.Data.Status)
}

func TestSearchDispatchesEndpoint(t *testing.T) {
	router := newTestRouter(newMemoryRepo())

	book := `{"slot_id":3,"partner_id":500,"items":[{"item_id":900,"quantity":"1"}]}`
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/dispatches/", strings.NewReader(book))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/dispatches/?partner_id=500&page=0&size=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result Result[shared.PagedResult[DispatchSummary]]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, int64(3), result.Data.Total)
	require.Len(t, result.Data.Items, 2)
}
