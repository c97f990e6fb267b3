package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rl1809/stock-ledger/internal/adapter/export"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const codeBadRequest = "bad_request"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	ledger  *service.LedgerService
	catalog *service.CatalogService
	store   Pinger
}

func NewHTTPHandler(ledger *service.LedgerService, catalog *service.CatalogService, store Pinger) *HTTPHandler {
	return &HTTPHandler{ledger: ledger, catalog: catalog, store: store}
}

// Register mounts every API route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /api/materials", h.ListMaterials)
	mux.HandleFunc("POST /api/materials", h.CreateMaterial)
	mux.HandleFunc("DELETE /api/materials/{id}", h.DeleteMaterial)
	mux.HandleFunc("GET /api/persons", h.ListPersons)
	mux.HandleFunc("POST /api/persons", h.CreatePerson)
	mux.HandleFunc("DELETE /api/persons/{id}", h.DeletePerson)

	mux.HandleFunc("GET /api/inflows", h.ListInflows)
	mux.HandleFunc("POST /api/inflows", h.RecordInflow)
	mux.HandleFunc("GET /api/outflows", h.ListOutflows)
	mux.HandleFunc("POST /api/outflows", h.RecordOutflow)

	mux.HandleFunc("GET /api/stock", h.CurrentStock)
	mux.HandleFunc("DELETE /api/stock/{id}", h.RemoveStockRecord)

	mux.HandleFunc("GET /api/export/{kind}", h.Export)
}

func (h *HTTPHandler) RecordInflow(w http.ResponseWriter, r *http.Request) {
	var req RecordInflowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := h.ledger.RecordInflow(r.Context(), req.MaterialID, req.Quantity, req.Timestamp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordInflowResponse{ID: id})
}

func (h *HTTPHandler) RecordOutflow(w http.ResponseWriter, r *http.Request) {
	var req RecordOutflowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.ledger.RecordOutflow(r.Context(), req.MaterialID, req.PersonID, req.Quantity, req.Timestamp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordOutflowResponse{Success: true})
}

func (h *HTTPHandler) ListInflows(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.ListInflows(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInflowEntries(entries))
}

func (h *HTTPHandler) ListOutflows(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.ListOutflows(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutflowEntries(entries))
}

func (h *HTTPHandler) CurrentStock(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.CurrentStock(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockRecords(records))
}

func (h *HTTPHandler) RemoveStockRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.RemoveStockRecord(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "stock record removed"})
}

func (h *HTTPHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.catalog.ListMaterials(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialItems(materials))
}

func (h *HTTPHandler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.catalog.CreateMaterial(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CatalogItem{ID: m.ID, Name: m.Name})
}

func (h *HTTPHandler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteMaterial(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "material deleted"})
}

func (h *HTTPHandler) ListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.catalog.ListPersons(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonItems(persons))
}

func (h *HTTPHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.catalog.CreatePerson(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CatalogItem{ID: p.ID, Name: p.Name})
}

func (h *HTTPHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeletePerson(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "person deleted"})
}

// Export streams a CSV or XLSX snapshot. The file is rendered in memory first
// so a storage error still gets a JSON error body.
func (h *HTTPHandler) Export(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: codeBadRequest, Message: err.Error()})
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: codeBadRequest, Message: err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := export.Export(r.Context(), &buf, h.ledger, kind, format); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(kind, format)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.WarnContext(r.Context(), "export write failed", "kind", kind, "error", err)
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    codeBadRequest,
			Message: "invalid request body",
		})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    codeBadRequest,
			Message: "invalid id",
		})
		return 0, false
	}
	return id, true
}

// httpStatus maps a ledger error to its HTTP status.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrMaterialNotFound),
		errors.Is(err, domain.ErrPersonNotFound),
		errors.Is(err, domain.ErrStockRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidName):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageFailure),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "storage unavailable"
	case http.StatusInternalServerError:
		message = "internal error"
	}
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Code:    domain.ErrorCode(err),
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
