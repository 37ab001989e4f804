package documents

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-wms/internal/ledger"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

var errorMappings = append([]httpx.Mapping{
	{Err: ErrDocumentNotFound, Status: http.StatusNotFound, Title: "Document Not Found"},
	{Err: ErrLineNotFound, Status: http.StatusNotFound, Title: "Line Not Found"},
	{Err: ErrDocumentNotDraft, Status: http.StatusConflict, Title: "Document Not Draft"},
	{Err: ErrDocumentEmpty, Status: http.StatusConflict, Title: "Document Empty"},
	{Err: ErrWarehouseMismatch, Status: http.StatusUnprocessableEntity, Title: "Warehouse Mismatch"},
	{Err: ErrInvalidType, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrInvalidPrice, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrSourceRequired, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrDestinationRequired, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrUnexpectedSource, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrUnexpectedDestination, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrSameLocation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrAdjustmentDirection, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: shared.ErrIdempotencyConflict, Status: http.StatusConflict, Title: "Duplicate Request"},
}, ledger.ErrorMappings()...)

// Handler exposes document endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the document handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/lines", h.addLine)
	r.Delete("/{id}/lines/{lineID}", h.removeLine)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err, errorMappings...) >= http.StatusInternalServerError {
		h.logger.Error("document request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}

type listResponse struct {
	Items      []Document        `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouseID, err := httpx.QueryInt64(r, "warehouse_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := httpx.QueryInt64(r, "page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	perPage, err := httpx.QueryInt64(r, "per_page")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := ListFilter{
		WarehouseID: warehouseID,
		Type:        Type(strings.ToUpper(q.Get("type"))),
		Status:      Status(strings.ToUpper(q.Get("status"))),
		Page:        int(page),
		PerPage:     int(perPage),
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		h.fail(w, r, ErrInvalidType)
		return
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		h.fail(w, r, httpx.ErrValidation)
		return
	}
	docs, pg, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: docs, Pagination: pg})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	doc, err := h.service.Create(r.Context(), req, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req AddLineRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	line, err := h.service.AddLine(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lineID, err := httpx.IDParam(r, "lineID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.RemoveLine(r.Context(), id, lineID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.Confirm(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doc, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}
