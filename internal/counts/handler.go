package counts

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
	{Err: ErrCountNotFound, Status: http.StatusNotFound, Title: "Inventory Count Not Found"},
	{Err: ErrInventoryNotInProgress, Status: http.StatusConflict, Title: "Inventory Not In Progress"},
	{Err: ErrInventoryEmpty, Status: http.StatusConflict, Title: "Inventory Empty"},
	{Err: ErrInventoryAlreadyInProgress, Status: http.StatusConflict, Title: "Inventory Already In Progress"},
	{Err: ErrWarehouseMismatch, Status: http.StatusUnprocessableEntity, Title: "Warehouse Mismatch"},
	{Err: ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrNameRequired, Status: http.StatusBadRequest, Title: "Validation Failed"},
}, ledger.ErrorMappings()...)

// Handler exposes inventory count endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the count handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers count routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/lines", h.submit)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/reopen", h.reopen)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err, errorMappings...) >= http.StatusInternalServerError {
		h.logger.Error("inventory count request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}

type listResponse struct {
	Items      []Count           `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
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
	status := Status(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.IsValid() {
		h.fail(w, r, httpx.ErrValidation)
		return
	}
	items, pg, err := h.service.List(r.Context(), ListFilter{
		WarehouseID: warehouseID,
		Status:      status,
		Page:        int(page),
		PerPage:     int(perPage),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: pg})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SubmitRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	res, err := h.service.SubmitCount(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, res)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.Complete(r.Context(), id)
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
	c, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.service.Reopen(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
