package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
)

var errorMappings = []httpx.Mapping{
	{Err: ErrProductNotFound, Status: http.StatusNotFound, Title: "Product Not Found"},
	{Err: ErrLocationNotFound, Status: http.StatusNotFound, Title: "Location Not Found"},
	{Err: ErrContainerNotFound, Status: http.StatusNotFound, Title: "Container Not Found"},
	{Err: ErrWarehouseNotFound, Status: http.StatusNotFound, Title: "Warehouse Not Found"},
	{Err: ErrDuplicateBarcode, Status: http.StatusConflict, Title: "Duplicate Barcode"},
	{Err: ErrLocationCounting, Status: http.StatusConflict, Title: "Location Counting"},
	{Err: ErrLocationBlocked, Status: http.StatusConflict, Title: "Location Blocked"},
	{Err: ErrCodeRequired, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrInvalidStatus, Status: http.StatusBadRequest, Title: "Validation Failed"},
}

// ErrorMappings lets other handlers reuse the master data problem mapping.
func ErrorMappings() []httpx.Mapping {
	return errorMappings
}

// Handler exposes master data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/warehouses", h.createWarehouse)
	r.Get("/warehouses/{id}/locations", h.listLocations)
	r.Post("/products", h.createProduct)
	r.Get("/products/resolve", h.resolveProduct)
	r.Post("/products/{id}/deactivate", h.deactivateProduct)
	r.Post("/locations", h.createLocation)
	r.Get("/locations/resolve", h.resolveLocation)
	r.Post("/locations/{id}/block", h.blockLocation)
	r.Post("/locations/{id}/unblock", h.unblockLocation)
	r.Post("/containers", h.createContainer)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err, errorMappings...) >= http.StatusInternalServerError {
		h.logger.Error("masterdata request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	var req CreateWarehouseRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	wh, err := h.service.CreateWarehouse(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, wh)
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	locs, err := h.service.ListLocations(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, locs)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	p, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) resolveProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.ResolveProduct(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeactivateProduct(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	loc, err := h.service.CreateLocation(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loc)
}

func (h *Handler) resolveLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.service.ResolveLocation(r.Context(), r.URL.Query().Get("barcode"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) blockLocation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	loc, err := h.service.BlockLocation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) unblockLocation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	loc, err := h.service.UnblockLocation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) createContainer(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	c, err := h.service.CreateContainer(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}
