package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-wms/internal/masterdata"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

var errorMappings = append([]httpx.Mapping{
	{Err: ErrInsufficientStock, Status: http.StatusUnprocessableEntity, Title: "Insufficient Stock"},
	{Err: ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrSameContainer, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrContainerMismatch, Status: http.StatusUnprocessableEntity, Title: "Container Mismatch"},
	{Err: masterdata.ErrLocationCounting, Status: http.StatusUnprocessableEntity, Title: "Location Counting"},
	{Err: masterdata.ErrLocationBlocked, Status: http.StatusUnprocessableEntity, Title: "Location Blocked"},
	{Err: shared.ErrActorRequired, Status: http.StatusUnauthorized, Title: "Actor Required"},
	{Err: db.ErrConcurrentUpdate, Status: http.StatusConflict, Title: "Concurrent Update"},
}, masterdata.ErrorMappings()...)

// ErrorMappings exposes the stock problem mapping to other handlers.
func ErrorMappings() []httpx.Mapping {
	return errorMappings
}

// Handler exposes stock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/on-hand", h.onHand)
	r.Get("/balance", h.balance)
	r.Get("/locations/{id}", h.byLocation)
	r.Get("/products/{id}", h.byProduct)
	r.Post("/split", h.split)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err, errorMappings...) >= http.StatusInternalServerError {
		h.logger.Error("stock request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}

type onHandResponse struct {
	ProductID   int64  `json:"product_id"`
	LocationID  int64  `json:"location_id"`
	ContainerID *int64 `json:"container_id,omitempty"`
	Qty         int64  `json:"qty"`
}

func (h *Handler) pair(r *http.Request) (int64, int64, error) {
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		return 0, 0, err
	}
	locationID, err := httpx.QueryInt64(r, "location_id")
	if err != nil {
		return 0, 0, err
	}
	if productID == 0 || locationID == 0 {
		return 0, 0, httpx.ErrValidation
	}
	return productID, locationID, nil
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	productID, locationID, err := h.pair(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var containerID *int64
	if c, err := httpx.QueryInt64(r, "container_id"); err != nil {
		h.fail(w, r, err)
		return
	} else if c > 0 {
		containerID = &c
	}
	qty, err := h.service.OnHand(r.Context(), productID, locationID, containerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, onHandResponse{ProductID: productID, LocationID: locationID, ContainerID: containerID, Qty: qty})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	productID, locationID, err := h.pair(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.service.Balance(r.Context(), productID, locationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) byLocation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.service.ByLocation(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) byProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.service.ByProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) split(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if !httpx.Bind(w, r, h.validate, &req) {
		return
	}
	res, err := h.service.Split(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
