package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/low-stock", h.handleLowStock)
	r.Get("/movements", h.handleMovements)
	r.Post("/adjustments", h.handleAdjust)
	r.Route("/branches/{branchID}/products/{productID}", func(r chi.Router) {
		r.Get("/", h.handleShow)
		r.Put("/", h.handleSetStock)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	branchID, ok := queryID(w, r, "branch_id")
	if !ok {
		return
	}
	rows, err := h.service.List(r.Context(), branchID)
	if err != nil {
		h.fail(w, "list stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	branchID, ok := queryID(w, r, "branch_id")
	if !ok {
		return
	}
	items, err := h.service.LowStock(r.Context(), branchID)
	if err != nil {
		h.fail(w, "list low stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "total": len(items)})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	productID, ok := queryID(w, r, "product_id")
	if !ok {
		return
	}
	branchID, ok := queryID(w, r, "branch_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.Movements(r.Context(), MovementFilter{ProductID: productID, BranchID: branchID, Limit: limit})
	if err != nil {
		h.fail(w, "stock card failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	branchID, productID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), productID, branchID)
	if err != nil {
		h.fail(w, "get stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleSetStock(w http.ResponseWriter, r *http.Request) {
	branchID, productID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	var in SetStockInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	in.BranchID, in.ProductID = branchID, productID
	if !h.valid(w, in) {
		return
	}
	view, err := h.service.SetStock(r.Context(), in)
	if err != nil {
		h.fail(w, "set stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Stock updated successfully", "branch_stock": view})
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var in AdjustInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if !h.valid(w, in) {
		return
	}
	view, err := h.service.Adjust(r.Context(), in)
	if err != nil {
		h.fail(w, "adjust stock failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) valid(w http.ResponseWriter, target any) bool {
	if err := h.validator.Struct(target); err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, httpx.ValidationProblem(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Warn(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathIDs(w http.ResponseWriter, r *http.Request) (branchID, productID int64, ok bool) {
	branchID, err := httpx.ParamID(r, "branchID")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	productID, err = httpx.ParamID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	return branchID, productID, true
}

func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
