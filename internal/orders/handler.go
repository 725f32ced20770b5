package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/identity"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

const (
	CleanupComplete   = "complete"
	CleanupIncomplete = "incomplete"
)

type Handler struct {
	checkout *Checkout
	repo     *OrderRepository
	logger   *slog.Logger
}

func NewHandler(checkout *Checkout, repo *OrderRepository, logger *slog.Logger) *Handler {
	return &Handler{
		checkout: checkout,
		repo:     repo,
		logger:   logger,
	}
}

type cleanupStatus struct {
	Status         string   `json:"status"`
	PendingItemIDs []string `json:"pending_item_ids,omitempty"`
}

type createOrderResponse struct {
	domain.Order
	Cleanup cleanupStatus `json:"cleanup"`
}

// HandleCreate checks out the caller's cart. A partially cleaned cart still
// answers 200 with the order, flagged through the cleanup status.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	result, err := h.checkout.Run(r.Context(), userID)

	var partial *PartialCheckoutError
	switch {
	case errors.As(err, &partial):
		h.writeJSON(w, http.StatusOK, createOrderResponse{
			Order: result.Order,
			Cleanup: cleanupStatus{
				Status:         CleanupIncomplete,
				PendingItemIDs: result.PendingCartItemIDs,
			},
		})
	case errors.Is(err, domain.ErrEmptyCart):
		h.writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, store.ErrStoreUnavailable):
		h.logger.ErrorContext(r.Context(), "failed to create order", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "store unavailable")
	case err != nil:
		h.logger.ErrorContext(r.Context(), "failed to create order", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.writeJSON(w, http.StatusOK, createOrderResponse{
			Order:   result.Order,
			Cleanup: cleanupStatus{Status: CleanupComplete},
		})
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	orders, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list orders", "error", err)
		if errors.Is(err, store.ErrStoreUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.InfoContext(r.Context(), "orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
