package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/identity"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	items, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list cart", "error", err, "user_id", userID)
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := h.svc.AddItem(r.Context(), userID, req.ProductID, quantity)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to add cart item", "error", err, "product_id", req.ProductID)
		h.writeFailure(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cart item added", "id", item.ID, "product_id", item.ProductID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusOK, item)
}

type deleteItemResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing cart item id")
		return
	}

	if err := h.svc.RemoveItem(r.Context(), userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "cart item not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete cart item", "error", err, "id", id)
		h.writeFailure(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "cart item deleted", "id", id)
	h.writeJSON(w, http.StatusOK, deleteItemResponse{Status: "deleted", ID: id})
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrStoreUnavailable) {
		h.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	h.writeError(w, http.StatusInternalServerError, "internal server error")
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
