package email

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Handler stands in for a mail provider. It accepts messages, waits a short
// random delay and reports them as sent.
type Handler struct {
	logger *slog.Logger
	delay  func() time.Duration
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		delay: func() time.Duration {
			return time.Duration(50+rand.IntN(151)) * time.Millisecond
		},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	OrderID string `json:"order_id,omitempty"`
}

type sendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !strings.Contains(req.To, "@") {
		h.writeError(w, http.StatusBadRequest, "to must be an email address")
		return
	}
	if req.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	select {
	case <-time.After(h.delay()):
	case <-r.Context().Done():
		return
	}

	id := uuid.New().String()
	h.logger.InfoContext(r.Context(), "email sent", "id", id, "to", req.To, "subject", req.Subject, "order_id", req.OrderID)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent", ID: id})
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
