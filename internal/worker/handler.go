package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/messaging"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

type CartDeleter interface {
	Delete(ctx context.Context, userID, id string) error
}

// OrderConfirmedHandler finishes what checkout could not: it removes cart
// items left behind and then asks the email service to notify the user.
// Redelivery is safe because an already removed item is not an error.
type OrderConfirmedHandler struct {
	carts           CartDeleter
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewOrderConfirmedHandler(carts CartDeleter, emailServiceURL string, client *http.Client, logger *slog.Logger) *OrderConfirmedHandler {
	return &OrderConfirmedHandler{
		carts:           carts,
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *OrderConfirmedHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderConfirmedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order confirmed event: %w", err))
	}
	if event.OrderID == "" || event.UserID == "" {
		return messaging.Permanent(fmt.Errorf("order confirmed event missing order or user id"))
	}

	h.logger.InfoContext(ctx, "processing order confirmed event",
		"order_id", event.OrderID, "user_id", event.UserID, "pending", len(event.PendingCartItemIDs))

	if err := h.removeLeftovers(ctx, event); err != nil {
		return err
	}

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.InfoContext(ctx, "order processing complete", "order_id", event.OrderID)
	return nil
}

func (h *OrderConfirmedHandler) removeLeftovers(ctx context.Context, event domain.OrderConfirmedEvent) error {
	var errs []error
	for _, id := range event.PendingCartItemIDs {
		err := h.carts.Delete(ctx, event.UserID, id)
		switch {
		case err == nil:
			h.logger.InfoContext(ctx, "removed leftover cart item", "id", id, "order_id", event.OrderID)
		case errors.Is(err, store.ErrNotFound):
		default:
			h.logger.ErrorContext(ctx, "failed to remove leftover cart item", "error", err, "id", id, "order_id", event.OrderID)
			errs = append(errs, fmt.Errorf("remove cart item %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	OrderID string `json:"order_id"`
}

func (h *OrderConfirmedHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderConfirmedEvent) error {
	quantity := 0
	for _, item := range event.Items {
		quantity += item.Quantity
	}

	return h.sendEmail(ctx, emailRequest{
		To:      event.UserID + "@example.com",
		Subject: "Order Confirmation: " + event.OrderID,
		Body:    fmt.Sprintf("Your order %s has been confirmed with %d items.", event.OrderID, quantity),
		OrderID: event.OrderID,
	})
}

func (h *OrderConfirmedHandler) sendEmail(ctx context.Context, body emailRequest) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
