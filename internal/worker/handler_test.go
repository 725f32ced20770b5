package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/cart"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/messaging"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store/memstore"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type emailServer struct {
	mu       sync.Mutex
	requests []emailRequest
	status   int
}

func (s *emailServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.requests = append(s.requests, req)
	status := s.status
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (s *emailServer) sent() []emailRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emailRequest(nil), s.requests...)
}

func (s *emailServer) fail(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func payload(t *testing.T, event domain.OrderConfirmedEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func TestOrderConfirmedHandler(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*cart.Repository, *emailServer, *OrderConfirmedHandler) {
		t.Helper()
		carts := cart.NewRepository(store.New(memstore.New()))
		mail := &emailServer{}
		srv := httptest.NewServer(mail)
		t.Cleanup(srv.Close)
		return carts, mail, NewOrderConfirmedHandler(carts, srv.URL, srv.Client(), discard)
	}

	t.Run("removes leftovers and sends email", func(t *testing.T) {
		carts, mail, h := setup(t)
		_, err := carts.Save(ctx, domain.CartItem{ID: "a", UserID: "demo", ProductID: "1", Quantity: 1})
		require.NoError(t, err)

		err = h.Handle(ctx, payload(t, domain.OrderConfirmedEvent{
			OrderID:            "order-1",
			UserID:             "demo",
			Items:              []domain.CartItem{{ID: "a", UserID: "demo", ProductID: "1", Quantity: 1}, {ID: "b", UserID: "demo", ProductID: "2", Quantity: 2}},
			PendingCartItemIDs: []string{"a"},
		}))
		require.NoError(t, err)

		left, err := carts.List(ctx, "demo")
		require.NoError(t, err)
		assert.Empty(t, left)

		sent := mail.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "demo@example.com", sent[0].To)
		assert.Equal(t, "order-1", sent[0].OrderID)
		assert.Contains(t, sent[0].Body, "3 items")
	})

	t.Run("redelivery after cleanup is harmless", func(t *testing.T) {
		_, mail, h := setup(t)

		err := h.Handle(ctx, payload(t, domain.OrderConfirmedEvent{
			OrderID:            "order-1",
			UserID:             "demo",
			PendingCartItemIDs: []string{"gone"},
		}))
		require.NoError(t, err)
		assert.Len(t, mail.sent(), 1)
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		_, mail, h := setup(t)

		err := h.Handle(ctx, []byte("{not json"))
		require.Error(t, err)
		assert.True(t, messaging.IsPermanent(err))
		assert.Empty(t, mail.sent())
	})

	t.Run("missing ids are permanent", func(t *testing.T) {
		_, _, h := setup(t)

		err := h.Handle(ctx, payload(t, domain.OrderConfirmedEvent{OrderID: "order-1"}))
		assert.True(t, messaging.IsPermanent(err))
	})

	t.Run("email failure is retried", func(t *testing.T) {
		_, mail, h := setup(t)
		mail.fail(http.StatusInternalServerError)

		err := h.Handle(ctx, payload(t, domain.OrderConfirmedEvent{OrderID: "order-1", UserID: "demo"}))
		require.Error(t, err)
		assert.False(t, messaging.IsPermanent(err))
	})
}

type failingCart struct{}

func (failingCart) Delete(context.Context, string, string) error {
	return store.Unavailable(errors.New("connection refused"))
}

func TestOrderConfirmedHandler_CleanupFailureSkipsEmail(t *testing.T) {
	mail := &emailServer{}
	srv := httptest.NewServer(mail)
	defer srv.Close()

	h := NewOrderConfirmedHandler(failingCart{}, srv.URL, srv.Client(), discard)
	err := h.Handle(context.Background(), payload(t, domain.OrderConfirmedEvent{
		OrderID:            "order-1",
		UserID:             "demo",
		PendingCartItemIDs: []string{"a", "b"},
	}))

	require.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.False(t, messaging.IsPermanent(err))
	assert.Empty(t, mail.sent())
}
