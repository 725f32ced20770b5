package cart

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/catalog"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/identity"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store/memstore"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newService(t *testing.T) *Service {
	t.Helper()
	s := store.New(memstore.New())
	products := catalog.NewProductRepository(s)
	_, err := catalog.NewSeeder(products, catalog.SampleProducts(), discard).Seed(context.Background())
	require.NoError(t, err)
	return NewService(NewRepository(s), products)
}

func TestService_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("valid product", func(t *testing.T) {
		svc := newService(t)

		item, err := svc.AddItem(ctx, "user-1", "1", 2)
		require.NoError(t, err)
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, "user-1", item.UserID)

		items, err := svc.List(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, []domain.CartItem{item}, items)
	})

	t.Run("unknown product is rejected and nothing is stored", func(t *testing.T) {
		svc := newService(t)

		_, err := svc.AddItem(ctx, "user-1", "does-not-exist", 1)
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		items, err := svc.List(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		svc := newService(t)

		_, err := svc.AddItem(ctx, "user-1", "1", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("carts are per user", func(t *testing.T) {
		svc := newService(t)

		_, err := svc.AddItem(ctx, "user-1", "1", 1)
		require.NoError(t, err)

		items, err := svc.List(ctx, "user-2")
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestService_RemoveItem(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	item, err := svc.AddItem(ctx, "user-1", "2", 1)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, "user-1", item.ID))

	items, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, svc.RemoveItem(ctx, "user-1", item.ID), store.ErrNotFound)
}

func newRouter(svc *Service) http.Handler {
	h := NewHandler(svc, discard)
	r := chi.NewRouter()
	r.Use(identity.Middleware("demo"))
	r.Get("/cart", h.HandleList)
	r.Post("/cart/items", h.HandleAddItem)
	r.Delete("/cart/items/{id}", h.HandleDeleteItem)
	return r
}

func TestHandler(t *testing.T) {
	t.Run("add defaults quantity to one", func(t *testing.T) {
		mux := newRouter(newService(t))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"3"}`)))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var item domain.CartItem
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
		assert.Equal(t, 1, item.Quantity)
		assert.Equal(t, "demo", item.UserID)
	})

	t.Run("invalid product is 400", func(t *testing.T) {
		mux := newRouter(newService(t))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":"does-not-exist","quantity":1}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		mux := newRouter(newService(t))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list and delete", func(t *testing.T) {
		svc := newService(t)
		mux := newRouter(svc)
		item, err := svc.AddItem(context.Background(), "demo", "1", 2)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var items []domain.CartItem
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
		assert.Equal(t, []domain.CartItem{item}, items)

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cart/items/"+item.ID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"deleted","id":"`+item.ID+`"}`, rec.Body.String())

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/cart/items/"+item.ID, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty cart lists as empty array", func(t *testing.T) {
		mux := newRouter(newService(t))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}
