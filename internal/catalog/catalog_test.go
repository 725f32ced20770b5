package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/domain"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store/memstore"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newRepo() *ProductRepository {
	return NewProductRepository(store.New(memstore.New()))
}

func TestSeeder_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	seeder := NewSeeder(repo, SampleProducts(), discard)

	n, err := seeder.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = seeder.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	products, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, products, 4)
}

func TestSeeder_ConvergesWhenProbesRace(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()

	// Both seeders see an empty catalog before either writes.
	for range 2 {
		for _, p := range SampleProducts() {
			_, err := repo.Save(ctx, p)
			require.NoError(t, err)
		}
	}

	products, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, SampleProducts(), products)
}

func TestSeeder_SkipsNonEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	_, err := repo.Save(ctx, domain.Product{ID: "99", Name: "Desk", Category: "Office", Price: 150})
	require.NoError(t, err)

	n, err := NewSeeder(repo, SampleProducts(), discard).Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	products, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	_, err := NewSeeder(repo, SampleProducts(), discard).Seed(ctx)
	require.NoError(t, err)

	t.Run("categories are sorted and unique", func(t *testing.T) {
		categories, err := repo.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Electronics", "Home", "Office"}, categories)
	})

	t.Run("get by id across partitions", func(t *testing.T) {
		p, err := repo.GetByID(ctx, "3")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Coffee Mug", p.Name)
	})

	t.Run("missing id", func(t *testing.T) {
		p, err := repo.GetByID(ctx, "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("filter by category", func(t *testing.T) {
		products, err := repo.List(ctx, "Electronics")
		require.NoError(t, err)
		assert.Len(t, products, 2)
	})
}

type downBackend struct {
	*memstore.Backend
}

func (b downBackend) Query(context.Context, store.Container, store.Filter) iter.Seq2[store.Item, error] {
	return func(yield func(store.Item, error) bool) {
		yield(nil, store.Unavailable(errors.New("connection refused")))
	}
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	repo := newRepo()
	_, err := NewSeeder(repo, SampleProducts(), discard).Seed(ctx)
	require.NoError(t, err)

	router := func(h *Handler) http.Handler {
		r := chi.NewRouter()
		r.Get("/products", h.HandleList)
		r.Get("/products/{id}", h.HandleGet)
		r.Get("/categories", h.HandleCategories)
		return r
	}
	mux := router(NewHandler(repo, discard))

	t.Run("list products", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var products []domain.Product
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&products))
		assert.Len(t, products, 4)
	})

	t.Run("list products by category", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?category=Home", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var products []domain.Product
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&products))
		require.Len(t, products, 1)
		assert.Equal(t, "3", products[0].ID)
	})

	t.Run("get product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var p domain.Product
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
		assert.Equal(t, "Laptop", p.Name)
	})

	t.Run("unknown product is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("categories", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `["Electronics","Home","Office"]`, rec.Body.String())
	})

	t.Run("store outage is 503", func(t *testing.T) {
		down := router(NewHandler(NewProductRepository(store.New(downBackend{memstore.New()})), discard))

		rec := httptest.NewRecorder()
		down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
