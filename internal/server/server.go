package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/cart"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/catalog"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/idempotency"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/identity"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/orders"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/telemetry"
)

const APIPrefix = "/api/v1"

type Deps struct {
	Store   *store.Store
	Catalog *catalog.Handler
	Cart    *cart.Handler
	Orders  *orders.Handler

	// Idempotency may be nil, which disables response replay.
	Idempotency idempotency.Cache
	Metrics     http.Handler
	UserID      string
	Logger      *slog.Logger
}

// NewRouter serves the API both under APIPrefix and at the root.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteAttribute)

	r.Get("/health", healthHandler(d.Store, d.Logger))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	api := func(r chi.Router) {
		r.Use(identity.Middleware(d.UserID))
		r.Use(idempotency.Middleware(d.Idempotency, idempotency.DefaultTTL, d.Logger, APIPrefix))

		r.Get("/products", d.Catalog.HandleList)
		r.Get("/products/{id}", d.Catalog.HandleGet)
		r.Get("/categories", d.Catalog.HandleCategories)

		r.Get("/cart", d.Cart.HandleList)
		r.Post("/cart/items", d.Cart.HandleAddItem)
		r.Delete("/cart/items/{id}", d.Cart.HandleDeleteItem)

		r.Get("/orders", d.Orders.HandleList)
		r.Post("/orders", d.Orders.HandleCreate)
	}
	r.Route(APIPrefix, api)
	r.Group(api)

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}

// healthHandler probes the products container with a single-item query.
func healthHandler(s *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := store.Collect(s.Query(r.Context(), store.ContainerProducts, store.All().Limit(1)))

		status, body := http.StatusOK, healthResponse{Status: "ok", Store: "connected"}
		if err != nil {
			logger.ErrorContext(r.Context(), "health check failed", "error", err)
			status, body = http.StatusServiceUnavailable, healthResponse{Status: "error", Store: "disconnected", Error: "store unavailable"}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logger.Error("failed to encode response", "error", err)
		}
	}
}
