package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/bootstrap"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/cart"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/catalog"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/config"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/idempotency"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/messaging"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/orders"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/server"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/telemetry"
)

const (
	serviceName    = "cloudmart-api"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	s, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer func() { _ = s.Close() }()

	if err := bootstrap.Init(ctx, s, cfg.SeedCatalog, logger); err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}

	var publisher orders.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderConfirmed)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	var cache idempotency.Cache
	if cfg.RedisAddr != "" {
		redisCache := idempotency.NewRedisCache(cfg.RedisAddr, serviceName)
		defer func() { _ = redisCache.Close() }()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, idempotency keys will fail open", "error", err)
		}
		cache = redisCache
	}

	products := catalog.NewProductRepository(s)
	carts := cart.NewRepository(s)
	orderRepo := orders.NewOrderRepository(s)

	checkout, err := orders.NewCheckout(carts, orderRepo, publisher, logger)
	if err != nil {
		logger.Error("failed to create checkout", "error", err)
		os.Exit(1)
	}

	router := server.NewRouter(server.Deps{
		Store:       s,
		Catalog:     catalog.NewHandler(products, logger),
		Cart:        cart.NewHandler(cart.NewService(carts, products), logger),
		Orders:      orders.NewHandler(checkout, orderRepo, logger),
		Idempotency: cache,
		Metrics:     metricsHandler,
		UserID:      cfg.DemoUserID,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
