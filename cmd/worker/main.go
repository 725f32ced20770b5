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
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/config"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/messaging"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/telemetry"
	"github.com/joao-fontenele/cloudmart-otel-demo/internal/worker"
)

const (
	serviceName    = "cloudmart-worker"
	serviceVersion = "0.1.0"
)

func main() {
	cfg, err := config.Load()
	logger := telemetry.NewLogger(os.Stdout, serviceName, cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	if cfg.EmailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	s, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer func() { _ = s.Close() }()

	if err := bootstrap.Init(ctx, s, false, logger); err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderConfirmed, messaging.GroupCartCleanup,
		messaging.WithLogger(logger),
	)
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := worker.NewOrderConfirmedHandler(cart.NewRepository(s), cfg.EmailServiceURL, httpClient, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting cart cleanup worker", "brokers", cfg.KafkaBrokers, "topic", messaging.TopicOrderConfirmed)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
