// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/vantage/services/router/analysis"
	"github.com/AleutianAI/vantage/services/router/config"
	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/AleutianAI/vantage/services/router/executor"
	"github.com/AleutianAI/vantage/services/router/handlers"
	"github.com/AleutianAI/vantage/services/router/observability"
	"github.com/AleutianAI/vantage/services/router/queue"
	"github.com/AleutianAI/vantage/services/router/registry"
	"github.com/AleutianAI/vantage/services/router/routes"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "vantage-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("router-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	configPath := os.Getenv("VANTAGE_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("FATAL: Could not load configuration: %v", err)
	}
	slog.Info("Configuration loaded", "regions", cfg.Regions,
		"providers", len(cfg.Providers), "port", cfg.Server.Port)

	metrics := observability.InitMetrics()
	influx := observability.NewLatencyRecorderFromEnv()
	defer influx.Close()

	// --- Registry, health monitor, executor ---
	reg := registry.New(cfg.Providers)
	monitor := registry.NewMonitor(reg, nil, registry.MonitorConfig{
		Interval:         cfg.Health.ProbeInterval.D(),
		ProbeTimeout:     cfg.Health.ProbeTimeout.D(),
		FailureThreshold: cfg.Health.FailureThreshold,
		ProbesPerSecond:  cfg.Health.ProbesPerSecond,
		Metrics:          metrics,
	})
	exec := executor.New(reg, nil, cfg.Executor.CallTimeout.D())

	// --- Queues and analysis ---
	results := queue.NewResultStore(cfg.Queue.SeedAvgDuration.D())
	hub := handlers.NewEventHub()
	events := func(ev datatypes.JobEvent) {
		hub.Broadcast(ev)
		if ev.Type == "completed" {
			if res, ok := results.Get(ev.JobID); ok {
				influx.RecordJobLatency(ev.Region, ev.ProviderID, res.Model,
					time.Duration(res.DurationSec*float64(time.Second)))
			}
		}
	}
	manager := queue.NewManager(cfg.Regions, exec, results, events, metrics, queue.Options{
		MaxRetries:          cfg.Queue.MaxRetries,
		BackoffCap:          cfg.Queue.BackoffCap.D(),
		RegularLaneCapacity: cfg.Queue.RegularLaneCapacity,
		PriorityFairnessCap: cfg.Queue.PriorityFairnessCap,
	})

	engine, err := analysis.NewEngine(cfg.Scoring, metrics)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the diff engine: %v", err)
	}
	comparer := analysis.NewComparer(50)

	// --- HTTP server ---
	router := gin.Default()
	router.Use(otelgin.Middleware("router-service"))
	routes.SetupRoutes(router, manager, reg, engine, comparer, hub)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.StartWorkers(ctx) })
	g.Go(func() error {
		err := monitor.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if configPath != "" {
		watcher := config.NewWatcher(configPath, engine.SetScoring)
		g.Go(func() error {
			err := watcher.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		slog.Info("Starting the router server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server exited with error: %v", err)
	}
	slog.Info("Router service stopped")
}
