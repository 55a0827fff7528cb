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
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/htwebz/assistant/services/knowledge"
	"github.com/htwebz/assistant/services/llm"
	"github.com/htwebz/assistant/services/orchestrator/corpus"
	"github.com/htwebz/assistant/services/orchestrator/handlers"
	"github.com/htwebz/assistant/services/orchestrator/learner"
	"github.com/htwebz/assistant/services/orchestrator/observability"
	"github.com/htwebz/assistant/services/orchestrator/ranker"
	"github.com/htwebz/assistant/services/orchestrator/routes"
	"github.com/htwebz/assistant/services/orchestrator/templates"
)

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("Ignoring non-numeric environment value", "key", key, "value", v)
	}
	return fallback
}

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
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
		resource.WithAttributes(semconv.ServiceNameKey.String("assistant-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

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

	port := getEnvString("ASSISTANT_PORT", "12310")
	dataDir := getEnvString("ASSISTANT_DATA_DIR", "/var/lib/assistant")

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	store := corpus.NewConversationStore(dataDir + "/corpus.json")
	km := corpus.NewKnowledgeMap(dataDir + "/knowledge.json")
	flushInterval := time.Duration(getEnvInt("ASSISTANT_FLUSH_SECONDS", 5)) * time.Second
	go store.Run(ctx, flushInterval)
	go km.Run(ctx, flushInterval)

	definitions, err := corpus.OpenDefinitionStore(
		corpus.DefaultDefinitionConfig(dataDir + "/definitions"))
	if err != nil {
		log.Fatalf("failed to open definition store: %v", err)
	}
	defer definitions.Close()

	// --- Template catalogue ---
	cataloguePath := getEnvString("ASSISTANT_TEMPLATES", dataDir+"/templates.yaml")
	catalogue, err := templates.LoadFile(cataloguePath)
	if err != nil {
		log.Fatalf("failed to load template catalogue: %v", err)
	}
	if err := catalogue.Watch(ctx, cataloguePath); err != nil {
		slog.Warn("Template hot reload disabled", "error", err)
	}

	// --- External knowledge + model backend ---
	wikipedia := knowledge.NewWikipediaClient()
	search := knowledge.NewWebSearchClient(os.Getenv("BING_SEARCH_API_KEY"))
	if search.Enabled() {
		slog.Info("Web search enabled")
	}

	var rankerOpts []ranker.Option
	model, err := llm.FromEnv()
	switch {
	case err == nil:
		slog.Info("Model backend configured", "backend", model.Name())
		rankerOpts = append(rankerOpts, ranker.WithModel(model))
	case errors.Is(err, llm.ErrNoBackend):
		// Corpus and templates only; a valid configuration.
	default:
		log.Fatalf("failed to configure model backend: %v", err)
	}

	metrics := observability.NewChatMetrics(prometheus.DefaultRegisterer)

	rk := ranker.New(store, catalogue, km, rankerOpts...)
	vocab := learner.New(definitions, wikipedia,
		float64(getEnvInt("ASSISTANT_LOOKUPS_PER_SECOND", 1)),
		learner.WithKnowledgeMap(km),
		learner.WithLearnedCounter(metrics.LearnedTermsTotal))
	defer vocab.Close()

	// --- HTTP surface ---
	router := gin.Default()
	router.Use(otelgin.Middleware("assistant-service"))
	routes.SetupRoutes(router,
		handlers.ChatDeps{
			Ranker:    rk,
			Corpus:    store,
			Wikipedia: wikipedia,
			Search:    search,
			Learner:   vocab,
			Metrics:   metrics,
		},
		handlers.FeedbackDeps{
			Corpus:    store,
			Knowledge: km,
			Metrics:   metrics,
		})

	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		slog.Info("Starting the assistant server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if err := store.Flush(); err != nil {
		slog.Error("Final corpus flush failed", "error", err)
	}
	if err := km.Flush(); err != nil {
		slog.Error("Final knowledge flush failed", "error", err)
	}
}
