// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the response
// pipeline.
//
// # Description
//
// Counters and histograms cover the chat path end to end: requests by route
// and outcome, which strategy won the ranking, candidate counts, and
// latency. Exposed on /metrics for Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "htwebz"

const chatSubsystem = "chat"

// ChatMetrics holds the Prometheus metrics for the response pipeline.
// Initialize once at startup via NewChatMetrics().
type ChatMetrics struct {
	// RequestsTotal counts chat requests.
	// Labels: route (chat, feedback), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ResponsesTotal counts delivered responses by winning strategy.
	// Labels: source (direct_match, template, historical, ai_model,
	// contextual_match, math, web_search, knowledge, none)
	ResponsesTotal *prometheus.CounterVec

	// CandidateCount observes how many candidates ranking produced.
	CandidateCount prometheus.Histogram

	// RankDurationSeconds measures the full ranking pass.
	RankDurationSeconds prometheus.Histogram

	// CorpusRecords tracks the conversation corpus size.
	CorpusRecords prometheus.Gauge

	// LearnedTermsTotal counts definitions stored by the learner.
	LearnedTermsTotal prometheus.Counter
}

// NewChatMetrics registers the pipeline metrics with the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration.
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	factory := promauto.With(reg)
	return &ChatMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "requests_total",
			Help:      "Chat requests by route and status.",
		}, []string{"route", "status"}),
		ResponsesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "responses_total",
			Help:      "Delivered responses by winning strategy.",
		}, []string{"source"}),
		CandidateCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "candidate_count",
			Help:      "Candidates produced per ranking pass.",
			Buckets:   []float64{0, 1, 2, 3},
		}),
		RankDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "rank_duration_seconds",
			Help:      "Latency of a full ranking pass.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		CorpusRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "corpus_records",
			Help:      "Conversation records currently in the corpus.",
		}),
		LearnedTermsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: chatSubsystem,
			Name:      "learned_terms_total",
			Help:      "Definitions stored by the vocabulary learner.",
		}),
	}
}

// ObserveRequest records one request outcome.
func (m *ChatMetrics) ObserveRequest(route string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// ObserveRanking records the shape and latency of a ranking pass.
func (m *ChatMetrics) ObserveRanking(source string, candidates int, elapsed time.Duration) {
	m.ResponsesTotal.WithLabelValues(source).Inc()
	m.CandidateCount.Observe(float64(candidates))
	m.RankDurationSeconds.Observe(elapsed.Seconds())
}
