// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package learner grows the assistant's vocabulary in the background.
//
// Every inbound utterance is scanned for content terms with no stored
// definition; unknown terms are looked up externally and the results land
// in the definition store and the knowledge mapping, where template
// placeholders and exact lookups pick them up on later turns. Everything
// here is fire-and-forget: learning never blocks or fails a response, and
// the process tolerates in-flight lookups at shutdown.
package learner

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/htwebz/assistant/services/knowledge"
	"github.com/htwebz/assistant/services/orchestrator/corpus"
	"github.com/htwebz/assistant/services/orchestrator/similarity"
)

var tracer = otel.Tracer("htwebz.orchestrator.learner")

// lookupTimeout bounds one external definition fetch.
const lookupTimeout = knowledge.DefaultTimeout

// Learner coordinates background vocabulary enrichment.
//
// External lookups are rate-limited so a burst of chatty traffic cannot
// hammer the knowledge source, and deduplicated in flight so ten concurrent
// utterances mentioning "kubernetes" trigger one fetch.
type Learner struct {
	definitions *corpus.DefinitionStore
	lookup      knowledge.Lookup
	km          *corpus.KnowledgeMap // nil disables mapping enrichment
	learned     prometheus.Counter   // nil disables metrics

	limiter *rate.Limiter
	group   singleflight.Group

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option adjusts Learner construction.
type Option func(*Learner)

// WithKnowledgeMap also records learned definitions in the knowledge
// mapping, so future exact lookups and template placeholders resolve them.
func WithKnowledgeMap(km *corpus.KnowledgeMap) Option {
	return func(l *Learner) { l.km = km }
}

// WithLearnedCounter counts stored definitions.
func WithLearnedCounter(c prometheus.Counter) Option {
	return func(l *Learner) { l.learned = c }
}

// New builds a Learner. lookupsPerSecond bounds external traffic;
// non-positive values fall back to one lookup per second.
func New(definitions *corpus.DefinitionStore, lookup knowledge.Lookup, lookupsPerSecond float64, opts ...Option) *Learner {
	if lookupsPerSecond <= 0 {
		lookupsPerSecond = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Learner{
		definitions: definitions,
		lookup:      lookup,
		limiter:     rate.NewLimiter(rate.Limit(lookupsPerSecond), 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Learn scans inputText for unknown terms and enriches the definition
// store and, when configured, the knowledge mapping.
//
// # Description
//
// Returns immediately; the work runs detached from the request that
// triggered it. Terms already defined are skipped before any network
// traffic. Lookup failures (not found, disambiguation, transport) log at
// debug and skip the term; there are no synchronous retries. Re-learning a
// known term is a no-op, so Learn is idempotent.
func (l *Learner) Learn(inputText string) {
	terms := similarity.KeyTerms(inputText)
	if len(terms) == 0 {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, span := tracer.Start(l.ctx, "Learner.Learn")
		defer span.End()

		for _, term := range terms {
			if ctx.Err() != nil {
				return
			}
			l.learnTerm(ctx, term)
		}
	}()
}

func (l *Learner) learnTerm(ctx context.Context, term string) {
	known, err := l.definitions.Has(term)
	if err != nil {
		slog.Warn("Definition existence check failed", "term", term, "error", err)
		return
	}
	if known {
		return
	}

	// One in-flight fetch per term, shared across concurrent utterances.
	_, err, _ = l.group.Do(term, func() (interface{}, error) {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()

		definition, err := l.lookup.Summary(lookupCtx, term)
		if err != nil {
			return nil, err
		}
		stored, err := l.definitions.Put(term, definition)
		if err != nil {
			return nil, err
		}
		if stored {
			// Fold the definition into the mapping the response path
			// reads, so the term resolves on the next utterance.
			if l.km != nil {
				l.km.Set(term, definition)
			}
			if l.learned != nil {
				l.learned.Inc()
			}
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) || errors.Is(err, context.Canceled) {
			slog.Debug("Skipping term", "term", term, "reason", err)
		} else {
			slog.Warn("Vocabulary lookup failed", "term", term, "error", err)
		}
	}
}

// closeGrace bounds how long Close waits for in-flight lookups.
const closeGrace = 5 * time.Second

// Close waits briefly for in-flight lookups, then cancels whatever remains.
// Best effort: terms lost here are simply learned again on future traffic.
func (l *Learner) Close() {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeGrace):
		slog.Warn("Abandoning in-flight vocabulary lookups at shutdown")
	}
	l.cancel()
}
