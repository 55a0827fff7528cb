// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ranker merges every response strategy into one ranked candidate
// list: corpus recall, template matching, knowledge-mapping hits, historical
// similarity, and an optional generative model. The top candidate is the
// assistant's answer.
//
// The ranker never fails as a whole. Every stage that errors is logged and
// excluded; when all stages come up empty the caller gets a static fallback
// with zero confidence.
package ranker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/htwebz/assistant/services/knowledge"
	"github.com/htwebz/assistant/services/llm"
	"github.com/htwebz/assistant/services/orchestrator/corpus"
	"github.com/htwebz/assistant/services/orchestrator/datatypes"
	"github.com/htwebz/assistant/services/orchestrator/similarity"
	"github.com/htwebz/assistant/services/orchestrator/templates"
)

var tracer = otel.Tracer("htwebz.orchestrator.ranker")

const (
	// FallbackResponse is returned when no strategy produces a candidate.
	FallbackResponse = "I'm not sure how to respond to that."

	// maxCandidates caps the ranked list returned to callers.
	maxCandidates = 3

	// maxHistorical caps corpus-similarity candidates per request.
	maxHistorical = 5

	// historicalFloor discards weak historical candidates.
	historicalFloor = 0.3

	// templateDistanceBound gates template candidates on near-verbatim
	// pattern hits.
	templateDistanceBound = 3

	// modelConfidence is the fixed baseline for model candidates; the
	// model is not self-calibrated so its score is a constant heuristic.
	modelConfidence = 0.6

	// mappingConfidence scores exact knowledge-mapping hits: stronger than
	// the model baseline, below a verbatim corpus or template hit.
	mappingConfidence = 0.75

	// continuityBoost multiplies direct and model confidence when the
	// input leans on earlier turns ("it", "that") and recent history is
	// topically close.
	continuityBoost = 1.2

	// continuityFloor is the minimum similarity between the input and a
	// recent turn for the boost to apply.
	continuityFloor = 0.3

	// defaultModelTimeout bounds the model stage per request.
	defaultModelTimeout = 15 * time.Second
)

// repeatVariants are the anti-repetition rewrites. The %s is the prior
// input the repeated answer originally matched.
var repeatVariants = []string{
	"We already went over %q, but once more: ",
	"Like I said about %q: ",
	"Still the same answer for %q: ",
}

// Ranker owns the response pipeline for a single process.
type Ranker struct {
	corpus    *corpus.ConversationStore
	templates *templates.Store
	knowledge templates.KnowledgeLookup
	model     llm.Client // nil when no backend is configured

	history      *SessionHistory
	completions  *completionCache
	modelTimeout time.Duration
}

// Option adjusts Ranker construction.
type Option func(*Ranker)

// WithModel attaches a generative backend. A nil client is ignored.
func WithModel(c llm.Client) Option {
	return func(r *Ranker) { r.model = c }
}

// WithModelTimeout overrides the per-request model deadline.
func WithModelTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.modelTimeout = d
		}
	}
}

// New builds a Ranker over the given stores. knowledge may be nil; template
// placeholders then render only from catalogue-literal text.
func New(store *corpus.ConversationStore, tmpl *templates.Store, knowledge templates.KnowledgeLookup, opts ...Option) *Ranker {
	r := &Ranker{
		corpus:       store,
		templates:    tmpl,
		knowledge:    knowledge,
		history:      NewSessionHistory(),
		completions:  newCompletionCache(256),
		modelTimeout: defaultModelTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History exposes the session history for handlers (context echo, reset).
func (r *Ranker) History() *SessionHistory {
	return r.history
}

// Rank produces up to three candidates for inputText, best first.
//
// # Description
//
// Local strategies (corpus nearest neighbor, template match, historical
// similarity) run alongside the optional model stage; the model is the only
// network hop and gets its own deadline. Candidates merge into one list,
// continuity boosts apply, and the list is sorted and truncated. The winner
// is fed back into the corpus asynchronously so live traffic grows the
// corpus.
//
// # Inputs
//
//   - ctx: Request-scoped; bounds the model stage.
//   - inputText: Raw utterance. Empty or whitespace-only yields the fallback.
//   - sessionID: Keys history tracking. Empty string is a valid session.
//
// # Outputs
//
//   - []datatypes.RankedCandidate: 1–3 candidates, descending confidence.
//     Never empty; worst case is the static fallback at confidence zero.
func (r *Ranker) Rank(ctx context.Context, inputText, sessionID string) []datatypes.RankedCandidate {
	ctx, span := tracer.Start(ctx, "Ranker.Rank")
	defer span.End()

	if strings.TrimSpace(inputText) == "" {
		return []datatypes.RankedCandidate{fallback()}
	}
	normalized := similarity.Normalize(inputText)

	var (
		local []datatypes.RankedCandidate
		model *datatypes.RankedCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		local = r.localCandidates(gctx, normalized)
		return nil
	})
	g.Go(func() error {
		model = r.modelCandidate(gctx, normalized)
		return nil
	})
	_ = g.Wait() // stages report nothing fatal

	candidates := local
	if model != nil {
		candidates = append(candidates, *model)
	}
	span.SetAttributes(attribute.Int("rank.candidates", len(candidates)))

	if len(candidates) == 0 {
		return []datatypes.RankedCandidate{fallback()}
	}

	r.applyContinuityBoost(normalized, sessionID, candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	winner := candidates[0].Response
	delivered := r.applyAntiRepetition(sessionID, normalized, candidates)
	r.history.Observe(sessionID, normalized, delivered, winner)

	// Corpus growth is a side effect, never on the response path. The raw
	// winner is stored, not the delivered text: anti-repetition rewrites
	// are session phrasing, not training data.
	go func() {
		appendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.corpus.Append(appendCtx, normalized, winner, "assistant", false)
	}()

	return candidates
}

// localCandidates runs the in-memory strategies. Any stage error drops that
// stage only.
func (r *Ranker) localCandidates(ctx context.Context, normalized string) []datatypes.RankedCandidate {
	var out []datatypes.RankedCandidate

	if nearest := r.corpus.NearestNeighbor(ctx, normalized); nearest != nil {
		out = append(out, datatypes.RankedCandidate{
			Response:   nearest.Record.Output,
			Confidence: clamp(nearest.Confidence),
			Source:     datatypes.SourceDirectMatch,
		})
	}

	if match := r.templates.FindBest(normalized, templates.DefaultThreshold); match.Found && match.Distance < templateDistanceBound {
		out = append(out, datatypes.RankedCandidate{
			Response:   templates.Render(match.Template.Output, r.knowledge),
			Confidence: clamp(1 - float64(match.Distance)/10),
			Source:     datatypes.SourceTemplate,
		})
	}

	if c := r.mappingCandidate(normalized); c != nil {
		out = append(out, *c)
	}

	terms := similarity.KeyTerms(normalized)
	for _, rel := range r.corpus.RelatedByKeyTerms(ctx, normalized, terms, maxHistorical) {
		if rel.Similarity <= historicalFloor {
			continue
		}
		out = append(out, datatypes.RankedCandidate{
			Response:   rel.Record.Output,
			Confidence: clamp(rel.Similarity),
			Source:     datatypes.SourceHistorical,
		})
	}
	return out
}

// mappingCandidate consults the knowledge mapping, where feedback overrides
// and learned definitions land. The whole utterance is tried first, then the
// topic of a definition-style question ("what is x" resolves the entry "x").
func (r *Ranker) mappingCandidate(normalized string) *datatypes.RankedCandidate {
	if r.knowledge == nil {
		return nil
	}

	answer, ok := r.knowledge.Get(normalized)
	if !ok {
		topic := knowledge.TopicFromQuestion(normalized)
		if topic == "" || topic == normalized {
			return nil
		}
		if answer, ok = r.knowledge.Get(topic); !ok {
			return nil
		}
	}
	return &datatypes.RankedCandidate{
		Response:   answer,
		Confidence: mappingConfidence,
		Source:     datatypes.SourceKnowledge,
	}
}

// modelCandidate invokes the generative backend with its own deadline.
// Errors and timeouts log and yield nil; the model is strictly optional.
func (r *Ranker) modelCandidate(ctx context.Context, normalized string) *datatypes.RankedCandidate {
	if r.model == nil {
		return nil
	}

	if cached, ok := r.completions.get(normalized); ok {
		return &datatypes.RankedCandidate{
			Response:   cached,
			Confidence: modelConfidence,
			Source:     datatypes.SourceAIModel,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.modelTimeout)
	defer cancel()

	text, err := r.model.Complete(ctx, normalized)
	if err != nil {
		slog.Warn("Model stage excluded from ranking",
			"backend", r.model.Name(), "error", err)
		return nil
	}
	r.completions.set(normalized, text)
	return &datatypes.RankedCandidate{
		Response:   text,
		Confidence: modelConfidence,
		Source:     datatypes.SourceAIModel,
	}
}

// applyContinuityBoost lifts direct and model candidates when the input
// refers back to recent conversation.
func (r *Ranker) applyContinuityBoost(normalized, sessionID string, candidates []datatypes.RankedCandidate) {
	if !similarity.HasAnaphora(normalized) {
		return
	}

	continuous := false
	for _, turn := range r.history.Recent(sessionID) {
		if similarity.TokenOverlap(normalized, turn.Question) > continuityFloor ||
			similarity.Ratio(normalized, turn.Question) > continuityFloor {
			continuous = true
			break
		}
	}
	if !continuous {
		return
	}

	for i := range candidates {
		switch candidates[i].Source {
		case datatypes.SourceDirectMatch, datatypes.SourceAIModel:
			candidates[i].Confidence = clamp(candidates[i].Confidence * continuityBoost)
			candidates[i].Source = datatypes.SourceContextual
		}
	}
}

// applyAntiRepetition rewrites the best candidate when the session already
// received it last turn. The variant index is the repeat count modulo the
// variant list, so rewrites cycle deterministically.
func (r *Ranker) applyAntiRepetition(sessionID, normalized string, candidates []datatypes.RankedCandidate) string {
	best := &candidates[0]
	repeats := r.history.Repeats(sessionID, best.Response)
	if repeats == 0 || best.Response == FallbackResponse {
		return best.Response
	}

	prior := normalized
	if m := r.corpus.NearestNeighbor(context.Background(), normalized); m != nil {
		prior = m.Record.Input
	}
	prefix := fmt.Sprintf(repeatVariants[repeats%len(repeatVariants)], prior)
	best.Response = prefix + best.Response
	return best.Response
}

func fallback() datatypes.RankedCandidate {
	return datatypes.RankedCandidate{
		Response:   FallbackResponse,
		Confidence: 0,
		Source:     datatypes.SourceNone,
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
