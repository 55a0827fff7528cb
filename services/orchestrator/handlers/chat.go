// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers wires the response pipeline to HTTP. Every handler is a
// constructor taking its dependencies and returning a gin.HandlerFunc, so
// tests can assemble a router from fakes.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/htwebz/assistant/services/knowledge"
	"github.com/htwebz/assistant/services/orchestrator/corpus"
	"github.com/htwebz/assistant/services/orchestrator/datatypes"
	"github.com/htwebz/assistant/services/orchestrator/learner"
	"github.com/htwebz/assistant/services/orchestrator/mathsolver"
	"github.com/htwebz/assistant/services/orchestrator/observability"
	"github.com/htwebz/assistant/services/orchestrator/ranker"
)

var chatTracer = otel.Tracer("htwebz.orchestrator.handlers")

// knowledgeConfidence scores an encyclopedia answer: stronger than a model
// guess, weaker than a verbatim corpus or template hit.
const knowledgeConfidence = 0.75

// rankWeakThreshold decides when a ranked answer is weak enough to try the
// encyclopedia path for question-shaped input.
const rankWeakThreshold = 0.5

// searchPrefixes mark an utterance as an explicit web search command.
var searchPrefixes = []string{
	"search the web for ",
	"search for ",
	"google ",
	"bing ",
}

// ChatDeps are the collaborators of the chat endpoint.
type ChatDeps struct {
	Ranker    *ranker.Ranker
	Corpus    *corpus.ConversationStore
	Wikipedia knowledge.Lookup
	Search    *knowledge.WebSearchClient
	Learner   *learner.Learner
	Metrics   *observability.ChatMetrics
}

// HandleChat answers POST /v1/chat.
//
// # Description
//
// The utterance routes through short-circuit stages before general ranking:
// arithmetic is solved deterministically, explicit search commands go to the
// web, everything else is ranked. Question-shaped input whose best ranked
// answer is weak gets one encyclopedia attempt. Vocabulary learning is
// kicked off for every utterance and never blocks the response.
func HandleChat(deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			deps.Metrics.ObserveRequest("chat", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			deps.Metrics.ObserveRequest("chat", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if deps.Learner != nil {
			deps.Learner.Learn(req.Message)
		}

		if resp, ok := solveMath(req.Message); ok {
			deps.Metrics.ObserveRequest("chat", nil)
			deps.Metrics.ObserveRanking(string(datatypes.SourceMath), 1, 0)
			c.JSON(http.StatusOK, resp)
			return
		}

		if resp, ok := runWebSearch(ctx, deps, req.Message); ok {
			deps.Metrics.ObserveRequest("chat", nil)
			deps.Metrics.ObserveRanking(string(datatypes.SourceWebSearch), 1, 0)
			c.JSON(http.StatusOK, resp)
			return
		}

		started := time.Now()
		candidates := deps.Ranker.Rank(ctx, req.Message, req.SessionID)
		elapsed := time.Since(started)

		candidates = tryEncyclopedia(ctx, deps, req.Message, candidates)

		deps.Metrics.ObserveRequest("chat", nil)
		deps.Metrics.ObserveRanking(string(candidates[0].Source), len(candidates), elapsed)
		deps.Metrics.CorpusRecords.Set(float64(deps.Corpus.Len()))

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Text:       candidates[0].Response,
			Candidates: candidates,
		})
	}
}

// solveMath answers arithmetic questions without touching the ranker.
func solveMath(message string) (datatypes.ChatResponse, bool) {
	if !mathsolver.IsMathQuery(message) {
		return datatypes.ChatResponse{}, false
	}
	text, err := mathsolver.Solve(message)
	if err != nil {
		// Looked numeric but didn't evaluate; let ranking have it.
		slog.Debug("Math stage declined input", "error", err)
		return datatypes.ChatResponse{}, false
	}
	candidate := datatypes.RankedCandidate{
		Response:   text,
		Confidence: 1.0,
		Source:     datatypes.SourceMath,
	}
	return datatypes.ChatResponse{Text: text, Candidates: []datatypes.RankedCandidate{candidate}}, true
}

// runWebSearch handles explicit "search for ..." commands. Returns false
// when the message is not a search command, search is disabled, or the
// search fails; the utterance then flows to normal ranking.
func runWebSearch(ctx context.Context, deps ChatDeps, message string) (datatypes.ChatResponse, bool) {
	if deps.Search == nil || !deps.Search.Enabled() {
		return datatypes.ChatResponse{}, false
	}

	lowered := strings.ToLower(strings.TrimSpace(message))
	var query string
	for _, prefix := range searchPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			query = strings.TrimSpace(lowered[len(prefix):])
			break
		}
	}
	if query == "" {
		return datatypes.ChatResponse{}, false
	}

	results, err := deps.Search.Search(ctx, query)
	if err != nil {
		slog.Warn("Web search failed, falling through to ranking", "query", query, "error", err)
		return datatypes.ChatResponse{}, false
	}

	text := knowledge.FormatResults(results)
	candidate := datatypes.RankedCandidate{
		Response:   text,
		Confidence: 1.0,
		Source:     datatypes.SourceWebSearch,
	}
	return datatypes.ChatResponse{Text: text, Candidates: []datatypes.RankedCandidate{candidate}}, true
}

// tryEncyclopedia upgrades a weak answer to an encyclopedia summary when
// the input is question-shaped. The summary is prepended as a new top
// candidate; the ranked tail is kept for attribution.
func tryEncyclopedia(ctx context.Context, deps ChatDeps, message string, candidates []datatypes.RankedCandidate) []datatypes.RankedCandidate {
	if deps.Wikipedia == nil || candidates[0].Confidence >= rankWeakThreshold {
		return candidates
	}
	topic := knowledge.TopicFromQuestion(message)
	if topic == "" || topic == strings.ToLower(strings.TrimSpace(message)) {
		// Not question-shaped; nothing to look up.
		return candidates
	}

	summary, err := deps.Wikipedia.Summary(ctx, message)
	if err != nil {
		slog.Debug("Encyclopedia lookup declined", "topic", topic, "error", err)
		return candidates
	}

	lead := datatypes.RankedCandidate{
		Response:   summary,
		Confidence: knowledgeConfidence,
		Source:     datatypes.SourceKnowledge,
	}

	// Remember the delivered answer so the next ask recalls it directly.
	go func() {
		appendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		deps.Corpus.Append(appendCtx, message, summary, "knowledge", false)
	}()
	merged := append([]datatypes.RankedCandidate{lead}, candidates...)
	if len(merged) > 3 {
		merged = merged[:3]
	}
	return merged
}
