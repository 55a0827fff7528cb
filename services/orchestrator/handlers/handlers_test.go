// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/htwebz/assistant/services/knowledge"
	"github.com/htwebz/assistant/services/orchestrator/corpus"
	"github.com/htwebz/assistant/services/orchestrator/datatypes"
	"github.com/htwebz/assistant/services/orchestrator/learner"
	"github.com/htwebz/assistant/services/orchestrator/observability"
	"github.com/htwebz/assistant/services/orchestrator/ranker"
	"github.com/htwebz/assistant/services/orchestrator/templates"
)

type fakeWikipedia struct {
	summaries map[string]string
}

func (f *fakeWikipedia) Summary(ctx context.Context, query string) (string, error) {
	topic := knowledge.TopicFromQuestion(query)
	if s, ok := f.summaries[topic]; ok {
		return s, nil
	}
	return "", knowledge.ErrNotFound
}

type testEnv struct {
	router    *gin.Engine
	store     *corpus.ConversationStore
	knowledge *corpus.KnowledgeMap
}

func newTestEnv(t *testing.T, wikipedia knowledge.Lookup) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	store := corpus.NewConversationStore(filepath.Join(dir, "corpus.json"))
	km := corpus.NewKnowledgeMap(filepath.Join(dir, "knowledge.json"))
	tmpl := templates.NewStore([]datatypes.Template{
		{Input: "hello", Output: "Hi {user name}!"},
	})
	rk := ranker.New(store, tmpl, km)
	metrics := observability.NewChatMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.GET("/health", HealthCheck)
	router.POST("/v1/chat", HandleChat(ChatDeps{
		Ranker:    rk,
		Corpus:    store,
		Wikipedia: wikipedia,
		Metrics:   metrics,
	}))
	router.POST("/v1/feedback", HandleFeedback(FeedbackDeps{
		Corpus:    store,
		Knowledge: km,
		Metrics:   metrics,
	}))
	router.GET("/v1/conversations", ListConversations(store))
	router.DELETE("/v1/conversations/:id", DeleteConversation(store))

	return &testEnv{router: router, store: store, knowledge: km}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeChat(t *testing.T, w *httptest.ResponseRecorder) datatypes.ChatResponse {
	t.Helper()
	var resp datatypes.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestHandleChat_CorpusRecall(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Append(context.Background(), "how r u", "I'm good", "user", false)

	w := env.post(t, "/v1/chat", datatypes.ChatRequest{Message: "how are you", SessionID: "s"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeChat(t, w)
	if resp.Text != "I'm good" {
		t.Errorf("text = %q, want corpus recall", resp.Text)
	}
	if resp.Candidates[0].Source != datatypes.SourceDirectMatch {
		t.Errorf("source = %s", resp.Candidates[0].Source)
	}
}

func TestHandleChat_MathShortCircuit(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.post(t, "/v1/chat", datatypes.ChatRequest{Message: "what is 2 + 2"})
	resp := decodeChat(t, w)
	if resp.Text != "That works out to 4." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Candidates[0].Source != datatypes.SourceMath {
		t.Errorf("source = %s, want math", resp.Candidates[0].Source)
	}
	if env.store.Len() != 0 {
		t.Error("math answers must not grow the corpus")
	}
}

func TestHandleChat_EncyclopediaFallback(t *testing.T) {
	env := newTestEnv(t, &fakeWikipedia{summaries: map[string]string{
		"eiffel tower": "The Eiffel Tower is a lattice tower in Paris.",
	}})

	w := env.post(t, "/v1/chat", datatypes.ChatRequest{Message: "what is the eiffel tower"})
	resp := decodeChat(t, w)
	if !strings.Contains(resp.Text, "lattice tower") {
		t.Errorf("text = %q, want encyclopedia summary", resp.Text)
	}
	if resp.Candidates[0].Source != datatypes.SourceKnowledge {
		t.Errorf("source = %s, want knowledge", resp.Candidates[0].Source)
	}
	if resp.Candidates[0].Confidence != 0.75 {
		t.Errorf("confidence = %f", resp.Candidates[0].Confidence)
	}
}

func TestHandleChat_LearnedTermAnswersSecondAsk(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	store := corpus.NewConversationStore(filepath.Join(dir, "corpus.json"))
	km := corpus.NewKnowledgeMap(filepath.Join(dir, "knowledge.json"))
	defs, err := corpus.OpenDefinitionStore(corpus.InMemoryDefinitionConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = defs.Close() })

	vocab := learner.New(defs, &fakeWikipedia{summaries: map[string]string{
		"kubernetes": "Kubernetes is a container orchestration platform.",
	}}, 100, learner.WithKnowledgeMap(km))
	t.Cleanup(vocab.Close)

	router := gin.New()
	router.POST("/v1/chat", HandleChat(ChatDeps{
		Ranker:  ranker.New(store, templates.NewStore(nil), km),
		Corpus:  store,
		Learner: vocab,
		Metrics: observability.NewChatMetrics(prometheus.NewRegistry()),
	}))
	env := &testEnv{router: router, store: store, knowledge: km}

	w := env.post(t, "/v1/chat", datatypes.ChatRequest{Message: "what is kubernetes", SessionID: "s"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeChat(t, w); resp.Text != ranker.FallbackResponse {
		t.Fatalf("first ask = %q, want fallback while the term is still unknown", resp.Text)
	}

	// Learning runs off the request path; wait for the mapping to land.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := km.Get("kubernetes"); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = env.post(t, "/v1/chat", datatypes.ChatRequest{Message: "what is kubernetes", SessionID: "s"})
	resp := decodeChat(t, w)
	if resp.Text != "Kubernetes is a container orchestration platform." {
		t.Fatalf("second ask = %q, want the learned definition", resp.Text)
	}
	if resp.Candidates[0].Source != datatypes.SourceKnowledge {
		t.Errorf("source = %s, want knowledge", resp.Candidates[0].Source)
	}
	if resp.Candidates[0].Confidence != 0.75 {
		t.Errorf("confidence = %f, want 0.75", resp.Candidates[0].Confidence)
	}
}

func TestHandleChat_FallbackWhenNothingMatches(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.post(t, "/v1/chat", datatypes.ChatRequest{Message: "xqzv prkl mntw bdfg"})
	resp := decodeChat(t, w)
	if resp.Text != ranker.FallbackResponse {
		t.Errorf("text = %q, want fallback", resp.Text)
	}
}

func TestHandleChat_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", w.Code)
	}

	w = env.post(t, "/v1/chat", datatypes.ChatRequest{Message: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", w.Code)
	}
}

func TestHandleFeedback_RefinesCorpusAndKnowledge(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Append(context.Background(), "what is the capital of france", "I'm not sure", "assistant", false)

	w := env.post(t, "/v1/feedback", datatypes.FeedbackRequest{
		Message:         "what is the capital of france",
		CorrectResponse: "Paris",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	if env.store.Len() != 1 {
		t.Errorf("corpus has %d records, want 1 (refined in place)", env.store.Len())
	}
	m := env.store.NearestNeighbor(context.Background(), "what is the capital of france")
	if m == nil || m.Record.Output != "Paris" {
		t.Errorf("corpus not corrected: %+v", m)
	}
	if v, ok := env.knowledge.Get("capital of france"); !ok || v != "Paris" {
		t.Errorf("knowledge override = %q, %v", v, ok)
	}
}

func TestConversationAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.store.Append(context.Background(), "hello there", "hi", "user", false)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), rec.ID) {
		t.Fatalf("list failed: %d %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/conversations/"+rec.ID, nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/conversations/"+rec.ID, nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
