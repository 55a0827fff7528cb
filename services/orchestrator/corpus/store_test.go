// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *ConversationStore {
	t.Helper()
	return NewConversationStore(filepath.Join(t.TempDir(), "corpus.json"))
}

func TestAppend_GrowsCorpus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := s.Append(ctx, "Hello there", "hi!", "user", false)
	if rec.ID == "" {
		t.Fatal("expected a generated record ID")
	}
	if rec.Input != "hello there" {
		t.Errorf("input not normalized: got %q", rec.Input)
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestAppend_RefinementUpdatesCloseRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := s.Append(ctx, "how are you", "fine", "user", false)
	refined := s.Append(ctx, "how are yo", "doing great", "user", true)

	if refined.ID != first.ID {
		t.Errorf("refinement created a new record: %s vs %s", refined.ID, first.ID)
	}
	if refined.Output != "doing great" {
		t.Errorf("output not updated: got %q", refined.Output)
	}
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1 after refinement", got)
	}
}

func TestAppend_NonRefinementToleratesNearDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Append(ctx, "how are you", "fine", "user", false)
	s.Append(ctx, "how are yo", "great", "user", false)

	if got := s.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2 without refinement", got)
	}
}

func TestAppend_RefinementDistantInputAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Append(ctx, "how are you", "fine", "user", false)
	s.Append(ctx, "what time is it", "noon", "user", true)

	if got := s.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2 for distant refinement", got)
	}
}

func TestNearestNeighbor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Append(ctx, "what is the weather today", "sunny", "user", false)
	s.Append(ctx, "tell me a joke", "no", "user", false)

	tests := []struct {
		name      string
		input     string
		wantMatch bool
		wantOut   string
	}{
		{
			name:      "close variant within cutoff",
			input:     "what is the wether today",
			wantMatch: true,
			wantOut:   "sunny",
		},
		{
			name:      "exact match",
			input:     "tell me a joke",
			wantMatch: true,
			wantOut:   "no",
		},
		{
			name:      "dissimilar input beyond cutoff",
			input:     "xqzv prkl mntw bdfg hjkl",
			wantMatch: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.NearestNeighbor(ctx, tt.input)
			if (got != nil) != tt.wantMatch {
				t.Fatalf("NearestNeighbor(%q) match = %v, want %v", tt.input, got != nil, tt.wantMatch)
			}
			if got != nil && got.Record.Output != tt.wantOut {
				t.Errorf("NearestNeighbor(%q).Output = %q, want %q", tt.input, got.Record.Output, tt.wantOut)
			}
		})
	}
}

func TestNearestNeighbor_WordAlignmentBeatsEditDistance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Append(ctx, "mary likes john", "A classic love story.", "user", false)

	// Same words reordered: raw edit distance (8) fails the 40% cutoff,
	// but word alignment is a full match.
	got := s.NearestNeighbor(ctx, "john likes mary")
	if got == nil {
		t.Fatal("reordered utterance should match via word alignment")
	}
	if got.Record.Output != "A classic love story." {
		t.Errorf("output = %q", got.Record.Output)
	}
	if got.Confidence <= 0.6 {
		t.Errorf("confidence = %f, want > 0.6 for a full word-level match", got.Confidence)
	}
}

func TestNearestNeighbor_EmptyCorpus(t *testing.T) {
	s := newTestStore(t)
	if got := s.NearestNeighbor(context.Background(), "anything"); got != nil {
		t.Errorf("expected nil on empty corpus, got %+v", got)
	}
}

func TestRelatedByKeyTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Append(ctx, "what is the chrysler building", "a skyscraper in new york", "user", false)
	s.Append(ctx, "who built the chrysler building", "william van alen designed it", "user", false)
	s.Append(ctx, "tell me a joke", "no", "user", false)

	got := s.RelatedByKeyTerms(ctx, "what is the chrysler building", []string{"chrysler", "building"}, 5)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Record.Output != "a skyscraper in new york" {
		t.Errorf("best match output = %q, want the exact-input record first", got[0].Record.Output)
	}
	if got[0].Similarity <= got[1].Similarity {
		t.Errorf("matches not sorted: %f then %f", got[0].Similarity, got[1].Similarity)
	}
}

func TestRelatedByKeyTerms_AbsoluteDistanceGate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Append(ctx, "good morning", "hello", "user", false)

	// No shared key term, but within edit distance of the stored input.
	got := s.RelatedByKeyTerms(ctx, "good mornin", []string{"zzz"}, 5)
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1 via distance gate", len(got))
	}
}

func TestRelatedByKeyTerms_LimitCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, in := range []string{
		"the cat sat", "the cat ran", "the cat slept", "the cat ate", "the cat hid", "the cat jumped",
	} {
		s.Append(ctx, in, "ok", "user", false)
	}

	got := s.RelatedByKeyTerms(ctx, "the cat", []string{"cat"}, 5)
	if len(got) != 5 {
		t.Errorf("got %d matches, want cap of 5", len(got))
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	rec := s.Append(context.Background(), "hello", "hi", "user", false)

	if !s.Delete(rec.ID) {
		t.Fatal("Delete returned false for existing record")
	}
	if s.Delete(rec.ID) {
		t.Error("Delete returned true for missing record")
	}
	if got := s.Len(); got != 0 {
		t.Errorf("Len() = %d after delete, want 0", got)
	}
}

func TestPersistence_FlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	ctx := context.Background()

	s := NewConversationStore(path)
	s.Append(ctx, "hello there", "hi!", "user", false)
	s.Append(ctx, "goodbye", "see you", "user", false)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reloaded := NewConversationStore(path)
	if got := reloaded.Len(); got != 2 {
		t.Fatalf("reloaded Len() = %d, want 2", got)
	}
	if m := reloaded.NearestNeighbor(ctx, "hello there"); m == nil || m.Record.Output != "hi!" {
		t.Errorf("reloaded store did not recall persisted record: %+v", m)
	}
}

func TestPersistence_CorruptDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	if err := os.WriteFile(path, []byte("{not json"), 0640); err != nil {
		t.Fatal(err)
	}

	s := NewConversationStore(path)
	if got := s.Len(); got != 0 {
		t.Errorf("Len() = %d for corrupt document, want 0", got)
	}
}

func TestPersistence_FlushWithoutMutationsIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	s := NewConversationStore(path)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("clean store should not write a document")
	}
}

func TestKnowledgeMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	m := NewKnowledgeMap(path)

	m.Set("User Name", "Alex")
	if v, ok := m.Get("user name"); !ok || v != "Alex" {
		t.Errorf("Get(user name) = %q, %v", v, ok)
	}
	if v, ok := m.Get("  USER NAME  "); !ok || v != "Alex" {
		t.Errorf("case/space-insensitive Get = %q, %v", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}

	m.Set("", "ignored")
	if got := m.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1 (empty key ignored)", got)
	}

	if err := m.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	reloaded := NewKnowledgeMap(path)
	if v, ok := reloaded.Get("user name"); !ok || v != "Alex" {
		t.Errorf("reloaded Get = %q, %v", v, ok)
	}
}
