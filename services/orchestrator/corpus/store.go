// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package corpus owns the persisted conversation knowledge: the growing
// corpus of conversation records, the flat knowledge mapping, and the
// learned term definitions.
//
// # Description
//
// The conversation corpus and the knowledge mapping are whole-document JSON
// files read wholesale at startup. Mutations mark the store dirty; a flush
// loop rewrites the document on an interval and on shutdown, so a burst of
// traffic costs one write instead of one write per interaction. Term
// definitions live in BadgerDB, which gives point lookups durability without
// document rewrites.
//
// A corrupt or missing backing document is logged and treated as empty; the
// assistant must stay usable with zero history.
//
// # Thread Safety
//
// All stores are safe for concurrent use. Reads take a read lock; Append and
// flush serialize through the write lock, so a reader never observes a
// half-written corpus.
package corpus

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/htwebz/assistant/services/orchestrator/datatypes"
	"github.com/htwebz/assistant/services/orchestrator/similarity"
)

var tracer = otel.Tracer("htwebz.orchestrator.corpus")

const (
	// dedupeDistance is the edit-distance bound under which a refinement
	// updates an existing record instead of appending.
	dedupeDistance = 3

	// nearestCutoffFraction is the recall gate for NearestNeighbor's edit
	// distance stage: the best record is returned only when its distance
	// is below 40% of the longer input. Trades precision for coverage on a
	// small corpus.
	nearestCutoffFraction = 0.4

	// nearestWordFloor is the word-level gate for NearestNeighbor's first
	// stage. Word alignment ignores order and length mismatch, so it
	// recalls records raw edit distance misses.
	nearestWordFloor = 0.6

	// relatedAbsoluteDistance admits a record into RelatedByKeyTerms purely
	// on closeness, even when no key term overlaps.
	relatedAbsoluteDistance = 10

	// relatedOverlapWeight / relatedRatioWeight blend token overlap and
	// whole-string similarity for historical ranking.
	relatedOverlapWeight = 0.7
	relatedRatioWeight   = 0.3
)

// NearestMatch is the result of a NearestNeighbor lookup.
type NearestMatch struct {
	Record     datatypes.ConversationRecord
	Confidence float64
}

// RelatedMatch is one entry of a RelatedByKeyTerms result, carrying the
// blended similarity used for ranking.
type RelatedMatch struct {
	Record     datatypes.ConversationRecord
	Similarity float64
}

// ConversationStore holds the corpus in memory with document persistence.
type ConversationStore struct {
	mu      sync.RWMutex
	records []datatypes.ConversationRecord

	persister *documentPersister[[]datatypes.ConversationRecord]
}

// NewConversationStore loads the corpus document at path. A missing or
// corrupt document logs loudly and starts empty, never a fatal error.
//
// Call Run to start the background flush loop and Flush on shutdown.
func NewConversationStore(path string) *ConversationStore {
	s := &ConversationStore{}
	s.persister = newDocumentPersister(path, func() []datatypes.ConversationRecord {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out := make([]datatypes.ConversationRecord, len(s.records))
		copy(out, s.records)
		return out
	})

	loaded, ok := s.persister.load()
	if !ok {
		return s
	}

	kept := loaded[:0]
	for i := range loaded {
		if err := loaded[i].Validate(); err != nil {
			slog.Warn("Dropping malformed conversation record at load", "error", err)
			continue
		}
		if loaded[i].ID == "" {
			loaded[i].ID = uuid.NewString()
		}
		loaded[i].Input = similarity.Normalize(loaded[i].Input)
		kept = append(kept, loaded[i])
	}
	s.records = kept
	slog.Info("Loaded conversation corpus", "path", path, "records", len(kept))
	return s
}

// Run starts the batched flush loop; it returns when ctx is canceled, after
// a final flush. Safe to skip in tests that call Flush directly.
func (s *ConversationStore) Run(ctx context.Context, interval time.Duration) {
	s.persister.run(ctx, interval)
}

// Flush writes the corpus document now if there are unflushed mutations.
func (s *ConversationStore) Flush() error {
	return s.persister.flush()
}

// Len returns the number of records in the corpus.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Append adds an interaction to the corpus.
//
// # Description
//
// In refinement mode, an existing record whose input is within a small edit
// distance of the new input is updated in place (output, timestamp,
// attribution) instead of growing the corpus. Outside refinement mode a
// near-duplicate is tolerated and appended as-is; deduplication only on
// explicit refinement is the one coherent policy across the store's callers.
//
// # Inputs
//
//   - input: The utterance. Normalized here; callers may pass raw text.
//   - output: The accepted response text.
//   - attribution: The actor recording the interaction (audit only).
//   - refinement: True for user corrections; enables in-place update.
//
// # Outputs
//
//   - datatypes.ConversationRecord: The stored (new or updated) record.
func (s *ConversationStore) Append(ctx context.Context, input, output, attribution string, refinement bool) datatypes.ConversationRecord {
	_, span := tracer.Start(ctx, "ConversationStore.Append")
	defer span.End()

	normalized := similarity.Normalize(input)
	now := time.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	if refinement {
		for i := range s.records {
			dist, err := similarity.EditDistance(normalized, s.records[i].Input)
			if err != nil {
				continue
			}
			if dist < dedupeDistance {
				s.records[i].Output = output
				s.records[i].Timestamp = now
				s.records[i].Attribution = attribution
				s.persister.markDirty()
				slog.Debug("Refined existing conversation record",
					"id", s.records[i].ID, "distance", dist)
				return s.records[i]
			}
		}
	}

	rec := datatypes.ConversationRecord{
		ID:          uuid.NewString(),
		Input:       normalized,
		Output:      output,
		Timestamp:   now,
		Attribution: attribution,
	}
	s.records = append(s.records, rec)
	s.persister.markDirty()
	return rec
}

// NearestNeighbor scans the corpus for the record closest to inputText.
//
// # Description
//
// Two-stage linear scan. Word-level alignment runs first: the record with
// the best alignment score above 0.6 wins, which recalls reordered or
// length-mismatched utterances that share their words. Records without a
// word-level hit fall through to minimum edit distance, returned only when
// the distance is below 40% of the longer of the two inputs; otherwise nil.
// This is the system's primary recall gate. Overlong inputs (length bound
// exceeded) simply produce no match.
//
// The scan is O(n) in corpus size. Acceptable for corpora up to a few
// thousand records; an inverted index is the upgrade path beyond that.
func (s *ConversationStore) NearestNeighbor(ctx context.Context, inputText string) *NearestMatch {
	_, span := tracer.Start(ctx, "ConversationStore.NearestNeighbor")
	defer span.End()

	normalized := similarity.Normalize(inputText)

	s.mu.RLock()
	defer s.mu.RUnlock()

	bestWord := 0.0
	bestWordIdx := -1
	bestDist := -1
	bestIdx := -1
	for i := range s.records {
		if score := similarity.WordLevel(normalized, s.records[i].Input); score > nearestWordFloor {
			if score > bestWord {
				bestWord = score
				bestWordIdx = i
			}
			continue
		}

		dist, err := similarity.EditDistance(normalized, s.records[i].Input)
		if err != nil {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}

	if bestWordIdx >= 0 {
		return &NearestMatch{
			Record:     s.records[bestWordIdx],
			Confidence: bestWord,
		}
	}
	if bestIdx < 0 {
		return nil
	}

	maxLen := len([]rune(normalized))
	if l := len([]rune(s.records[bestIdx].Input)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 || float64(bestDist) >= float64(maxLen)*nearestCutoffFraction {
		return nil
	}

	return &NearestMatch{
		Record:     s.records[bestIdx],
		Confidence: similarity.Ratio(normalized, s.records[bestIdx].Input),
	}
}

// RelatedByKeyTerms returns up to limit records related to inputText.
//
// # Description
//
// A record qualifies when its input or output contains any key term, or when
// its input is within a small absolute edit distance of inputText. Qualified
// records are ranked by a blended score: 0.7 × token overlap + 0.3 ×
// whole-string similarity ratio. Ties keep corpus (insertion) order, so
// ranking is deterministic.
func (s *ConversationStore) RelatedByKeyTerms(ctx context.Context, inputText string, keyTerms []string, limit int) []RelatedMatch {
	_, span := tracer.Start(ctx, "ConversationStore.RelatedByKeyTerms")
	defer span.End()

	if limit <= 0 {
		limit = 5
	}
	normalized := similarity.Normalize(inputText)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]RelatedMatch, 0, limit)
	for i := range s.records {
		rec := s.records[i]
		qualified := false

		haystack := strings.ToLower(rec.Input + " " + rec.Output)
		for _, term := range keyTerms {
			if strings.Contains(haystack, term) {
				qualified = true
				break
			}
		}

		if !qualified {
			dist, err := similarity.EditDistance(normalized, rec.Input)
			if err == nil && dist < relatedAbsoluteDistance {
				qualified = true
			}
		}
		if !qualified {
			continue
		}

		score := relatedOverlapWeight*similarity.TokenOverlap(normalized, rec.Input) +
			relatedRatioWeight*similarity.Ratio(normalized, rec.Input)
		matches = append(matches, RelatedMatch{Record: rec, Similarity: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Snapshot returns a copy of the corpus for administrative listing.
func (s *ConversationStore) Snapshot() []datatypes.ConversationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]datatypes.ConversationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Delete removes a record by ID. Explicit administrative operation; records
// are never deleted automatically.
func (s *ConversationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.persister.markDirty()
			return true
		}
	}
	return false
}
