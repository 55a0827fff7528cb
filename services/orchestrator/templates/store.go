// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package templates matches utterances against a fixed catalogue of
// input/output templates.
//
// # Description
//
// The catalogue is loaded once from YAML and held as an immutable snapshot;
// a file watcher can swap in a new snapshot atomically (see Watch). Matching
// is by Levenshtein distance with a similarity eligibility gate: a template
// is a candidate when its similarity clears the threshold, and among
// candidates the one with the smallest raw distance wins, catalogue order
// breaking ties.
//
// # Thread Safety
//
// Store is safe for concurrent use. FindBest reads an atomic snapshot, so
// matching never observes a half-reloaded catalogue.
package templates

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/htwebz/assistant/services/orchestrator/datatypes"
	"github.com/htwebz/assistant/services/orchestrator/similarity"
)

// DefaultThreshold is the similarity eligibility gate for FindBest.
const DefaultThreshold = 0.7

// VerbatimDistance is the caller-side convention for "confident enough to
// use the template output verbatim": a raw edit distance under 3.
const VerbatimDistance = 3

// Match is the result of a catalogue lookup.
type Match struct {
	// Template is the winning template. Meaningless when Found is false.
	Template datatypes.Template

	// Distance is the raw edit distance to the winning template.
	Distance int

	// Similarity is 1 - Distance/maxLen for the winning template.
	Similarity float64

	// Found is false when no template cleared the threshold.
	Found bool
}

// Verbatim reports whether the match is close enough to emit the template
// output without placeholder-driven modification being considered "fuzzy".
func (m Match) Verbatim() bool {
	return m.Found && m.Distance < VerbatimDistance
}

// KnowledgeLookup resolves {key} placeholders at render time. The corpus
// package's KnowledgeMap satisfies this.
type KnowledgeLookup interface {
	Get(key string) (string, bool)
}

// Store holds the template catalogue.
type Store struct {
	snapshot atomic.Pointer[[]datatypes.Template]
}

// NewStore builds a Store from an already-loaded catalogue. Entries failing
// validation are dropped with a warning rather than failing the load; the
// system stays usable with a partial (or empty) catalogue.
func NewStore(catalogue []datatypes.Template) *Store {
	kept := make([]datatypes.Template, 0, len(catalogue))
	for i := range catalogue {
		if err := catalogue[i].Validate(); err != nil {
			slog.Warn("Dropping invalid template", "index", i, "error", err)
			continue
		}
		t := catalogue[i]
		t.Input = strings.ToLower(t.Input)
		kept = append(kept, t)
	}
	s := &Store{}
	s.snapshot.Store(&kept)
	return s
}

// Len returns the number of loaded templates.
func (s *Store) Len() int {
	return len(*s.snapshot.Load())
}

// replace swaps the catalogue snapshot. Used by the watcher on reload.
func (s *Store) replace(catalogue []datatypes.Template) {
	kept := make([]datatypes.Template, 0, len(catalogue))
	for i := range catalogue {
		if err := catalogue[i].Validate(); err != nil {
			slog.Warn("Dropping invalid template on reload", "index", i, "error", err)
			continue
		}
		t := catalogue[i]
		t.Input = strings.ToLower(t.Input)
		kept = append(kept, t)
	}
	s.snapshot.Store(&kept)
	slog.Info("Template catalogue replaced", "count", len(kept))
}

// FindBest returns the best template match for inputText.
//
// # Description
//
// Lowercases the input, computes the edit distance to every template, and
// considers templates whose similarity (1 - distance/maxLen) exceeds
// threshold. Among eligible templates the smallest raw distance wins; ties
// on distance go to the earlier catalogue entry. Returns Found=false when
// nothing clears the threshold.
//
// Templates longer than the similarity engine's length bound are skipped,
// not fatal: an overlong pair is simply "no match available".
//
// # Inputs
//
//   - inputText: The utterance to match. Normalized to lowercase here;
//     any richer normalization is the caller's concern.
//   - threshold: Similarity eligibility gate in [0, 1). Pass
//     DefaultThreshold for the standard 0.7 gate.
func (s *Store) FindBest(inputText string, threshold float64) Match {
	input := strings.ToLower(inputText)
	catalogue := *s.snapshot.Load()

	best := Match{}
	bestDistance := -1

	for _, tpl := range catalogue {
		dist, err := similarity.EditDistance(input, tpl.Input)
		if err != nil {
			continue
		}

		maxLen := len([]rune(input))
		if l := len([]rune(tpl.Input)); l > maxLen {
			maxLen = l
		}
		sim := 1.0
		if maxLen > 0 {
			sim = 1.0 - float64(dist)/float64(maxLen)
		}

		if sim > threshold && (bestDistance < 0 || dist < bestDistance) {
			bestDistance = dist
			best = Match{Template: tpl, Distance: dist, Similarity: sim, Found: true}
		}
	}

	return best
}

// Render substitutes {key} placeholders in a template output from the
// knowledge mapping. Unresolved placeholders are left verbatim; Render
// never fails.
func Render(output string, knowledge KnowledgeLookup) string {
	if knowledge == nil || !strings.Contains(output, "{") {
		return output
	}

	var b strings.Builder
	for {
		open := strings.Index(output, "{")
		if open < 0 {
			b.WriteString(output)
			break
		}
		close := strings.Index(output[open:], "}")
		if close < 0 {
			b.WriteString(output)
			break
		}
		close += open

		b.WriteString(output[:open])
		key := output[open+1 : close]
		if val, ok := knowledge.Get(key); ok {
			b.WriteString(val)
		} else {
			b.WriteString(output[open : close+1])
		}
		output = output[close+1:]
	}
	return b.String()
}
