// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared persisted and wire types of the
// assistant: conversation records, learned definitions, templates, and the
// chat request/response shapes.
package datatypes

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Candidate Sources
// =============================================================================

// CandidateSource identifies which strategy produced a response candidate.
type CandidateSource string

const (
	// SourceDirectMatch is a corpus nearest-neighbor recall.
	SourceDirectMatch CandidateSource = "direct_match"
	// SourceTemplate is a near-verbatim template catalogue hit.
	SourceTemplate CandidateSource = "template"
	// SourceHistorical is a key-term similarity match over the corpus.
	SourceHistorical CandidateSource = "historical"
	// SourceAIModel is a generative model completion.
	SourceAIModel CandidateSource = "ai_model"
	// SourceContextual marks a candidate boosted by conversational
	// continuity with recent turns.
	SourceContextual CandidateSource = "contextual_match"
	// SourceMath is a deterministic arithmetic answer.
	SourceMath CandidateSource = "math"
	// SourceWebSearch is a formatted web search answer.
	SourceWebSearch CandidateSource = "web_search"
	// SourceKnowledge is an external encyclopedia summary.
	SourceKnowledge CandidateSource = "knowledge"
	// SourceNone marks the static fallback.
	SourceNone CandidateSource = "none"
)

// =============================================================================
// Persisted Records
// =============================================================================

// ConversationRecord is one remembered interaction. Input is stored
// case-normalized; the corpus compares normalized forms only.
type ConversationRecord struct {
	ID          string `json:"id"`
	Input       string `json:"input"`
	Output      string `json:"output"`
	Timestamp   string `json:"timestamp"`   // RFC 3339
	Attribution string `json:"attribution"` // audit, not security
}

// Validate checks structural invariants. ID and Attribution may be empty
// (legacy documents predate both fields).
func (r *ConversationRecord) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return fmt.Errorf("conversation record has empty input")
	}
	if strings.TrimSpace(r.Output) == "" {
		return fmt.Errorf("conversation record has empty output")
	}
	if r.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, r.Timestamp); err != nil {
			return fmt.Errorf("conversation record timestamp: %w", err)
		}
	}
	return nil
}

// DefinitionRecord is one learned term. Terms are stored lower-cased; at
// most one definition exists per term.
type DefinitionRecord struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	LearnedAt  string `json:"learned_at"` // RFC 3339
}

// Validate checks structural invariants.
func (r *DefinitionRecord) Validate() error {
	if strings.TrimSpace(r.Term) == "" {
		return fmt.Errorf("definition record has empty term")
	}
	if strings.TrimSpace(r.Definition) == "" {
		return fmt.Errorf("definition record for %q has empty definition", r.Term)
	}
	return nil
}

// Template is one catalogue entry: an input pattern and its response text,
// which may carry {key} placeholders substituted from the knowledge mapping
// at response time. Templates are immutable once loaded.
type Template struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// Validate checks structural invariants.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Input) == "" {
		return fmt.Errorf("template has empty input pattern")
	}
	if strings.TrimSpace(t.Output) == "" {
		return fmt.Errorf("template %q has empty output", t.Input)
	}
	return nil
}

// =============================================================================
// Ephemeral Types
// =============================================================================

// RankedCandidate is one scored response proposal. Confidence is a
// heuristic in [0,1], not a calibrated probability.
type RankedCandidate struct {
	Response   string          `json:"response"`
	Confidence float64         `json:"confidence"`
	Source     CandidateSource `json:"source"`
}

// Turn is one question/answer pair of session history.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
