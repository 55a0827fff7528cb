// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Record Validation Tests
// =============================================================================

func TestConversationRecord_Validate_Success(t *testing.T) {
	rec := &ConversationRecord{
		ID:          "3d1f8f0a-9c1e-4e60-8f3e-111111111111",
		Input:       "hello",
		Output:      "hi there",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Attribution: "user",
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("expected valid record, got error: %v", err)
	}
}

func TestConversationRecord_Validate_EmptyInput(t *testing.T) {
	rec := &ConversationRecord{Input: "   ", Output: "hi"}
	if err := rec.Validate(); err == nil {
		t.Error("expected error for empty input, got nil")
	}
}

func TestConversationRecord_Validate_EmptyOutput(t *testing.T) {
	rec := &ConversationRecord{Input: "hello", Output: ""}
	if err := rec.Validate(); err == nil {
		t.Error("expected error for empty output, got nil")
	}
}

func TestConversationRecord_Validate_BadTimestamp(t *testing.T) {
	rec := &ConversationRecord{Input: "hello", Output: "hi", Timestamp: "yesterday"}
	if err := rec.Validate(); err == nil {
		t.Error("expected error for malformed timestamp, got nil")
	}
}

func TestDefinitionRecord_Validate(t *testing.T) {
	ok := &DefinitionRecord{Term: "badger", Definition: "a burrowing mammal"}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid definition, got error: %v", err)
	}

	missing := &DefinitionRecord{Term: "badger"}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for empty definition, got nil")
	}
}

func TestTemplate_Validate(t *testing.T) {
	ok := &Template{Input: "hello", Output: "hi {name}"}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid template, got error: %v", err)
	}

	empty := &Template{Input: "", Output: "hi"}
	if err := empty.Validate(); err == nil {
		t.Error("expected error for empty pattern, got nil")
	}
}

// =============================================================================
// Request Validation Tests
// =============================================================================

func TestChatRequest_Validate_Success(t *testing.T) {
	req := &ChatRequest{Message: "hello", SessionID: "sess_1"}
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestChatRequest_Validate_MissingMessage(t *testing.T) {
	req := &ChatRequest{SessionID: "sess_1"}
	if err := req.Validate(); err == nil {
		t.Error("expected error for missing message, got nil")
	}
}

func TestChatRequest_Validate_OversizedMessage(t *testing.T) {
	req := &ChatRequest{Message: strings.Repeat("a", MaxMessageBytes+1)}
	if err := req.Validate(); err == nil {
		t.Error("expected error for oversized message, got nil")
	}
}

func TestFeedbackRequest_Validate(t *testing.T) {
	ok := &FeedbackRequest{Message: "what is go", CorrectResponse: "a language"}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}

	missing := &FeedbackRequest{Message: "what is go"}
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing correction, got nil")
	}
}
