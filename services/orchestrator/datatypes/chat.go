// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Request and response types for the chat and feedback endpoints.

package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageBytes is the maximum size of a single utterance.
	// Checked in bytes, not runes, to bound memory on hostile payloads.
	MaxMessageBytes = 32 * 1024 // 32KB

	// MaxSessionIDLength bounds the caller-supplied session identifier.
	MaxSessionIDLength = 128
)

// chatValidate is the shared validator for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageBytes on string fields tagged
// `maxbytes`. Byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}

// =============================================================================
// Chat
// =============================================================================

// ChatRequest is the body of POST /v1/chat.
//
// SessionID scopes conversation history (repeat detection, context boost);
// callers without session tracking can omit it and share the default session.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,maxbytes"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

// Validate checks the request against its constraints.
func (r *ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid chat request: %w", err)
	}
	return nil
}

// ChatResponse is the body returned by POST /v1/chat. Text is the top
// candidate's response; Candidates carries the full ranked list (at most 3)
// for callers that want to show alternatives.
type ChatResponse struct {
	Text       string            `json:"text"`
	Candidates []RankedCandidate `json:"candidates"`
}

// =============================================================================
// Feedback
// =============================================================================

// FeedbackRequest is the body of POST /v1/feedback: an explicit correction
// of a previously delivered response. The corrected pair is written to the
// knowledge mapping and refined into the conversation corpus.
type FeedbackRequest struct {
	Message         string `json:"message" validate:"required,maxbytes"`
	CorrectResponse string `json:"correct_response" validate:"required,maxbytes"`
	SessionID       string `json:"session_id" validate:"omitempty,max=128"`
}

// Validate checks the request against its constraints.
func (r *FeedbackRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid feedback request: %w", err)
	}
	return nil
}
