// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm wraps generative model backends behind one small interface.
//
// The ranker treats a model completion as just another response candidate,
// so the interface is a single Complete call. Backend selection happens at
// startup from the environment: Ollama when OLLAMA_BASE_URL is set, OpenAI
// when OPENAI_API_KEY is set, otherwise no model backend at all and the
// assistant runs purely on its corpus and templates.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"log/slog"
)

// ErrNoBackend is returned by FromEnv when no model backend is configured.
var ErrNoBackend = errors.New("no model backend configured")

// Client generates a free-form completion for a user utterance.
type Client interface {
	// Complete returns model text for input. Implementations honor ctx
	// cancellation; the caller enforces the response deadline.
	Complete(ctx context.Context, input string) (string, error)

	// Name identifies the backend for logs and attribution.
	Name() string
}

// FromEnv selects a backend from the environment.
//
// Ollama wins when both are configured; a local model is the platform's
// preference over a metered API.
func FromEnv() (Client, error) {
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
		c, err := NewOllamaClient()
		if err != nil {
			return nil, fmt.Errorf("configure ollama backend: %w", err)
		}
		return c, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAIClient(key), nil
	}
	slog.Info("No model backend configured, responses come from corpus and templates only")
	return nil, ErrNoBackend
}
