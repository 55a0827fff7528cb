// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/htwebz/assistant/services/orchestrator/datatypes"
)

// serviceClient is a thin HTTP client for the assistant service endpoints.
type serviceClient struct {
	baseURL    string
	httpClient *http.Client
}

func newServiceClient(baseURL string) *serviceClient {
	return &serviceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Chat sends one utterance and returns the ranked response.
func (c *serviceClient) Chat(ctx context.Context, message, sessionID string) (datatypes.ChatResponse, error) {
	var resp datatypes.ChatResponse
	req := datatypes.ChatRequest{Message: message, SessionID: sessionID}
	if err := c.postJSON(ctx, "/v1/chat", req, &resp); err != nil {
		return datatypes.ChatResponse{}, err
	}
	return resp, nil
}

// Teach submits a correction for a previous exchange.
func (c *serviceClient) Teach(ctx context.Context, message, correct, sessionID string) error {
	req := datatypes.FeedbackRequest{
		Message:         message,
		CorrectResponse: correct,
		SessionID:       sessionID,
	}
	return c.postJSON(ctx, "/v1/feedback", req, nil)
}

// Health pings the service health endpoint.
func (c *serviceClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("reach service at %s: %w", c.baseURL, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("service unhealthy: status %d", httpResp.StatusCode)
	}
	return nil
}

func (c *serviceClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("reach service at %s: %w", c.baseURL, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		// The service returns {"error": "..."} on failures; surface it.
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("service error (status %d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("service error: status %d", httpResp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
