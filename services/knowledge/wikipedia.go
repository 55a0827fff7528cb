// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"log/slog"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("htwebz.knowledge")

const defaultWikipediaBase = "https://en.wikipedia.org/api/rest_v1"

// maxSummarySentences keeps fetched summaries short enough to read aloud in
// a chat response.
const maxSummarySentences = 3

// WikipediaClient resolves topics against the Wikipedia REST summary API.
type WikipediaClient struct {
	BaseURL    string
	HTTPClient HTTPClient
}

// NewWikipediaClient returns a client with production defaults.
func NewWikipediaClient() *WikipediaClient {
	return &WikipediaClient{
		BaseURL:    defaultWikipediaBase,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type wikipediaSummary struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Extract string `json:"extract"`
}

// Summary fetches the lead-section summary for a term or question.
//
// # Description
//
// The query is reduced to a bare topic (question prefixes stripped), looked
// up against /page/summary/{title}, and the extract is trimmed to a few
// sentences. Disambiguation pages and empty extracts count as not found;
// the caller cannot do anything useful with either.
//
// # Inputs
//
//   - ctx: Bounds the request; cancellation aborts the HTTP call.
//   - query: A topic or natural question ("what is the chrysler building").
//
// # Outputs
//
//   - string: Summary prose, at most a few sentences.
//   - error: ErrNotFound for missing/ambiguous pages, transport errors otherwise.
func (c *WikipediaClient) Summary(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "WikipediaClient.Summary")
	defer span.End()

	topic := TopicFromQuestion(query)
	if topic == "" {
		return "", ErrNotFound
	}

	title := url.PathEscape(strings.ReplaceAll(topic, " ", "_"))
	endpoint := fmt.Sprintf("%s/page/summary/%s", c.BaseURL, title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build wikipedia request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikipedia request for %q: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia returned %d for %q", resp.StatusCode, topic)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read wikipedia response: %w", err)
	}

	var summary wikipediaSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return "", fmt.Errorf("decode wikipedia response: %w", err)
	}
	if summary.Type == "disambiguation" || strings.TrimSpace(summary.Extract) == "" {
		slog.Debug("Wikipedia page unusable", "topic", topic, "type", summary.Type)
		return "", ErrNotFound
	}

	return Summarize(summary.Extract, maxSummarySentences), nil
}
