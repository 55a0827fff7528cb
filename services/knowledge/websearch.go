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
)

const defaultBingBase = "https://api.bing.microsoft.com/v7.0"

// maxSearchResults caps how many snippets a search answer carries.
const maxSearchResults = 3

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearchClient queries the Bing Web Search API.
//
// An empty APIKey disables the client; Search then returns ErrNotFound so
// callers degrade the same way as for a query with no hits.
type WebSearchClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient HTTPClient
}

// NewWebSearchClient returns a client with production defaults.
func NewWebSearchClient(apiKey string) *WebSearchClient {
	return &WebSearchClient{
		BaseURL:    defaultBingBase,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Enabled reports whether the client has credentials to search with.
func (c *WebSearchClient) Enabled() bool {
	return c.APIKey != ""
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search runs a web query and returns the top snippets.
func (c *WebSearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "WebSearchClient.Search")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" || !c.Enabled() {
		return nil, ErrNotFound
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&count=%d",
		c.BaseURL, url.QueryEscape(query), maxSearchResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search for %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned %d for %q", resp.StatusCode, query)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var decoded bingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(decoded.WebPages.Value) == 0 {
		return nil, ErrNotFound
	}

	results := make([]SearchResult, 0, maxSearchResults)
	for _, v := range decoded.WebPages.Value {
		results = append(results, SearchResult{Title: v.Name, URL: v.URL, Snippet: v.Snippet})
		if len(results) == maxSearchResults {
			break
		}
	}
	return results, nil
}

// FormatResults renders search hits as a bulleted answer.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", r.Title, r.Snippet, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}
