// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledge fetches external facts the corpus does not have yet:
// encyclopedia summaries for definition learning and web search snippets for
// explicit search requests.
//
// All lookups are best-effort. A failed lookup degrades the response, it
// never fails a request, so clients treat every error here as "no answer".
package knowledge

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when the external source has no content for the
// query. Transport failures return their own error; callers rarely care
// about the difference but logs do.
var ErrNotFound = errors.New("no external knowledge found")

// DefaultTimeout bounds a single external lookup.
const DefaultTimeout = 10 * time.Second

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Lookup is the read interface handlers and the learner consume.
type Lookup interface {
	// Summary returns a short prose summary for a term or question.
	Summary(ctx context.Context, query string) (string, error)
}

// questionPrefixes are leading phrases stripped before a topic lookup, so
// "what is the chrysler building" resolves the article for "chrysler
// building".
var questionPrefixes = []string{
	"what is a ",
	"what is an ",
	"what is the ",
	"what is ",
	"what are ",
	"whats ",
	"who is the ",
	"who is ",
	"who was ",
	"who are ",
	"where is the ",
	"where is ",
	"tell me about ",
	"define ",
	"definition of ",
}

// TopicFromQuestion strips question scaffolding and trailing punctuation
// from a query, leaving the lookup topic. Returns "" when nothing remains.
func TopicFromQuestion(query string) string {
	topic := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(topic, prefix) {
			topic = topic[len(prefix):]
			break
		}
		if topic == strings.TrimSpace(prefix) {
			return ""
		}
	}
	topic = strings.TrimRight(topic, "?!. ")
	return strings.TrimSpace(topic)
}

// Summarize reduces extract text to at most maxSentences sentences, joined
// back into one paragraph. Short extracts pass through untouched.
func Summarize(text string, maxSentences int) string {
	text = strings.TrimSpace(text)
	if maxSentences <= 0 {
		return text
	}

	var sentences []string
	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Skip decimals and dotted abbreviations glued to the next word.
		if i+1 < len(text) && text[i+1] != ' ' {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
		if len(sentences) == maxSentences {
			break
		}
	}
	if len(sentences) == 0 {
		return text
	}
	return strings.Join(sentences, " ")
}
