// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package similarity

import "strings"

// stopWords are tokens that carry no retrieval signal. Queries are almost
// entirely stop words ("what is the...") so key-term extraction strips them
// before the corpus does term matching.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "am": {}, "do": {}, "does": {}, "did": {},
	"what": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "them": {},
	"me": {}, "my": {}, "your": {}, "his": {}, "her": {}, "its": {}, "more": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {}, "with": {},
	"about": {}, "and": {}, "or": {}, "but": {}, "not": {}, "no": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "will": {},
	"tell": {}, "know": {}, "please": {},
}

// anaphoricMarkers are the pronouns and deictics that signal a follow-up
// query referring back to earlier conversation ("tell me more about it").
var anaphoricMarkers = map[string]struct{}{
	"it": {}, "that": {}, "this": {}, "they": {}, "them": {},
	"he": {}, "she": {}, "those": {}, "these": {}, "its": {},
}

// KeyTerms extracts the content-bearing tokens from an utterance: case-folded
// whitespace tokens with trailing punctuation trimmed, stop words removed,
// and single-character tokens dropped. Order follows first appearance;
// duplicates are removed.
func KeyTerms(input string) []string {
	fields := strings.Fields(strings.ToLower(input))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, "?!.,;:\"()")
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// HasAnaphora reports whether the utterance contains an anaphoric marker.
// Used by the ranker to detect conversational continuity before applying
// the context boost.
func HasAnaphora(input string) bool {
	for _, f := range strings.Fields(strings.ToLower(input)) {
		tok := strings.Trim(f, "?!.,;:")
		if _, ok := anaphoricMarkers[tok]; ok {
			return true
		}
	}
	return false
}
