// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package similarity provides the string-distance primitives used by the
// template store, the conversation corpus, and the response ranker.
//
// # Description
//
// Everything in this package is a pure function: no I/O, no shared state,
// deterministic for a given pair of inputs. The corpus and template stores
// call these functions on every inbound utterance, so the hot paths
// (EditDistance, Ratio) use a two-row dynamic program rather than a full
// matrix.
//
// # Thread Safety
//
// All functions are safe for concurrent use.
package similarity

import (
	"errors"
	"strings"
)

// MaxComparableLength is the safety bound on inputs to EditDistance.
// Comparing two pathological inputs costs O(|a|*|b|); above this bound the
// computation is refused and callers treat the pair as "no match available".
const MaxComparableLength = 1000

// ErrLengthExceeded is returned when an input to EditDistance is longer than
// MaxComparableLength runes. It signals "no match available", not a fault.
var ErrLengthExceeded = errors.New("similarity: input exceeds comparable length")

// EditDistance computes the Levenshtein distance between a and b.
//
// # Description
//
// Classic edit distance with unit cost for insertion, deletion, and
// substitution, computed over runes with a two-row dynamic program.
//
// # Inputs
//
//   - a, b: The strings to compare. Compared as-is; callers are responsible
//     for case normalization.
//
// # Outputs
//
//   - int: The distance, >= 0. Symmetric: EditDistance(a,b) == EditDistance(b,a).
//   - error: ErrLengthExceeded if either input is longer than
//     MaxComparableLength runes. Callers must treat this as "no match",
//     never as a fatal error.
func EditDistance(a, b string) (int, error) {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) > MaxComparableLength || len(rb) > MaxComparableLength {
		return 0, ErrLengthExceeded
	}

	// Keep the shorter string on the inner axis so the rows stay small.
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra), nil
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 0; i < len(ra); i++ {
		curr[0] = i + 1
		for j := 0; j < len(rb); j++ {
			cost := 0
			if ra[i] != rb[j] {
				cost = 1
			}
			curr[j+1] = min3(prev[j+1]+1, curr[j]+1, prev[j]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)], nil
}

// Ratio returns a similarity score in [0, 1] derived from EditDistance:
// 1 - distance/max(|a|,|b|). Two empty strings are defined as identical
// (ratio 1.0). Inputs beyond the length bound score 0.
func Ratio(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}

	dist, err := EditDistance(a, b)
	if err != nil {
		return 0.0
	}

	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// TokenOverlap returns the fraction of shared whitespace tokens between a
// and b, case-folded, divided by the larger token-set size. The asymmetric
// denominator (max rather than union) keeps short utterances from scoring
// high against long ones.
func TokenOverlap(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common++
		}
	}

	maxLen := len(ta)
	if len(tb) > maxLen {
		maxLen = len(tb)
	}
	return float64(common) / float64(maxLen)
}

// WordLevel computes a word-by-word alignment score between a and b.
//
// # Description
//
// For each word in a, finds the closest word in b by edit distance. An exact
// match counts 1.0; a partial match (distance within 30% of the shorter
// word's length) counts 0.8. The sum is divided by the larger word count, so
// the score is in [0, 1] and penalizes length mismatch.
//
// This tolerates abbreviation-style edits ("how r u" vs "how are you")
// better than whole-string distance.
func WordLevel(a, b string) float64 {
	wa := strings.Fields(strings.ToLower(a))
	wb := strings.Fields(strings.ToLower(b))
	if len(wa) == 0 && len(wb) == 0 {
		return 1.0
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0.0
	}

	var matches float64
	for _, w1 := range wa {
		for _, w2 := range wb {
			if w1 == w2 {
				matches += 1.0
				break
			}
			dist, err := EditDistance(w1, w2)
			if err != nil {
				continue
			}
			shorter := len([]rune(w1))
			if l2 := len([]rune(w2)); l2 < shorter {
				shorter = l2
			}
			if float64(dist) <= float64(shorter)*0.3 {
				matches += 0.8
				break
			}
		}
	}

	total := len(wa)
	if len(wb) > total {
		total = len(wb)
	}
	return matches / float64(total)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
