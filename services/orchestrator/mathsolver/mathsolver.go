// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mathsolver answers arithmetic questions deterministically instead
// of letting them reach the similarity pipeline, where "what is 17 * 23"
// would fuzzy-match some unrelated remembered conversation.
package mathsolver

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// triggerPattern recognizes an utterance as a math question: an optional
// question/command lead-in followed by something that looks like an
// arithmetic expression.
var triggerPattern = regexp.MustCompile(
	`(?i)^\s*(?:what\s+is|whats|calculate|compute|solve|evaluate)?\s*` +
		`[-+(\s]*\d[\d\s.,+\-*/×÷%^()!]*\??\s*$`)

// expressionPattern extracts the arithmetic body from the utterance.
var expressionPattern = regexp.MustCompile(`[-+(]?\d[\d\s.,+\-*/×÷%^()!]*`)

// factorialPattern matches a lone factorial like "5!".
var factorialPattern = regexp.MustCompile(`^\s*(\d+)\s*!\s*$`)

// IsMathQuery reports whether input looks like an arithmetic question.
//
// Digit-free inputs never trigger; "what is a monad" must go to the
// knowledge path no matter how question-shaped it is.
func IsMathQuery(input string) bool {
	if !strings.ContainsAny(input, "0123456789") {
		return false
	}
	return triggerPattern.MatchString(input)
}

// Solve evaluates the arithmetic in input and formats the answer.
//
// # Description
//
// The arithmetic body is extracted, cleaned (unicode operators mapped to
// ASCII, thousands separators dropped), and evaluated. Factorials are a
// special case the expression language does not provide. Integer results
// print without a fraction; everything else rounds to four decimal places.
//
// # Outputs
//
//   - string: A full-sentence answer, e.g. "That works out to 391.".
//   - error: Non-nil when no expression is found or evaluation fails
//     (division by zero, unbalanced parens). Callers fall through to the
//     normal response pipeline on error.
func Solve(input string) (string, error) {
	body := expressionPattern.FindString(input)
	if body == "" {
		return "", fmt.Errorf("no arithmetic expression in %q", input)
	}
	cleaned := cleanExpression(body)

	if m := factorialPattern.FindStringSubmatch(cleaned); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > 170 {
			return "", fmt.Errorf("factorial out of range: %q", cleaned)
		}
		return answer(factorial(n)), nil
	}

	program, err := expr.Compile(cleaned)
	if err != nil {
		return "", fmt.Errorf("parse expression %q: %w", cleaned, err)
	}
	out, err := expr.Run(program, nil)
	if err != nil {
		return "", fmt.Errorf("evaluate expression %q: %w", cleaned, err)
	}

	switch v := out.(type) {
	case int:
		return answer(float64(v)), nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", fmt.Errorf("expression %q has no finite value", cleaned)
		}
		return answer(v), nil
	default:
		return "", fmt.Errorf("expression %q produced %T, not a number", cleaned, out)
	}
}

// cleanExpression normalizes an extracted arithmetic body for evaluation.
func cleanExpression(body string) string {
	r := strings.NewReplacer(
		"×", "*",
		"÷", "/",
		",", "",
	)
	cleaned := strings.TrimSpace(r.Replace(body))
	// A sentence-ending period is punctuation, not a decimal point.
	return strings.TrimRight(cleaned, ". ")
}

func factorial(n int) float64 {
	result := 1.0
	for i := 2; i <= n; i++ {
		result *= float64(i)
	}
	return result
}

// answer renders a numeric result as a sentence. Whole numbers print bare;
// fractional results round to four decimals with trailing zeros trimmed.
func answer(v float64) string {
	var rendered string
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		rendered = strconv.FormatFloat(v, 'f', 0, 64)
	} else {
		rendered = strconv.FormatFloat(v, 'f', 4, 64)
		rendered = strings.TrimRight(rendered, "0")
		rendered = strings.TrimRight(rendered, ".")
	}
	return fmt.Sprintf("That works out to %s.", rendered)
}
