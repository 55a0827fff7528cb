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

// contractions maps common apostrophe-less contractions to canonical forms.
// Inputs have commas and apostrophes stripped before matching, so the keys
// are bare.
var contractions = map[string]string{
	"im":        "i'm",
	"youre":     "you're",
	"theyre":    "they're",
	"hes":       "he's",
	"shes":      "she's",
	"thats":     "that is",
	"cant":      "cannot",
	"dont":      "do not",
	"doesnt":    "does not",
	"wont":      "will not",
	"isnt":      "is not",
	"arent":     "are not",
	"werent":    "were not",
	"hasnt":     "has not",
	"havent":    "have not",
	"didnt":     "did not",
	"wouldnt":   "would not",
	"couldnt":   "could not",
	"shouldnt":  "should not",
	"mightnt":   "might not",
}

// slang maps chat abbreviations to their spelled-out forms.
var slang = map[string]string{
	"idk":  "i don't know",
	"idr":  "i don't remember",
	"omg":  "oh my god",
	"btw":  "by the way",
	"lol":  "laugh out loud",
	"brb":  "be right back",
	"gtg":  "got to go",
	"ttyl": "talk to you later",
	"fyi":  "for your information",
	"smh":  "shaking my head",
	"bff":  "best friends forever",
	"tbh":  "to be honest",
	"yolo": "you only live once",
	"nvm":  "never mind",
	"ty":   "thank you",
	"yw":   "you're welcome",
}

// Normalize canonicalizes an utterance before any comparison: lowercases,
// strips commas and apostrophes, collapses whitespace, and expands known
// contractions and chat slang word by word.
//
// Every comparison in the corpus and template stores assumes its inputs went
// through Normalize, so "IDK, whats that" and "i don't know what is that"
// land near each other.
func Normalize(input string) string {
	cleaned := strings.ToLower(input)
	cleaned = strings.NewReplacer(",", "", "'", "").Replace(cleaned)

	words := strings.Fields(cleaned)
	for i, w := range words {
		if full, ok := contractions[w]; ok {
			words[i] = full
			continue
		}
		if full, ok := slang[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}
