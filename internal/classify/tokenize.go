// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package classify

import (
	"strings"
	"unicode"
)

// stopwords are dropped before vectorization. Deliberately small: the
// centroids are built from the same tokenizer, so both sides agree on
// what survives.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "you": true, "your": true,
}

// Tokenize lowercases text, splits on any non-letter non-digit rune, and
// drops stopwords and single-rune tokens. Deterministic: the same text
// always yields the same token sequence.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)

	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if len([]rune(tok)) < 2 || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
