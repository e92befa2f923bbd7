// Package vocab implements the vocabulary-frequency encoder: a deterministic
// bag-of-terms embedding whose vocabulary is built once from the first batch
// it sees and frozen afterwards.
package vocab

import (
	"sort"
	"strings"
	"unicode"
)

// Vocabulary maps a term to its frequency rank.
type Vocabulary map[string]int

// Len returns the number of terms.
func (v Vocabulary) Len() int { return len(v) }

// Rank returns the rank of term and whether it is known.
func (v Vocabulary) Rank(term string) (int, bool) {
	r, ok := v[term]
	return r, ok
}

// Clone returns an independent copy.
func (v Vocabulary) Clone() Vocabulary {
	out := make(Vocabulary, len(v))
	for k, r := range v {
		out[k] = r
	}
	return out
}

// Terms returns the terms ordered by rank.
func (v Vocabulary) Terms() []string {
	terms := make([]string, 0, len(v))
	for t := range v {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool { return v[terms[i]] < v[terms[j]] })
	return terms
}

// Tokenize lowercases text, drops everything that is not an ASCII letter,
// digit or whitespace, splits on whitespace (including the U+001C..U+001F
// separators) and keeps tokens longer than two characters.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case unicode.IsSpace(r):
			return r
		case r >= 0x1c && r <= 0x1f:
			// file, group, record and unit separators split words too
			return ' '
		}
		return -1
	}, strings.ToLower(text))
	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// termCounts counts tokens and remembers the order of first encounter.
func termCounts(tokens []string) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, tok := range tokens {
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}
	return counts, order
}

// build ranks the terms of texts by descending global frequency. Ties keep
// the order in which the terms were first encountered.
func build(texts []string, maxTerms int) Vocabulary {
	var all []string
	for _, text := range texts {
		all = append(all, Tokenize(text)...)
	}
	counts, order := termCounts(all)
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if maxTerms > 0 && len(order) > maxTerms {
		order = order[:maxTerms]
	}
	v := make(Vocabulary, len(order))
	for rank, term := range order {
		v[term] = rank
	}
	return v
}
