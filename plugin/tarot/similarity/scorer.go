// Package similarity computes normalized text similarity between user
// questions for fuzzy cache matching.
package similarity

import (
	"strings"
)

// MatchThreshold is the minimum similarity for two questions to be treated
// as equivalent by fuzzy matching.
const MatchThreshold = 0.8

// stopWords are Spanish articles, prepositions and conjunctions dropped
// during normalization. Readings are primarily asked in Spanish.
var stopWords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "lo": {},
	"un": {}, "una": {}, "unos": {}, "unas": {},
	"a": {}, "al": {}, "ante": {}, "con": {}, "de": {}, "del": {},
	"desde": {}, "en": {}, "entre": {}, "hacia": {}, "hasta": {},
	"para": {}, "por": {}, "sin": {}, "sobre": {}, "tras": {},
	"y": {}, "e": {}, "o": {}, "u": {}, "ni": {}, "que": {},
	"pero": {}, "si": {},
}

// Normalize lowercases, trims and tokenizes a question, dropping stop words.
func Normalize(question string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(question)))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, skip := stopWords[field]; skip {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// Similarity returns a score in [0, 1] for two questions: 1 minus the
// Levenshtein distance between the normalized strings relative to the longer
// one. Symmetric and case-insensitive by construction. Two questions that
// normalize to the empty string score 1.
func Similarity(q1, q2 string) float64 {
	n1 := strings.Join(Normalize(q1), " ")
	n2 := strings.Join(Normalize(q2), " ")

	if n1 == "" && n2 == "" {
		return 1
	}

	distance := levenshtein(n1, n2)
	longest := len([]rune(n1))
	if l2 := len([]rune(n2)); l2 > longest {
		longest = l2
	}
	return 1 - float64(distance)/float64(longest)
}

// levenshtein computes the edit distance between two strings by rune, using
// a two-row dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	previous := make([]int, len(rb)+1)
	current := make([]int, len(rb)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		current[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			current[j] = min3(
				current[j-1]+1,     // insertion
				previous[j]+1,      // deletion
				previous[j-1]+cost, // substitution
			)
		}
		previous, current = current, previous
	}

	return previous[len(rb)]
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
