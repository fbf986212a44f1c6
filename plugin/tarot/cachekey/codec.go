// Package cachekey derives deterministic cache keys and question hashes for
// interpretation caching. All functions are pure: the same logical input
// always produces the same output regardless of physical ordering.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mystica-ai/mystica/store"
)

const noSpread = "no-spread"

// DeriveCacheKey builds the unique key for a (card combination, spread,
// question hash) tuple. The combination is canonicalized by position before
// hashing, so two physically different orderings of the same cards yield the
// same key.
func DeriveCacheKey(combination []store.CardPlacement, spreadID *int32, questionHash string) string {
	canonical := CanonicalCombination(combination)

	spread := noSpread
	if spreadID != nil {
		spread = strconv.FormatInt(int64(*spreadID), 10)
	}

	payload := spread + ":" + canonical + ":" + questionHash
	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])
}

// DeriveQuestionHash hashes a normalized (category, question) pair. Questions
// differing only in case or whitespace hash identically.
func DeriveQuestionHash(category, questionText string) string {
	payload := normalizeText(category) + ":" + normalizeText(questionText)
	digest := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:])
}

// CanonicalCombination returns the canonical string form of a combination:
// placements sorted ascending by position, each rendered as
// "cardId-position-reversed", joined by "|". Used both for key derivation and
// for card-level fuzzy matching.
func CanonicalCombination(combination []store.CardPlacement) string {
	sorted := append([]store.CardPlacement(nil), combination...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	parts := make([]string, 0, len(sorted))
	for _, placement := range sorted {
		parts = append(parts, fmt.Sprintf("%d-%d-%t", placement.CardID, placement.Position, placement.Reversed))
	}
	return strings.Join(parts, "|")
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
