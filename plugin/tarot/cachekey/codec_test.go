package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mystica-ai/mystica/store"
)

func int32Ptr(v int32) *int32 { return &v }

func TestDeriveCacheKey_Deterministic(t *testing.T) {
	combination := []store.CardPlacement{
		{CardID: 12, Position: 0, Reversed: false},
		{CardID: 3, Position: 1, Reversed: true},
		{CardID: 7, Position: 2, Reversed: false},
	}
	permutations := [][]store.CardPlacement{
		{combination[0], combination[1], combination[2]},
		{combination[0], combination[2], combination[1]},
		{combination[1], combination[0], combination[2]},
		{combination[1], combination[2], combination[0]},
		{combination[2], combination[0], combination[1]},
		{combination[2], combination[1], combination[0]},
	}

	want := DeriveCacheKey(permutations[0], int32Ptr(5), "qh")
	for _, perm := range permutations {
		assert.Equal(t, want, DeriveCacheKey(perm, int32Ptr(5), "qh"))
	}
}

func TestDeriveCacheKey_InputNotMutated(t *testing.T) {
	combination := []store.CardPlacement{
		{CardID: 2, Position: 1, Reversed: false},
		{CardID: 1, Position: 0, Reversed: false},
	}
	DeriveCacheKey(combination, nil, "qh")
	assert.Equal(t, int32(2), combination[0].CardID)
	assert.Equal(t, int32(1), combination[1].CardID)
}

func TestDeriveCacheKey_Sensitivity(t *testing.T) {
	base := []store.CardPlacement{
		{CardID: 1, Position: 0, Reversed: false},
		{CardID: 2, Position: 1, Reversed: true},
	}
	baseKey := DeriveCacheKey(base, int32Ptr(5), "qh")

	t.Run("SpreadChanges", func(t *testing.T) {
		assert.NotEqual(t, baseKey, DeriveCacheKey(base, int32Ptr(6), "qh"))
		assert.NotEqual(t, baseKey, DeriveCacheKey(base, nil, "qh"))
	})

	t.Run("QuestionHashChanges", func(t *testing.T) {
		assert.NotEqual(t, baseKey, DeriveCacheKey(base, int32Ptr(5), "other"))
	})

	t.Run("ReversedFlagChanges", func(t *testing.T) {
		flipped := []store.CardPlacement{
			{CardID: 1, Position: 0, Reversed: true},
			{CardID: 2, Position: 1, Reversed: true},
		}
		assert.NotEqual(t, baseKey, DeriveCacheKey(flipped, int32Ptr(5), "qh"))
	})

	t.Run("SwappedCardIDsChange", func(t *testing.T) {
		swapped := []store.CardPlacement{
			{CardID: 2, Position: 0, Reversed: false},
			{CardID: 1, Position: 1, Reversed: true},
		}
		assert.NotEqual(t, baseKey, DeriveCacheKey(swapped, int32Ptr(5), "qh"))
	})
}

func TestDeriveQuestionHash_Normalization(t *testing.T) {
	a := DeriveQuestionHash("Love", "Will I find love?")
	b := DeriveQuestionHash("love", "will i find love?")
	c := DeriveQuestionHash("  LOVE  ", "  WILL  I  FIND  LOVE?  ")

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestDeriveQuestionHash_DistinctInputs(t *testing.T) {
	assert.NotEqual(t,
		DeriveQuestionHash("love", "will i find love?"),
		DeriveQuestionHash("work", "will i find love?"),
	)
	assert.NotEqual(t,
		DeriveQuestionHash("love", "will i find love?"),
		DeriveQuestionHash("love", "will i find money?"),
	)
}

func TestCanonicalCombination(t *testing.T) {
	combination := []store.CardPlacement{
		{CardID: 3, Position: 2, Reversed: true},
		{CardID: 1, Position: 0, Reversed: false},
		{CardID: 2, Position: 1, Reversed: false},
	}
	assert.Equal(t, "1-0-false|2-1-false|3-2-true", CanonicalCombination(combination))
	assert.Equal(t, "", CanonicalCombination(nil))
}
