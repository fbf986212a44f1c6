package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("What does my future hold?", "What does my future hold?"))
}

func TestSimilarity_StopWordRemoval(t *testing.T) {
	// "el" is dropped during normalization, leaving identical strings.
	assert.Greater(t, Similarity("el futuro", "futuro"), 0.8)
}

func TestSimilarity_Unrelated(t *testing.T) {
	score := Similarity("encontrare trabajo pronto", "mi gato duerme mucho")
	assert.Less(t, score, 0.5)
}

func TestSimilarity_Symmetric(t *testing.T) {
	a, b := "cuando llega mi amor", "mi amor cuando llega"
	assert.Equal(t, Similarity(a, b), Similarity(b, a))
}

func TestSimilarity_CaseInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("FUTURO amor", "futuro AMOR"))
}

func TestSimilarity_BothEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	// Strings made of nothing but stop words normalize to empty.
	assert.Equal(t, 1.0, Similarity("el la de", "y o con"))
}

func TestNormalize(t *testing.T) {
	t.Run("DropsStopWords", func(t *testing.T) {
		assert.Equal(t, []string{"futuro", "amor"}, Normalize("el futuro de la amor"))
	})

	t.Run("CollapsesWhitespace", func(t *testing.T) {
		assert.Equal(t, []string{"encontrare", "trabajo"}, Normalize("  Encontrare   TRABAJO  "))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, Normalize("   "))
	})
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("abc", ""))
	assert.Equal(t, 1, levenshtein("gato", "pato"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
