package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/plugin/tarot/cache"
	"github.com/mystica-ai/mystica/plugin/tarot/cachekey"
	"github.com/mystica-ai/mystica/store"
)

const systemPrompt = "Eres un tarotista experimentado. Interpreta la tirada " +
	"de cartas con empatia y profundidad, en espanol neutro, sin inventar " +
	"datos sobre la persona."

// Warming entries carry a generic question scope instead of a user question.
const (
	warmingCategory = "general"
	warmingQuestion = ""
)

// Service generates interpretations and stores them in the cache.
type Service struct {
	llm   LLM
	cache *cache.Service
}

// NewService creates a generator on top of an LLM backend and the
// interpretation cache.
func NewService(llm LLM, cacheService *cache.Service) *Service {
	return &Service{
		llm:   llm,
		cache: cacheService,
	}
}

// Generate produces an interpretation for the combination without touching
// the cache.
func (s *Service) Generate(ctx context.Context, combination []store.CardPlacement, spreadID *int32) (string, error) {
	text, err := s.llm.Complete(ctx, systemPrompt, buildPrompt(combination, spreadID))
	if err != nil {
		return "", errors.Wrap(err, "failed to generate interpretation")
	}
	return text, nil
}

// GenerateAndCache produces an interpretation and stores it under the
// combination's generic-question cache key. Used by cache warming; a
// concurrent insert of the same key is treated as success.
func (s *Service) GenerateAndCache(ctx context.Context, combination []store.CardPlacement, spreadID *int32) error {
	questionHash := cachekey.DeriveQuestionHash(warmingCategory, warmingQuestion)
	key := cachekey.DeriveCacheKey(combination, spreadID, questionHash)

	// Skip generation when a live entry already exists.
	if existing, err := s.cache.Get(ctx, key); err != nil {
		return err
	} else if existing != nil {
		return nil
	}

	text, err := s.Generate(ctx, combination, spreadID)
	if err != nil {
		return err
	}

	return s.cache.Put(ctx, &cache.PutRequest{
		CacheKey:        key,
		SpreadID:        spreadID,
		CardCombination: combination,
		QuestionHash:    questionHash,
		Text:            text,
	})
}

func buildPrompt(combination []store.CardPlacement, spreadID *int32) string {
	var sb strings.Builder
	if spreadID != nil {
		fmt.Fprintf(&sb, "Tirada %d.\n", *spreadID)
	}
	sb.WriteString("Cartas en orden:\n")
	for _, placement := range sortedByPosition(combination) {
		orientation := "derecha"
		if placement.Reversed {
			orientation = "invertida"
		}
		fmt.Fprintf(&sb, "- posicion %d: carta %d (%s)\n", placement.Position, placement.CardID, orientation)
	}
	sb.WriteString("Escribe la interpretacion completa de la tirada.")
	return sb.String()
}

func sortedByPosition(combination []store.CardPlacement) []store.CardPlacement {
	sorted := append([]store.CardPlacement(nil), combination...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Position < sorted[j-1].Position; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}
