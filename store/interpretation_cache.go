package store

import "time"

// CardPlacement is a single drawn card within a combination.
// Position values are unique within a combination.
type CardPlacement struct {
	CardID   int32 `json:"cardId"`
	Position int32 `json:"position"`
	Reversed bool  `json:"reversed"`
}

// CachedInterpretation represents a durably cached AI interpretation.
type CachedInterpretation struct {
	ID  int32
	UID string

	// CacheKey is the deterministic hash of (tarotista scope, sorted card
	// combination, spread, question hash). Unique among live records.
	CacheKey string

	// TarotistaID is the owning scope. Nil means global/legacy scope.
	TarotistaID *int32
	// SpreadID is the spread/layout identifier. Nil means no spread.
	SpreadID *int32

	CardCombination    []CardPlacement
	QuestionHash       string
	InterpretationText string

	HitCount   int32
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// IsExpired reports whether the record is logically dead at the given instant.
func (c *CachedInterpretation) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// ContainsAnyCard reports whether the combination references any of the given card ids.
func (c *CachedInterpretation) ContainsAnyCard(cardIDs []int32) bool {
	for _, placement := range c.CardCombination {
		for _, id := range cardIDs {
			if placement.CardID == id {
				return true
			}
		}
	}
	return false
}

// FindCachedInterpretation specifies the conditions for finding cached interpretations.
type FindCachedInterpretation struct {
	ID       *int32
	CacheKey *string

	TarotistaID *int32

	// SpreadID matches records with this spread id. NoSpread matches records
	// with a NULL spread id. At most one of the two may be set.
	SpreadID *int32
	NoSpread bool

	// ExcludeExpiredAt filters out records whose expiresAt is at or before
	// the given instant.
	ExcludeExpiredAt *time.Time

	// CreatedAfter / LastUsedAfter bound the respective timestamps
	// (After inclusive, Before exclusive).
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	LastUsedAfter  *time.Time
	LastUsedBefore *time.Time

	// MaxHitCount keeps only records with hitCount <= the given value.
	MaxHitCount *int32

	// OrderByHitCount orders results by hitCount descending.
	OrderByHitCount bool

	Limit int
}

// UpdateCachedInterpretation specifies the fields to update on a cached interpretation.
type UpdateCachedInterpretation struct {
	ID        int32
	ExpiresAt *time.Time
}

// DeleteCachedInterpretation specifies the conditions for deleting cached
// interpretations. Exactly one condition group should be set.
type DeleteCachedInterpretation struct {
	// IDs deletes the given records.
	IDs []int32
	// TarotistaID deletes every record owned by the scope.
	TarotistaID *int32
	// ExpiredBefore deletes records with expiresAt <= the given instant.
	ExpiredBefore *time.Time
	// LowUsage deletes records with hitCount < MaxHits created before Before.
	LowUsage *LowUsageFilter
	// All deletes every record.
	All bool
}

// LowUsageFilter selects rarely used records for the low-usage sweep.
type LowUsageFilter struct {
	MaxHits int32
	Before  time.Time
}

// CachedInterpretationStats is the aggregate view over the cache table.
type CachedInterpretationStats struct {
	Total   int64
	Expired int64
	AvgHits float64
}
