package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors surfaced by drivers. Callers detect them with errors.Is.
var (
	// ErrConflict indicates a unique-key violation on insert. Put treats it
	// as a benign race and falls back to a read.
	ErrConflict = errors.New("record already exists")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// CachedInterpretation model related methods.
	CreateCachedInterpretation(ctx context.Context, create *CachedInterpretation) (*CachedInterpretation, error)
	GetCachedInterpretation(ctx context.Context, find *FindCachedInterpretation) (*CachedInterpretation, error)
	ListCachedInterpretations(ctx context.Context, find *FindCachedInterpretation) ([]*CachedInterpretation, error)
	CountCachedInterpretations(ctx context.Context, find *FindCachedInterpretation) (int64, error)

	// IncrementCachedInterpretationHit atomically sets hitCount += 1 and
	// lastUsedAt = now for the given record.
	IncrementCachedInterpretationHit(ctx context.Context, id int32, now time.Time) error

	UpdateCachedInterpretation(ctx context.Context, update *UpdateCachedInterpretation) error
	DeleteCachedInterpretations(ctx context.Context, delete *DeleteCachedInterpretation) (int64, error)
	GetCachedInterpretationStats(ctx context.Context, now time.Time) (*CachedInterpretationStats, error)

	// CacheMetricsSnapshot model related methods.
	UpsertCacheMetricsSnapshot(ctx context.Context, upsert *UpsertCacheMetricsSnapshot) (*CacheMetricsSnapshot, error)
	ListCacheMetricsSnapshots(ctx context.Context, find *FindCacheMetricsSnapshot) ([]*CacheMetricsSnapshot, error)
	DeleteCacheMetricsSnapshots(ctx context.Context, delete *DeleteCacheMetricsSnapshot) (int64, error)
}
