package store

import "time"

// CacheMetricsSnapshot represents an hourly aggregated cache metrics bucket.
type CacheMetricsSnapshot struct {
	ID         int64
	HourBucket time.Time

	TotalRequests     int64
	CacheHits         int64
	CacheMisses       int64
	HitRatePercentage float64

	AvgCacheResponseTimeMs float64
	AvgAiResponseTimeMs    float64
}

// UpsertCacheMetricsSnapshot specifies the data for upserting a metrics snapshot.
// Buckets are keyed by hour; a second upsert for the same hour replaces the row.
type UpsertCacheMetricsSnapshot struct {
	HourBucket time.Time

	TotalRequests     int64
	CacheHits         int64
	CacheMisses       int64
	HitRatePercentage float64

	AvgCacheResponseTimeMs float64
	AvgAiResponseTimeMs    float64
}

// FindCacheMetricsSnapshot specifies the conditions for finding metrics snapshots.
type FindCacheMetricsSnapshot struct {
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// DeleteCacheMetricsSnapshot specifies the conditions for deleting metrics snapshots.
type DeleteCacheMetricsSnapshot struct {
	BeforeTime *time.Time
}
