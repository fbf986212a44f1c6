package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/store"
)

func (d *DB) UpsertCacheMetricsSnapshot(ctx context.Context, upsert *store.UpsertCacheMetricsSnapshot) (*store.CacheMetricsSnapshot, error) {
	if upsert == nil {
		return nil, errors.New("upsert parameter cannot be nil")
	}

	query := `
		INSERT INTO cache_metrics (
			hour_bucket_ts, total_requests, cache_hits, cache_misses,
			hit_rate_percentage, avg_cache_response_time_ms, avg_ai_response_time_ms
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hour_bucket_ts) DO UPDATE SET
			total_requests = excluded.total_requests,
			cache_hits = excluded.cache_hits,
			cache_misses = excluded.cache_misses,
			hit_rate_percentage = excluded.hit_rate_percentage,
			avg_cache_response_time_ms = excluded.avg_cache_response_time_ms,
			avg_ai_response_time_ms = excluded.avg_ai_response_time_ms
		RETURNING id
	`

	snapshot := &store.CacheMetricsSnapshot{
		HourBucket:             upsert.HourBucket,
		TotalRequests:          upsert.TotalRequests,
		CacheHits:              upsert.CacheHits,
		CacheMisses:            upsert.CacheMisses,
		HitRatePercentage:      upsert.HitRatePercentage,
		AvgCacheResponseTimeMs: upsert.AvgCacheResponseTimeMs,
		AvgAiResponseTimeMs:    upsert.AvgAiResponseTimeMs,
	}
	err := d.db.QueryRowContext(ctx, query,
		upsert.HourBucket.Unix(), upsert.TotalRequests, upsert.CacheHits, upsert.CacheMisses,
		upsert.HitRatePercentage, upsert.AvgCacheResponseTimeMs, upsert.AvgAiResponseTimeMs,
	).Scan(&snapshot.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert cache metrics snapshot")
	}

	return snapshot, nil
}

func (d *DB) ListCacheMetricsSnapshots(ctx context.Context, find *store.FindCacheMetricsSnapshot) ([]*store.CacheMetricsSnapshot, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}
	if find.StartTime != nil {
		where = append(where, "hour_bucket_ts >= ?")
		args = append(args, find.StartTime.Unix())
	}
	if find.EndTime != nil {
		where = append(where, "hour_bucket_ts <= ?")
		args = append(args, find.EndTime.Unix())
	}

	query := fmt.Sprintf(`
		SELECT id, hour_bucket_ts, total_requests, cache_hits, cache_misses,
			hit_rate_percentage, avg_cache_response_time_ms, avg_ai_response_time_ms
		FROM cache_metrics
		WHERE %s
		ORDER BY hour_bucket_ts DESC
	`, strings.Join(where, " AND "))

	limit := find.Limit
	if limit > 0 {
		if limit > 1000 {
			limit = 1000
		}
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cache metrics snapshots")
	}
	defer rows.Close()

	var list []*store.CacheMetricsSnapshot
	for rows.Next() {
		var snapshot store.CacheMetricsSnapshot
		var bucketTs int64
		if err := rows.Scan(
			&snapshot.ID, &bucketTs, &snapshot.TotalRequests, &snapshot.CacheHits,
			&snapshot.CacheMisses, &snapshot.HitRatePercentage,
			&snapshot.AvgCacheResponseTimeMs, &snapshot.AvgAiResponseTimeMs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan cache metrics snapshot")
		}
		snapshot.HourBucket = time.Unix(bucketTs, 0)
		list = append(list, &snapshot)
	}

	return list, rows.Err()
}

func (d *DB) DeleteCacheMetricsSnapshots(ctx context.Context, delete *store.DeleteCacheMetricsSnapshot) (int64, error) {
	if delete == nil {
		return 0, errors.New("delete parameter cannot be nil")
	}
	if delete.BeforeTime == nil {
		return 0, errors.New("before_time is required for deletion")
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM cache_metrics WHERE hour_bucket_ts < ?`, delete.BeforeTime.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete cache metrics snapshots")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}
	return affected, nil
}
