package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mystica-ai/mystica/store"
)

func (d *DB) CreateCachedInterpretation(ctx context.Context, create *store.CachedInterpretation) (*store.CachedInterpretation, error) {
	if create == nil {
		return nil, errors.New("create parameter cannot be nil")
	}

	combination, err := json.Marshal(create.CardCombination)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal card combination")
	}

	query := `
		INSERT INTO interpretation_cache (
			uid, cache_key, tarotista_id, spread_id, card_combination,
			question_hash, interpretation_text, hit_count, created_at, last_used_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = d.db.QueryRowContext(ctx, query,
		create.UID, create.CacheKey, create.TarotistaID, create.SpreadID, combination,
		create.QuestionHash, create.InterpretationText, create.HitCount,
		create.CreatedAt, create.LastUsedAt, create.ExpiresAt,
	).Scan(&create.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, store.ErrConflict
		}
		return nil, errors.Wrap(err, "failed to insert cached interpretation")
	}

	return create, nil
}

func (d *DB) GetCachedInterpretation(ctx context.Context, find *store.FindCachedInterpretation) (*store.CachedInterpretation, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	list, err := d.ListCachedInterpretations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) ListCachedInterpretations(ctx context.Context, find *store.FindCachedInterpretation) ([]*store.CachedInterpretation, error) {
	if find == nil {
		return nil, errors.New("find parameter cannot be nil")
	}

	where, args := buildFindConditions(find)
	query := fmt.Sprintf(`
		SELECT id, uid, cache_key, tarotista_id, spread_id, card_combination,
			question_hash, interpretation_text, hit_count, created_at, last_used_at, expires_at
		FROM interpretation_cache
		WHERE %s
	`, strings.Join(where, " AND "))

	if find.OrderByHitCount {
		query += " ORDER BY hit_count DESC, id ASC"
	} else {
		query += " ORDER BY id ASC"
	}

	limit := find.Limit
	if limit > 0 {
		if limit > 1000 {
			limit = 1000
		}
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cached interpretations")
	}
	defer rows.Close()

	var list []*store.CachedInterpretation
	for rows.Next() {
		var record store.CachedInterpretation
		var combination []byte
		if err := rows.Scan(
			&record.ID, &record.UID, &record.CacheKey, &record.TarotistaID, &record.SpreadID,
			&combination, &record.QuestionHash, &record.InterpretationText,
			&record.HitCount, &record.CreatedAt, &record.LastUsedAt, &record.ExpiresAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan cached interpretation")
		}
		if err := json.Unmarshal(combination, &record.CardCombination); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal card combination")
		}
		list = append(list, &record)
	}

	return list, rows.Err()
}

func (d *DB) CountCachedInterpretations(ctx context.Context, find *store.FindCachedInterpretation) (int64, error) {
	if find == nil {
		return 0, errors.New("find parameter cannot be nil")
	}

	where, args := buildFindConditions(find)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM interpretation_cache WHERE %s`, strings.Join(where, " AND "))

	var count int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count cached interpretations")
	}
	return count, nil
}

func (d *DB) IncrementCachedInterpretationHit(ctx context.Context, id int32, now time.Time) error {
	query := `UPDATE interpretation_cache SET hit_count = hit_count + 1, last_used_at = $1 WHERE id = $2`
	if _, err := d.db.ExecContext(ctx, query, now, id); err != nil {
		return errors.Wrap(err, "failed to increment hit count")
	}
	return nil
}

func (d *DB) UpdateCachedInterpretation(ctx context.Context, update *store.UpdateCachedInterpretation) error {
	if update == nil {
		return errors.New("update parameter cannot be nil")
	}

	set, args := []string{}, []any{}
	if update.ExpiresAt != nil {
		args = append(args, *update.ExpiresAt)
		set = append(set, fmt.Sprintf("expires_at = $%d", len(args)))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, update.ID)
	query := fmt.Sprintf(`UPDATE interpretation_cache SET %s WHERE id = $%d`, strings.Join(set, ", "), len(args))
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "failed to update cached interpretation")
	}
	return nil
}

func (d *DB) DeleteCachedInterpretations(ctx context.Context, delete *store.DeleteCachedInterpretation) (int64, error) {
	if delete == nil {
		return 0, errors.New("delete parameter cannot be nil")
	}

	var query string
	var args []any
	switch {
	case delete.All:
		query = `DELETE FROM interpretation_cache`
	case len(delete.IDs) > 0:
		query = `DELETE FROM interpretation_cache WHERE id = ANY($1)`
		args = append(args, pq.Array(delete.IDs))
	case delete.TarotistaID != nil:
		query = `DELETE FROM interpretation_cache WHERE tarotista_id = $1`
		args = append(args, *delete.TarotistaID)
	case delete.ExpiredBefore != nil:
		query = `DELETE FROM interpretation_cache WHERE expires_at <= $1`
		args = append(args, *delete.ExpiredBefore)
	case delete.LowUsage != nil:
		query = `DELETE FROM interpretation_cache WHERE hit_count < $1 AND created_at < $2`
		args = append(args, delete.LowUsage.MaxHits, delete.LowUsage.Before)
	default:
		return 0, errors.New("delete requires a condition")
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete cached interpretations")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}
	return affected, nil
}

func (d *DB) GetCachedInterpretationStats(ctx context.Context, now time.Time) (*store.CachedInterpretationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE expires_at <= $1),
			COALESCE(AVG(hit_count), 0)
		FROM interpretation_cache
	`
	var stats store.CachedInterpretationStats
	if err := d.db.QueryRowContext(ctx, query, now).Scan(&stats.Total, &stats.Expired, &stats.AvgHits); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate cache stats")
	}
	return &stats, nil
}

func buildFindConditions(find *store.FindCachedInterpretation) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	add := func(condition string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(condition, len(args)))
	}

	if find.ID != nil {
		add("id = $%d", *find.ID)
	}
	if find.CacheKey != nil {
		add("cache_key = $%d", *find.CacheKey)
	}
	if find.TarotistaID != nil {
		add("tarotista_id = $%d", *find.TarotistaID)
	}
	if find.SpreadID != nil {
		add("spread_id = $%d", *find.SpreadID)
	} else if find.NoSpread {
		where = append(where, "spread_id IS NULL")
	}
	if find.ExcludeExpiredAt != nil {
		add("expires_at > $%d", *find.ExcludeExpiredAt)
	}
	if find.CreatedAfter != nil {
		add("created_at >= $%d", *find.CreatedAfter)
	}
	if find.CreatedBefore != nil {
		add("created_at < $%d", *find.CreatedBefore)
	}
	if find.LastUsedAfter != nil {
		add("last_used_at >= $%d", *find.LastUsedAfter)
	}
	if find.LastUsedBefore != nil {
		add("last_used_at < $%d", *find.LastUsedBefore)
	}
	if find.MaxHitCount != nil {
		add("hit_count <= $%d", *find.MaxHitCount)
	}

	return where, args
}
