package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mystica-ai/mystica/store"
)

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

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
			question_hash, interpretation_text, hit_count, created_ts, last_used_ts, expires_ts
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err = d.db.QueryRowContext(ctx, query,
		create.UID, create.CacheKey, create.TarotistaID, create.SpreadID, string(combination),
		create.QuestionHash, create.InterpretationText, create.HitCount,
		create.CreatedAt.Unix(), create.LastUsedAt.Unix(), create.ExpiresAt.Unix(),
	).Scan(&create.ID)
	if err != nil {
		if isUniqueViolation(err) {
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
			question_hash, interpretation_text, hit_count, created_ts, last_used_ts, expires_ts
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
		var combination string
		var createdTs, lastUsedTs, expiresTs int64
		if err := rows.Scan(
			&record.ID, &record.UID, &record.CacheKey, &record.TarotistaID, &record.SpreadID,
			&combination, &record.QuestionHash, &record.InterpretationText,
			&record.HitCount, &createdTs, &lastUsedTs, &expiresTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan cached interpretation")
		}
		if err := json.Unmarshal([]byte(combination), &record.CardCombination); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal card combination")
		}
		record.CreatedAt = time.Unix(createdTs, 0)
		record.LastUsedAt = time.Unix(lastUsedTs, 0)
		record.ExpiresAt = time.Unix(expiresTs, 0)
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
	query := `UPDATE interpretation_cache SET hit_count = hit_count + 1, last_used_ts = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, query, now.Unix(), id); err != nil {
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
		set = append(set, "expires_ts = ?")
		args = append(args, update.ExpiresAt.Unix())
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, update.ID)
	query := fmt.Sprintf(`UPDATE interpretation_cache SET %s WHERE id = ?`, strings.Join(set, ", "))
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
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(delete.IDs)), ", ")
		query = fmt.Sprintf(`DELETE FROM interpretation_cache WHERE id IN (%s)`, placeholders)
		for _, id := range delete.IDs {
			args = append(args, id)
		}
	case delete.TarotistaID != nil:
		query = `DELETE FROM interpretation_cache WHERE tarotista_id = ?`
		args = append(args, *delete.TarotistaID)
	case delete.ExpiredBefore != nil:
		query = `DELETE FROM interpretation_cache WHERE expires_ts <= ?`
		args = append(args, delete.ExpiredBefore.Unix())
	case delete.LowUsage != nil:
		query = `DELETE FROM interpretation_cache WHERE hit_count < ? AND created_ts < ?`
		args = append(args, delete.LowUsage.MaxHits, delete.LowUsage.Before.Unix())
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
			COALESCE(SUM(CASE WHEN expires_ts <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(hit_count), 0)
		FROM interpretation_cache
	`
	var stats store.CachedInterpretationStats
	if err := d.db.QueryRowContext(ctx, query, now.Unix()).Scan(&stats.Total, &stats.Expired, &stats.AvgHits); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate cache stats")
	}
	return &stats, nil
}

func buildFindConditions(find *store.FindCachedInterpretation) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where = append(where, "id = ?")
		args = append(args, *find.ID)
	}
	if find.CacheKey != nil {
		where = append(where, "cache_key = ?")
		args = append(args, *find.CacheKey)
	}
	if find.TarotistaID != nil {
		where = append(where, "tarotista_id = ?")
		args = append(args, *find.TarotistaID)
	}
	if find.SpreadID != nil {
		where = append(where, "spread_id = ?")
		args = append(args, *find.SpreadID)
	} else if find.NoSpread {
		where = append(where, "spread_id IS NULL")
	}
	if find.ExcludeExpiredAt != nil {
		where = append(where, "expires_ts > ?")
		args = append(args, find.ExcludeExpiredAt.Unix())
	}
	if find.CreatedAfter != nil {
		where = append(where, "created_ts >= ?")
		args = append(args, find.CreatedAfter.Unix())
	}
	if find.CreatedBefore != nil {
		where = append(where, "created_ts < ?")
		args = append(args, find.CreatedBefore.Unix())
	}
	if find.LastUsedAfter != nil {
		where = append(where, "last_used_ts >= ?")
		args = append(args, find.LastUsedAfter.Unix())
	}
	if find.LastUsedBefore != nil {
		where = append(where, "last_used_ts < ?")
		args = append(args, find.LastUsedBefore.Unix())
	}
	if find.MaxHitCount != nil {
		where = append(where, "hit_count <= ?")
		args = append(args, *find.MaxHitCount)
	}

	return where, args
}
