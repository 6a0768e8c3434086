package repository

import (
	"encoding/json"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func (r *Repository) InsertAdaptationLog(entry *domain.AdaptationLog) error {
	before, err := json.Marshal(entry.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(entry.After)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO adaptation_logs (factory_id, kind, reason, before_weights, after_weights, efficiency_measured, diversity_measured, sample_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{entry.FactoryID, entry.Kind, entry.Reason, before, after, entry.EfficiencyMeasured, entry.DiversityMeasured, entry.SampleCount, entry.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&entry.ID); err != nil {
		return err
	}

	return nil
}

// GetAdaptationLogs 按时间倒序返回最近的 limit 条记录
func (r *Repository) GetAdaptationLogs(factoryID int64, limit int) ([]*domain.AdaptationLog, error) {
	query := `
		SELECT id, kind, reason, before_weights, after_weights, efficiency_measured, diversity_measured, sample_count, created_at
		FROM adaptation_logs WHERE factory_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, factoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.AdaptationLog, 0)
	for rows.Next() {
		entry := &domain.AdaptationLog{
			FactoryID: factoryID,
		}

		var before, after []byte
		dst := []any{&entry.ID, &entry.Kind, &entry.Reason, &before, &after, &entry.EfficiencyMeasured, &entry.DiversityMeasured, &entry.SampleCount, &entry.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(before, &entry.Before); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(after, &entry.After); err != nil {
			return nil, err
		}

		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}
