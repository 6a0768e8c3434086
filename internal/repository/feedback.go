package repository

import (
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func (r *Repository) InsertFeedback(fb *domain.AllocationFeedback) error {
	query := `
		INSERT INTO allocation_feedback (factory_id, worker_id, task_type, sku_code, efficiency, completed, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{fb.FactoryID, fb.WorkerID, fb.TaskType, fb.SkuCode, fb.Efficiency, fb.Completed, fb.RecordedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&fb.ID); err != nil {
		return err
	}

	return nil
}

func (r *Repository) CountFeedbackSince(factoryID int64, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM allocation_feedback WHERE factory_id = $1 AND recorded_at >= $2
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var count int64
	if err := r.dbpool.QueryRowContext(ctx, query, factoryID, since).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func (r *Repository) AverageEfficiencySince(factoryID int64, since time.Time) (float64, int64, error) {
	query := `
		SELECT COALESCE(AVG(efficiency), 0), COUNT(*)
		FROM allocation_feedback WHERE factory_id = $1 AND recorded_at >= $2
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var (
		avg   float64
		count int64
	)
	if err := r.dbpool.QueryRowContext(ctx, query, factoryID, since).Scan(&avg, &count); err != nil {
		return 0, 0, err
	}

	return avg, count, nil
}

func (r *Repository) StageCountsSince(factoryID int64, since time.Time) (map[string]int64, error) {
	query := `
		SELECT task_type, COUNT(*)
		FROM allocation_feedback WHERE factory_id = $1 AND recorded_at >= $2
		GROUP BY task_type
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, factoryID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			stage string
			count int64
		)
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		counts[stage] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *Repository) WorkerAssignmentCountsSince(factoryID int64, since time.Time) (map[int64]int64, error) {
	query := `
		SELECT worker_id, COUNT(*)
		FROM allocation_feedback WHERE factory_id = $1 AND recorded_at >= $2
		GROUP BY worker_id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, factoryID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var workerID, count int64
		if err := rows.Scan(&workerID, &count); err != nil {
			return nil, err
		}
		counts[workerID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// SkuStatsSince 的标准差使用总体标准差
func (r *Repository) SkuStatsSince(factoryID int64, skuCode string, since time.Time) (*domain.SkuStats, error) {
	query := `
		SELECT
			COALESCE(AVG(efficiency), 0),
			COALESCE(STDDEV_POP(efficiency), 0),
			COUNT(*),
			COALESCE(AVG(CASE WHEN completed THEN 0 ELSE 1 END), 0)
		FROM allocation_feedback
		WHERE factory_id = $1 AND sku_code = $2 AND recorded_at >= $3
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	stats := &domain.SkuStats{}
	dst := []any{&stats.AvgEfficiency, &stats.StdDev, &stats.SampleCount, &stats.FailureRate}
	if err := r.dbpool.QueryRowContext(ctx, query, factoryID, skuCode, since).Scan(dst...); err != nil {
		return nil, err
	}

	return stats, nil
}
