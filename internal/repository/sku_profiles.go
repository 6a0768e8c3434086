package repository

import (
	"time"

	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func scanSkuProfile(row rowScanner) (*domain.SkuProfile, error) {
	p := &domain.SkuProfile{}
	dst := []any{&p.FactoryID, &p.SkuCode, &p.ManualComplexity, &p.LearnedComplexity, &p.SampleCount, &p.AvgEfficiency, &p.FailureRate, &p.UpdatedAt}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) GetSkuProfile(factoryID int64, skuCode string) (*domain.SkuProfile, error) {
	query := `
		SELECT factory_id, sku_code, manual_complexity, learned_complexity, sample_count, avg_efficiency, failure_rate, updated_at
		FROM sku_profiles WHERE factory_id = $1 AND sku_code = $2
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	p, err := scanSkuProfile(r.dbpool.QueryRowContext(ctx, query, factoryID, skuCode))
	if err != nil {
		return nil, mapNoRows(err, domain.ErrSkuNotFound)
	}

	return p, nil
}

func (r *Repository) GetAllSkuProfiles(factoryID int64) ([]*domain.SkuProfile, error) {
	query := `
		SELECT factory_id, sku_code, manual_complexity, learned_complexity, sample_count, avg_efficiency, failure_rate, updated_at
		FROM sku_profiles WHERE factory_id = $1
		ORDER BY sku_code
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, factoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*domain.SkuProfile, 0)
	for rows.Next() {
		p, err := scanSkuProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

// SetManualComplexity 只修改人工复杂度，不影响学习到的统计
func (r *Repository) SetManualComplexity(factoryID int64, skuCode string, level int32, updatedAt time.Time) error {
	query := `
		INSERT INTO sku_profiles (factory_id, sku_code, manual_complexity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (factory_id, sku_code) DO UPDATE
		SET
			manual_complexity = EXCLUDED.manual_complexity,
			updated_at = EXCLUDED.updated_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, factoryID, skuCode, level, updatedAt); err != nil {
		return err
	}

	return nil
}

// UpdateLearnedComplexity 只修改学习相关的列，人工复杂度保持不变
func (r *Repository) UpdateLearnedComplexity(p *domain.SkuProfile) error {
	query := `
		INSERT INTO sku_profiles (factory_id, sku_code, learned_complexity, sample_count, avg_efficiency, failure_rate, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (factory_id, sku_code) DO UPDATE
		SET
			learned_complexity = EXCLUDED.learned_complexity,
			sample_count = EXCLUDED.sample_count,
			avg_efficiency = EXCLUDED.avg_efficiency,
			failure_rate = EXCLUDED.failure_rate,
			updated_at = EXCLUDED.updated_at
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{p.FactoryID, p.SkuCode, p.LearnedComplexity, p.SampleCount, p.AvgEfficiency, p.FailureRate, p.UpdatedAt}
	if _, err := r.dbpool.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return nil
}
