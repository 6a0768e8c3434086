package repository

import (
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const schedulingConfigColumns = `
	adaptive_enabled, fairness_enabled, temp_worker_enabled,
	bandit_weight, fairness_weight, skill_maintenance_weight, repetition_weight, complexity_weight,
	skill_decay_days, temp_skill_decay_days, fairness_period_days, max_consecutive_days,
	temp_bandit_factor, temp_fairness_factor,
	learning_rate, efficiency_target, diversity_target, min_samples_for_adaptation, anomaly_threshold,
	last_adaptation_at, adaptation_count
`

// tunableFields 是插入和更新时共用的参数顺序，与 schedulingConfigColumns 一致
func tunableFields(cfg *domain.SchedulingConfig) []any {
	return []any{
		cfg.AdaptiveEnabled, cfg.FairnessEnabled, cfg.TempWorkerEnabled,
		cfg.Weights.Bandit, cfg.Weights.Fairness, cfg.Weights.SkillMaintenance, cfg.Weights.Repetition, cfg.ComplexityWeight,
		cfg.SkillDecayDays, cfg.TempSkillDecayDays, cfg.FairnessPeriodDays, cfg.MaxConsecutiveDays,
		cfg.TempBanditFactor, cfg.TempFairnessFactor,
		cfg.LearningRate, cfg.EfficiencyTarget, cfg.DiversityTarget, cfg.MinSamplesForAdaptation, cfg.AnomalyThreshold,
		cfg.LastAdaptationAt, cfg.AdaptationCount,
	}
}

func (r *Repository) GetSchedulingConfig(factoryID int64) (*domain.SchedulingConfig, error) {
	query := `
		SELECT ` + schedulingConfigColumns + `, created_at, updated_at, version
		FROM scheduling_configs WHERE factory_id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	cfg := &domain.SchedulingConfig{
		FactoryID: factoryID,
	}

	dst := []any{
		&cfg.AdaptiveEnabled, &cfg.FairnessEnabled, &cfg.TempWorkerEnabled,
		&cfg.Weights.Bandit, &cfg.Weights.Fairness, &cfg.Weights.SkillMaintenance, &cfg.Weights.Repetition, &cfg.ComplexityWeight,
		&cfg.SkillDecayDays, &cfg.TempSkillDecayDays, &cfg.FairnessPeriodDays, &cfg.MaxConsecutiveDays,
		&cfg.TempBanditFactor, &cfg.TempFairnessFactor,
		&cfg.LearningRate, &cfg.EfficiencyTarget, &cfg.DiversityTarget, &cfg.MinSamplesForAdaptation, &cfg.AnomalyThreshold,
		&cfg.LastAdaptationAt, &cfg.AdaptationCount,
		&cfg.CreatedAt, &cfg.UpdatedAt, &cfg.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, factoryID).Scan(dst...); err != nil {
		return nil, mapNoRows(err, domain.ErrConfigNotFound)
	}

	return cfg, nil
}

func (r *Repository) CreateSchedulingConfig(cfg *domain.SchedulingConfig) error {
	query := `
		INSERT INTO scheduling_configs (factory_id, ` + schedulingConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at, updated_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := append([]any{cfg.FactoryID}, tunableFields(cfg)...)
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&cfg.CreatedAt, &cfg.UpdatedAt, &cfg.Version); err != nil {
		return err
	}

	return nil
}

// UpdateSchedulingConfig 只由自适应调参调用，调参器是配置的唯一写者，因此不做版本检查
func (r *Repository) UpdateSchedulingConfig(cfg *domain.SchedulingConfig) error {
	query := `
		UPDATE scheduling_configs
		SET
			adaptive_enabled = $2,
			fairness_enabled = $3,
			temp_worker_enabled = $4,
			bandit_weight = $5,
			fairness_weight = $6,
			skill_maintenance_weight = $7,
			repetition_weight = $8,
			complexity_weight = $9,
			skill_decay_days = $10,
			temp_skill_decay_days = $11,
			fairness_period_days = $12,
			max_consecutive_days = $13,
			temp_bandit_factor = $14,
			temp_fairness_factor = $15,
			learning_rate = $16,
			efficiency_target = $17,
			diversity_target = $18,
			min_samples_for_adaptation = $19,
			anomaly_threshold = $20,
			last_adaptation_at = $21,
			adaptation_count = $22,
			updated_at = NOW(),
			version = version + 1
		WHERE factory_id = $1
		RETURNING updated_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := append([]any{cfg.FactoryID}, tunableFields(cfg)...)
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&cfg.UpdatedAt, &cfg.Version); err != nil {
		return mapNoRows(err, domain.ErrConfigNotFound)
	}

	return nil
}

func (r *Repository) GetAllFactoryIDs() ([]int64, error) {
	query := `
		SELECT factory_id FROM scheduling_configs ORDER BY factory_id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}
