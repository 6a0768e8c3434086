package repository

import (
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

const workerColumns = `
	id, factory_id, code, full_name, employment_type, hire_date, expected_end_date, skill_level,
	avg_efficiency, reliability_score, total_assignments, converted_at, deleted_at, created_at, version
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (*domain.Worker, error) {
	w := &domain.Worker{}
	dst := []any{
		&w.ID, &w.FactoryID, &w.Code, &w.FullName, &w.EmploymentType, &w.HireDate, &w.ExpectedEndDate, &w.SkillLevel,
		&w.AvgEfficiency, &w.ReliabilityScore, &w.TotalAssignments, &w.ConvertedAt, &w.DeletedAt, &w.CreatedAt, &w.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *Repository) GetWorker(factoryID, workerID int64) (*domain.Worker, error) {
	query := `
		SELECT ` + workerColumns + `
		FROM workers WHERE factory_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	w, err := scanWorker(r.dbpool.QueryRowContext(ctx, query, factoryID, workerID))
	if err != nil {
		return nil, mapNoRows(err, domain.ErrWorkerNotFound)
	}

	return w, nil
}

// GetWorkerByCode 包括已删除的工人，因为工号在工厂内永久唯一
func (r *Repository) GetWorkerByCode(factoryID int64, code string) (*domain.Worker, error) {
	query := `
		SELECT ` + workerColumns + `
		FROM workers WHERE factory_id = $1 AND code = $2
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	w, err := scanWorker(r.dbpool.QueryRowContext(ctx, query, factoryID, code))
	if err != nil {
		return nil, mapNoRows(err, domain.ErrWorkerNotFound)
	}

	return w, nil
}

func (r *Repository) GetActiveWorkers(factoryID int64) ([]*domain.Worker, error) {
	query := `
		SELECT ` + workerColumns + `
		FROM workers WHERE factory_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, factoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := make([]*domain.Worker, 0)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return workers, nil
}

func (r *Repository) CreateWorker(w *domain.Worker) error {
	query := `
		INSERT INTO workers (factory_id, code, full_name, employment_type, hire_date, expected_end_date, skill_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, avg_efficiency, reliability_score, total_assignments, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{w.FactoryID, w.Code, w.FullName, w.EmploymentType, w.HireDate, w.ExpectedEndDate, w.SkillLevel}
	dst := []any{&w.ID, &w.AvgEfficiency, &w.ReliabilityScore, &w.TotalAssignments, &w.CreatedAt, &w.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return mapUniqueViolation(err, "workers_factory_id_code_key", domain.ErrWorkerAlreadyRegistered)
	}

	return nil
}

// UpdateWorker 使用乐观锁，版本不一致时返回 ErrVersionConflict
func (r *Repository) UpdateWorker(w *domain.Worker) error {
	query := `
		UPDATE workers
		SET
			full_name = $1,
			employment_type = $2,
			expected_end_date = $3,
			skill_level = $4,
			avg_efficiency = $5,
			reliability_score = $6,
			total_assignments = $7,
			converted_at = $8,
			version = version + 1
		WHERE id = $9 AND factory_id = $10 AND version = $11 AND deleted_at IS NULL
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{
		w.FullName, w.EmploymentType, w.ExpectedEndDate, w.SkillLevel,
		w.AvgEfficiency, w.ReliabilityScore, w.TotalAssignments, w.ConvertedAt,
		w.ID, w.FactoryID, w.Version,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&w.Version); err != nil {
		return mapNoRows(err, domain.ErrVersionConflict)
	}

	return nil
}

// DeleteWorker 只做软删除，历史反馈仍然引用该工人
func (r *Repository) DeleteWorker(factoryID, workerID int64) error {
	query := `
		UPDATE workers SET deleted_at = NOW(), version = version + 1
		WHERE factory_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	result, err := r.dbpool.ExecContext(ctx, query, factoryID, workerID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrWorkerNotFound
	}

	return nil
}
