package repository

import (
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func (r *Repository) GetOperatorByID(id int64) (*domain.Operator, error) {
	query := `
		SELECT username, password_hash, full_name, email, role, is_active, created_at, version
		FROM operators WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	op := &domain.Operator{
		ID: id,
	}

	dst := []any{&op.Username, &op.PasswordHash, &op.FullName, &op.Email, &op.Role, &op.IsActive, &op.CreatedAt, &op.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(dst...); err != nil {
		return nil, mapNoRows(err, domain.ErrOperatorNotFound)
	}

	return op, nil
}

func (r *Repository) GetOperatorByUsername(username string) (*domain.Operator, error) {
	query := `
		SELECT id, password_hash, full_name, email, role, is_active, created_at, version
		FROM operators WHERE username = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	op := &domain.Operator{
		Username: username,
	}

	dst := []any{&op.ID, &op.PasswordHash, &op.FullName, &op.Email, &op.Role, &op.IsActive, &op.CreatedAt, &op.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, username).Scan(dst...); err != nil {
		return nil, mapNoRows(err, domain.ErrOperatorNotFound)
	}

	return op, nil
}

func (r *Repository) GetAllOperators() ([]*domain.Operator, error) {
	query := `
		SELECT id, username, password_hash, full_name, email, role, is_active, created_at, version
		FROM operators ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators := make([]*domain.Operator, 0)
	for rows.Next() {
		op := &domain.Operator{}
		dst := []any{&op.ID, &op.Username, &op.PasswordHash, &op.FullName, &op.Email, &op.Role, &op.IsActive, &op.CreatedAt, &op.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return operators, nil
}

func (r *Repository) CreateOperator(op *domain.Operator) error {
	query := `
		INSERT INTO operators (username, password_hash, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{op.Username, op.PasswordHash, op.FullName, op.Email, op.Role}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&op.ID, &op.IsActive, &op.CreatedAt, &op.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) UpdateOperator(op *domain.Operator) error {
	query := `
		UPDATE operators
		SET
			password_hash = $1,
			full_name = $2,
			email = $3,
			role = $4,
			is_active = $5,
			version = version + 1
		WHERE id = $6 AND version = $7
		RETURNING username, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{op.PasswordHash, op.FullName, op.Email, op.Role, op.IsActive, op.ID, op.Version}
	dst := []any{&op.Username, &op.CreatedAt, &op.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...); err != nil {
		return mapNoRows(err, domain.ErrVersionConflict)
	}

	return nil
}

func (r *Repository) DeleteOperator(id int64) error {
	query := `
		DELETE FROM operators WHERE id = $1
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	if _, err := r.dbpool.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return nil
}
