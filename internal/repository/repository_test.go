package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func TestMapNoRows(t *testing.T) {
	assert.ErrorIs(t, mapNoRows(sql.ErrNoRows, domain.ErrWorkerNotFound), domain.ErrWorkerNotFound)
	assert.ErrorIs(t, mapNoRows(fmt.Errorf("scan: %w", sql.ErrNoRows), domain.ErrSkuNotFound), domain.ErrSkuNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapNoRows(other, domain.ErrWorkerNotFound))
}

func TestMapUniqueViolation(t *testing.T) {
	duplicate := &pgconn.PgError{Code: "23505", ConstraintName: "workers_factory_id_code_key"}
	assert.ErrorIs(t, mapUniqueViolation(duplicate, "workers_factory_id_code_key", domain.ErrWorkerAlreadyRegistered), domain.ErrWorkerAlreadyRegistered)

	otherConstraint := &pgconn.PgError{Code: "23505", ConstraintName: "operators_email_key"}
	assert.NotErrorIs(t, mapUniqueViolation(otherConstraint, "workers_factory_id_code_key", domain.ErrWorkerAlreadyRegistered), domain.ErrWorkerAlreadyRegistered)

	checkViolation := &pgconn.PgError{Code: "23514", ConstraintName: "workers_factory_id_code_key"}
	assert.Equal(t, error(checkViolation), mapUniqueViolation(checkViolation, "workers_factory_id_code_key", domain.ErrWorkerAlreadyRegistered))
}
