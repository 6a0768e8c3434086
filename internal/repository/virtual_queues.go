package repository

import (
	"github.com/sysu-ecnc-dev/workforce-allocator/backend/internal/domain"
)

func (r *Repository) GetVirtualQueue(factoryID int64) ([]domain.VirtualQueueEntry, error) {
	query := `
		SELECT worker_id, debt, period_assignments
		FROM virtual_queues WHERE factory_id = $1
		ORDER BY worker_id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, factoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.VirtualQueueEntry, 0)
	for rows.Next() {
		e := domain.VirtualQueueEntry{
			FactoryID: factoryID,
		}
		if err := rows.Scan(&e.WorkerID, &e.Debt, &e.PeriodAssignments); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// ReplaceVirtualQueue 用新的快照整体替换工厂的虚拟队列
func (r *Repository) ReplaceVirtualQueue(factoryID int64, entries []domain.VirtualQueueEntry) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先把原先的快照删除再插入
	if _, err := tx.ExecContext(ctx, `DELETE FROM virtual_queues WHERE factory_id = $1`, factoryID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO virtual_queues (factory_id, worker_id, debt, period_assignments)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, factoryID, e.WorkerID, max(0, e.Debt), e.PeriodAssignments); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}
