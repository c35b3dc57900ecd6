package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// TaskRepository handles persistence for warehouse pick and packing tasks.
type TaskRepository interface {
	GetByID(ctx context.Context, kind domain.TaskKind, id string) (*domain.WarehouseTask, error)
	// Update writes task only if the stored row still has the expected status and the
	// updated_at that task carries; otherwise it returns pgx.ErrNoRows.
	Update(ctx context.Context, task *domain.WarehouseTask, expected domain.TaskStatus) error
	CountByStatus(ctx context.Context) (map[domain.TaskKind]map[domain.TaskStatus]int, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository instantiates the repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, kind domain.TaskKind, id string) (*domain.WarehouseTask, error) {
	const query = `
        SELECT id, kind, order_ref, status, assigned_to, started_at, completed_at, created_at, updated_at
        FROM warehouse_tasks WHERE id=$1 AND kind=$2`

	var task domain.WarehouseTask
	if err := r.pool.QueryRow(ctx, query, id, kind).Scan(
		&task.ID,
		&task.Kind,
		&task.OrderRef,
		&task.Status,
		&task.AssignedTo,
		&task.StartedAt,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.WarehouseTask, expected domain.TaskStatus) error {
	const query = `
        UPDATE warehouse_tasks
        SET status=$1, assigned_to=$2, started_at=$3, completed_at=$4, updated_at=NOW()
        WHERE id=$5 AND kind=$6 AND status=$7 AND updated_at=$8
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		task.Status,
		task.AssignedTo,
		task.StartedAt,
		task.CompletedAt,
		task.ID,
		task.Kind,
		expected,
		task.UpdatedAt,
	).Scan(&task.UpdatedAt)
}

func (r *taskRepository) CountByStatus(ctx context.Context) (map[domain.TaskKind]map[domain.TaskStatus]int, error) {
	const query = `SELECT kind, status, COUNT(*) FROM warehouse_tasks GROUP BY kind, status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[domain.TaskKind]map[domain.TaskStatus]int{}
	for rows.Next() {
		var (
			kind   domain.TaskKind
			status domain.TaskStatus
			count  int
		)
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return nil, err
		}
		if result[kind] == nil {
			result[kind] = map[domain.TaskStatus]int{}
		}
		result[kind][status] = count
	}
	return result, rows.Err()
}
