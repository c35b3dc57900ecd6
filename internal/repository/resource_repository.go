package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// ResourceFilter pages through a resource collection.
type ResourceFilter struct {
	Limit  int
	Offset int
}

// ResourceRepository reads stored JSON documents by kind.
type ResourceRepository interface {
	List(ctx context.Context, kind domain.ResourceKind, filter ResourceFilter) ([]domain.Resource, error)
}

type resourceRepository struct {
	pool *pgxpool.Pool
}

// NewResourceRepository builds repository.
func NewResourceRepository(pool *pgxpool.Pool) ResourceRepository {
	return &resourceRepository{pool: pool}
}

func (r *resourceRepository) List(ctx context.Context, kind domain.ResourceKind, filter ResourceFilter) ([]domain.Resource, error) {
	const query = `
        SELECT id, kind, payload, updated_at
        FROM resources WHERE kind=$1
        ORDER BY updated_at DESC
        LIMIT $2 OFFSET $3`

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, query, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Resource{}
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.ID, &res.Kind, &res.Payload, &res.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}
