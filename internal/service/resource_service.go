package service

import (
	"context"
	"encoding/json"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// ResourceService serves read-only document collections.
type ResourceService struct {
	resources repository.ResourceRepository
}

// NewResourceService constructs the service.
func NewResourceService(resources repository.ResourceRepository) *ResourceService {
	return &ResourceService{resources: resources}
}

// List returns the payloads of a collection, newest first.
func (s *ResourceService) List(ctx context.Context, kind domain.ResourceKind, filter repository.ResourceFilter) ([]json.RawMessage, error) {
	if _, ok := domain.ParseResourceKind(string(kind)); !ok {
		return nil, apperrors.NewNotFound("collection", map[string]any{"kind": kind})
	}
	items, err := s.resources.List(ctx, kind, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	payloads := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, item.Payload)
	}
	return payloads, nil
}
