package dto

import (
	"time"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// TaskUpdateRequest is the PATCH body for pick and packing tasks.
type TaskUpdateRequest struct {
	Status     string     `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	AssignedTo *string    `json:"assignedTo" validate:"omitempty,max=128"`
	StartedAt  *time.Time `json:"startedAt"`
}

// Empty reports whether the request changes nothing.
func (r TaskUpdateRequest) Empty() bool {
	return r.Status == "" && r.AssignedTo == nil && r.StartedAt == nil
}

// TaskStatus returns the requested status, empty when unchanged.
func (r TaskUpdateRequest) TaskStatus() domain.TaskStatus {
	return domain.TaskStatus(r.Status)
}

// ResourceQuery captures paging for collection reads.
type ResourceQuery struct {
	Limit  int `query:"limit" validate:"gte=0,lte=500"`
	Offset int `query:"offset" validate:"gte=0"`
}
