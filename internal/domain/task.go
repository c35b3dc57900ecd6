package domain

import "time"

// TaskKind differentiates warehouse task queues.
type TaskKind string

const (
	TaskKindPick    TaskKind = "pick"
	TaskKindPacking TaskKind = "packing"
)

// TaskStatus enumerates warehouse task lifecycle states.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusCancelled, TaskStatusPending},
}

// CanTransition reports whether a task may move from s to next.
// Re-applying the current status is allowed so assignment-only updates pass.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return !s.Terminal()
	}
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

// WarehouseTask is a pick or packing unit of work.
type WarehouseTask struct {
	ID          string     `json:"id"`
	Kind        TaskKind   `json:"kind"`
	OrderRef    string     `json:"orderRef"`
	Status      TaskStatus `json:"status"`
	AssignedTo  *string    `json:"assignedTo"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ParseTaskKind accepts "pick" and "packing".
func ParseTaskKind(raw string) (TaskKind, bool) {
	switch k := TaskKind(raw); k {
	case TaskKindPick, TaskKindPacking:
		return k, true
	}
	return "", false
}

// APIPath is the task collection path below /api.
func (k TaskKind) APIPath() string {
	return "/warehouse/" + string(k) + "-tasks"
}
