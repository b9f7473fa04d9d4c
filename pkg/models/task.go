package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Task kinds determine which collaborators the runner invokes.
const (
	TaskKindBrainstorm = "brainstorm"
	TaskKindStructure  = "structure"
	TaskKindFile       = "file"
)

// Task is one unit of analysis work. The API returns a task_id on
// POST /tasks/run/{kind}; clients fetch or stream progress until the task
// reaches a terminal status.
type Task struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	OwnerID   *uuid.UUID `db:"owner_id"   json:"owner_id,omitempty"` // nil for guest tasks
	Kind      string     `db:"kind"       json:"kind"`
	Status    string     `db:"status"     json:"status"`
	Context   string     `db:"context"    json:"context"`
	Output    *string    `db:"output"     json:"output,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// IsTerminal reports whether the status admits no further transitions.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// TaskEvent is one timestamped progress entry in a task's append-only log.
// The ID is assigned by the store in insertion order and is strictly
// increasing within a task, which lets stream readers deduplicate replayed
// entries against live deliveries.
type TaskEvent struct {
	ID        int64     `db:"id"         json:"-"`
	TaskID    uuid.UUID `db:"task_id"    json:"-"`
	Message   string    `db:"message"    json:"event"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}
