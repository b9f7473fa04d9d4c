package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/devfedhq/devboard/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Store is the data access interface. All database operations go through here.
//
// Tasks are mutated only by the runner that owns them; events are append-only
// and ListEvents is side-effect free, so any number of stream subscribers can
// replay the same log concurrently.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserStatus(ctx context.Context, id uuid.UUID, status string) error

	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string, opts ...TaskUpdateOption) error

	AppendEvent(ctx context.Context, taskID uuid.UUID, message string) (*models.TaskEvent, error)
	ListEvents(ctx context.Context, taskID uuid.UUID) ([]*models.TaskEvent, error)

	CreateMemory(ctx context.Context, entry *models.MemoryEntry) error
	ListRecentMemories(ctx context.Context, userID uuid.UUID, limit int) ([]*models.MemoryEntry, error)

	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type taskUpdateParams struct {
	Output *string
}

type TaskUpdateOption func(*taskUpdateParams)

// WithOutput sets the task output together with the status update.
func WithOutput(text string) TaskUpdateOption {
	return func(p *taskUpdateParams) {
		p.Output = &text
	}
}

// validTransitions enforces the monotonic task lifecycle. Terminal states
// have no entries: nothing leaves completed or failed.
var validTransitions = map[string][]string{
	models.TaskStatusPending: {models.TaskStatusRunning, models.TaskStatusFailed},
	models.TaskStatusRunning: {models.TaskStatusCompleted, models.TaskStatusFailed},
}

func transitionAllowed(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
