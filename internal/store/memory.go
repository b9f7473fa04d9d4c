package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devfedhq/devboard/pkg/models"
)

// MemoryStore is an in-memory Store implementation. It backs unit tests and
// lets the task runner and distributor be exercised without a database. It is
// safe for concurrent use; appends for the same task are serialized by the
// store mutex, which is what assigns event positions atomically.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	tasks    map[uuid.UUID]*models.Task
	events   map[uuid.UUID][]*models.TaskEvent
	memories map[uuid.UUID][]*models.MemoryEntry
	audits   []*models.AuditLog
	nextSeq  int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*models.User),
		tasks:    make(map[uuid.UUID]*models.Task),
		events:   make(map[uuid.UUID][]*models.TaskEvent),
		memories: make(map[uuid.UUID][]*models.MemoryEntry),
	}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUserStatus(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

// --- Tasks ---

func (s *MemoryStore) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	s.events[task.ID] = []*models.TaskEvent{}
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) UpdateTaskStatus(_ context.Context, id uuid.UUID, status string, opts ...TaskUpdateOption) error {
	params := &taskUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !transitionAllowed(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}
	t.Status = status
	if params.Output != nil {
		out := *params.Output
		t.Output = &out
	}
	return nil
}

// --- Events ---

func (s *MemoryStore) AppendEvent(_ context.Context, taskID uuid.UUID, message string) (*models.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		return nil, ErrNotFound
	}
	s.nextSeq++
	ev := &models.TaskEvent{
		ID:        s.nextSeq,
		TaskID:    taskID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	s.events[taskID] = append(s.events[taskID], ev)
	cp := *ev
	return &cp, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, taskID uuid.UUID) ([]*models.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.events[taskID]
	out := make([]*models.TaskEvent, len(stored))
	for i, ev := range stored {
		cp := *ev
		out[i] = &cp
	}
	return out, nil
}

// --- Memories ---

func (s *MemoryStore) CreateMemory(_ context.Context, entry *models.MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	entry.ID = s.nextSeq
	cp := *entry
	s.memories[entry.UserID] = append(s.memories[entry.UserID], &cp)
	return nil
}

func (s *MemoryStore) ListRecentMemories(_ context.Context, userID uuid.UUID, limit int) ([]*models.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.memories[userID]
	start := 0
	if len(stored) > limit {
		start = len(stored) - limit
	}
	var out []*models.MemoryEntry
	for _, e := range stored[start:] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// --- Audit log ---

func (s *MemoryStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	entry.ID = s.nextSeq
	cp := *entry
	s.audits = append(s.audits, &cp)
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
