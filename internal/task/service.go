// Package task implements the asynchronous task execution core: the runner
// state machine, the durable event log protocol around it, and the fan-out of
// live events to stream subscribers.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/devfedhq/devboard/internal/cache"
	"github.com/devfedhq/devboard/internal/github"
	"github.com/devfedhq/devboard/internal/store"
	"github.com/devfedhq/devboard/pkg/models"
)

const (
	// memoryWindow bounds how many prior conversation turns are fed back
	// into a completion request, oldest first.
	memoryWindow = 5
	// previewLen bounds the response excerpt recorded in the event log.
	// The full text lives only in Task.Output.
	previewLen = 200

	statusTTL = 30 * time.Minute
)

// Config carries the repo defaults used by kinds that fetch repository
// context when the caller does not name a repo explicitly.
type Config struct {
	DefaultRepo string // "owner/name"
	DefaultPath string
}

// RunInput is the caller-supplied payload for a task run.
type RunInput struct {
	Context string
	Repo    string // "owner/name", optional
	Path    string // optional, kind "file" only
	Branch  string // optional
}

// Service creates tasks, runs them in the background, and exposes their
// event logs and live streams. Each task's runner is an independent
// goroutine; the only shared mutable state is the store and the distributor.
type Service struct {
	store      store.Store
	cache      cache.Cache
	completion models.CompletionProvider
	repos      github.Client
	dist       *Distributor
	cfg        Config
}

// NewService creates a new task Service.
func NewService(st store.Store, ca cache.Cache, completion models.CompletionProvider, repos github.Client, cfg Config) *Service {
	return &Service{
		store:      st,
		cache:      ca,
		completion: completion,
		repos:      repos,
		dist:       NewDistributor(),
		cfg:        cfg,
	}
}

// Run creates a pending task and dispatches its runner in a background
// goroutine. It returns the task immediately; callers never wait for the
// runner. Storage errors are propagated, nothing else fails a Run.
func (s *Service) Run(ctx context.Context, ownerID *uuid.UUID, kind string, in RunInput) (*models.Task, error) {
	task := &models.Task{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    models.TaskStatusPending,
		Context:   in.Context,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	_ = s.cache.SetTaskStatus(ctx, task.ID, models.TaskStatusPending, statusTTL)
	_ = s.store.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    ownerID,
		Action:    "run task " + kind,
		CreatedAt: time.Now().UTC(),
	})

	go s.runTask(*task, in)

	return task, nil
}

// Get returns a task together with its full event log replay.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Task, []*models.TaskEvent, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.store.ListEvents(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return task, events, nil
}

// Events returns the task's event log in insertion order. Reading is
// side-effect free; concurrent subscribers replaying the same task see the
// same entries.
func (s *Service) Events(ctx context.Context, id uuid.UUID) ([]*models.TaskEvent, error) {
	return s.store.ListEvents(ctx, id)
}

// Subscribe attaches a live reader to the task's stream.
func (s *Service) Subscribe(id uuid.UUID) *Subscription {
	return s.dist.Subscribe(id)
}

// Unsubscribe detaches a reader without affecting the runner or other
// subscribers.
func (s *Service) Unsubscribe(sub *Subscription) {
	s.dist.Unsubscribe(sub)
}

// runTask drives one task from running to a terminal status. It owns all
// writes to the task after creation. Collaborator failures become task
// state, never propagated errors; the end-of-stream marker is delivered
// exactly once, after the terminal status write, even on panic.
func (s *Service) runTask(task models.Task, in RunInput) {
	ctx := context.Background()

	// Registered before the recover handler so it runs after the terminal
	// status has been written.
	defer s.dist.Finish(task.ID)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in task runner", "error", r, "task_id", task.ID)
			s.failTask(ctx, task.ID, fmt.Sprintf("task failed: panic: %v", r))
		}
	}()

	// Without the running status on record, the terminal write at the end
	// would be rejected as an invalid transition and the task would sit in
	// pending forever.
	if err := s.store.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning); err != nil {
		slog.Error("marking task running failed", "task_id", task.ID, "error", err)
		s.failTask(ctx, task.ID, "task failed: could not start")
		return
	}
	_ = s.cache.SetTaskStatus(ctx, task.ID, models.TaskStatusRunning, statusTTL)

	repoContext, err := s.fetchRepoContext(ctx, &task, in)
	if err != nil {
		s.failTask(ctx, task.ID, fmt.Sprintf("task failed: %v", err))
		return
	}

	var memory []models.MemoryEntry
	if task.OwnerID != nil {
		entries, err := s.store.ListRecentMemories(ctx, *task.OwnerID, memoryWindow)
		if err != nil {
			slog.Warn("loading memory failed", "task_id", task.ID, "error", err)
		}
		for _, e := range entries {
			memory = append(memory, *e)
		}
	}

	s.logEvent(ctx, task.ID, "sending request to completion service")
	output, err := s.completion.Complete(ctx, models.CompletionRequest{
		Kind:        task.Kind,
		Context:     task.Context,
		Memory:      memory,
		RepoContext: repoContext,
	})
	if err != nil {
		s.failTask(ctx, task.ID, fmt.Sprintf("task failed: %v", err))
		return
	}

	s.logEvent(ctx, task.ID, "response: "+preview(output))

	if task.OwnerID != nil {
		if err := s.store.CreateMemory(ctx, &models.MemoryEntry{
			UserID:    *task.OwnerID,
			Role:      "assistant",
			Content:   output,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			slog.Warn("persisting memory failed", "task_id", task.ID, "error", err)
		}
	}

	if err := s.store.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted, store.WithOutput(output)); err != nil {
		slog.Error("marking task completed failed", "task_id", task.ID, "error", err)
	}
	_ = s.cache.SetTaskStatus(ctx, task.ID, models.TaskStatusCompleted, statusTTL)
}

// fetchRepoContext resolves and performs the repository access a kind needs.
// The describing event is appended before the call, so a crash mid-fetch is
// still visible in the log.
func (s *Service) fetchRepoContext(ctx context.Context, task *models.Task, in RunInput) (string, error) {
	switch task.Kind {
	case models.TaskKindStructure:
		owner, repo, err := s.resolveRepo(in.Repo)
		if err != nil {
			return "", err
		}
		s.logEvent(ctx, task.ID, fmt.Sprintf("fetching repository tree for %s/%s", owner, repo))
		tree, err := s.repos.Tree(ctx, github.TreeRequest{
			Owner:     owner,
			Repo:      repo,
			Branch:    in.Branch,
			Recursive: true,
		})
		if err != nil {
			return "", fmt.Errorf("fetching repo tree: %w", err)
		}
		encoded, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding repo tree: %w", err)
		}
		return "Repo Tree:\n" + string(encoded), nil

	case models.TaskKindFile:
		owner, repo, err := s.resolveRepo(in.Repo)
		if err != nil {
			return "", err
		}
		path := in.Path
		if path == "" {
			path = s.cfg.DefaultPath
		}
		s.logEvent(ctx, task.ID, fmt.Sprintf("fetching file %s", path))
		file, err := s.repos.FileContent(ctx, github.FileRequest{
			Owner:  owner,
			Repo:   repo,
			Path:   path,
			Branch: in.Branch,
		})
		if err != nil {
			return "", fmt.Errorf("fetching file: %w", err)
		}
		return fmt.Sprintf("File: %s\n\n%s", file.Path, file.Content), nil

	case models.TaskKindBrainstorm:
		s.logEvent(ctx, task.ID, "starting brainstorm (no repository context)")
		return "", nil

	default:
		// The completion client rejects unknown presets; the run fails there
		// with the log showing what was attempted.
		s.logEvent(ctx, task.ID, fmt.Sprintf("unknown task kind %q", task.Kind))
		return "", nil
	}
}

// resolveRepo picks the caller's repo or the configured default.
func (s *Service) resolveRepo(repoID string) (string, string, error) {
	if repoID == "" {
		repoID = s.cfg.DefaultRepo
	}
	owner, repo, ok := strings.Cut(repoID, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("no repository configured for this task kind")
	}
	return owner, repo, nil
}

// failTask records the failure in the event log and the task record. The
// reason is a human-readable description, never a stack trace.
func (s *Service) failTask(ctx context.Context, taskID uuid.UUID, reason string) {
	s.logEvent(ctx, taskID, "failed: "+reason)
	if err := s.store.UpdateTaskStatus(ctx, taskID, models.TaskStatusFailed, store.WithOutput(reason)); err != nil {
		slog.Error("marking task failed failed", "task_id", taskID, "error", err)
	}
	_ = s.cache.SetTaskStatus(ctx, taskID, models.TaskStatusFailed, statusTTL)
}

// logEvent appends to the durable log first, then pushes the stored event to
// live subscribers. Append failures are logged and skipped so a storage
// hiccup cannot wedge the runner mid-flight.
func (s *Service) logEvent(ctx context.Context, taskID uuid.UUID, message string) {
	ev, err := s.store.AppendEvent(ctx, taskID, message)
	if err != nil {
		slog.Error("appending task event failed", "task_id", taskID, "error", err)
		return
	}
	s.dist.Publish(taskID, *ev)
}

// preview cuts on a rune boundary so a multi-byte character at the edge is
// dropped whole rather than split.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
