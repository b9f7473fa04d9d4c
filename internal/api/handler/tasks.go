package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/devfedhq/devboard/internal/api/middleware"
	"github.com/devfedhq/devboard/internal/api/response"
	"github.com/devfedhq/devboard/internal/store"
	"github.com/devfedhq/devboard/internal/task"
	"github.com/devfedhq/devboard/pkg/models"
)

// TaskHandler serves task runs, task lookups, and the live event stream.
type TaskHandler struct {
	tasks *task.Service
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks *task.Service) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type runRequest struct {
	Context json.RawMessage `json:"context"`
	Repo    string          `json:"repo"`
	Path    string          `json:"path"`
	Branch  string          `json:"branch"`
}

// contextText accepts either a JSON string or any other JSON value, which is
// passed on verbatim.
func (r *runRequest) contextText() string {
	if len(r.Context) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Context, &s); err == nil {
		return s
	}
	return string(r.Context)
}

// Run handles POST /tasks/run/{kind}. The response is returned as soon as the
// task is recorded; execution continues in the background.
func (h *TaskHandler) Run(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	switch kind {
	case models.TaskKindBrainstorm, models.TaskKindStructure, models.TaskKindFile:
	default:
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("Unknown task kind %q", kind), nil)
		return
	}

	var req runRequest
	if r.Body != nil {
		// An empty body is a valid run with no extra context.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var ownerID *uuid.UUID
	if claims, ok := mw.GetClaims(r); ok {
		uid := claims.UserID
		ownerID = &uid
	}

	created, err := h.tasks.Run(r.Context(), ownerID, kind, task.RunInput{
		Context: req.contextText(),
		Repo:    req.Repo,
		Path:    req.Path,
		Branch:  req.Branch,
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to create task", nil)
		return
	}

	response.Accepted(w, map[string]any{
		"task_id": created.ID,
		"status":  "started",
	})
}

// Get handles GET /tasks/{taskID}: the task record plus its full event log.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, events, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	response.JSON(w, map[string]any{
		"task":   t,
		"events": events,
	})
}

// Stream handles GET /tasks/{taskID}/stream as server-sent events: a
// connected heartbeat, then the stored log replayed in order, then live
// events until the runner finishes. The subscription is taken before replay
// and live deliveries already seen in the replay are dropped by event ID, so
// no entry is missed or duplicated across the handoff. Whether the runner is
// already done is decided from the task's stored status after replay, so a
// stream of a finished task always ends instead of waiting on a channel that
// nothing will close.
func (h *TaskHandler) Stream(w http.ResponseWriter, r *http.Request) {
	t, _, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "data: {\"event\":\"connected\"}\n\n")
	flusher.Flush()

	sub := h.tasks.Subscribe(t.ID)
	defer h.tasks.Unsubscribe(sub)

	events, err := h.tasks.Events(r.Context(), t.ID)
	if err != nil {
		return
	}

	var lastID int64
	for _, ev := range events {
		writeEvent(w, flusher, *ev)
		lastID = ev.ID
	}

	// The runner may have finished between the authorization load and the
	// subscribe, in which case the channel is never closed. The terminal
	// status is durable, so re-read it: if the task is done, flush whatever
	// the first replay missed and end the stream. If it is not done, the
	// subscription predates the terminal write and the runner's finish will
	// close the channel.
	current, more, err := h.tasks.Get(r.Context(), t.ID)
	if err != nil {
		return
	}
	for _, ev := range more {
		if ev.ID <= lastID {
			continue
		}
		writeEvent(w, flusher, *ev)
		lastID = ev.ID
	}
	if current.IsTerminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.C:
			if !open {
				return
			}
			if ev.ID <= lastID {
				continue
			}
			writeEvent(w, flusher, ev)
			lastID = ev.ID
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev models.TaskEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// loadAuthorized parses the task ID, loads the task and its events, and
// enforces read access: guest tasks are world-readable, owned tasks are
// visible to the owner and admins only. Writes the error response itself when
// it returns ok=false.
func (h *TaskHandler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*models.Task, []*models.TaskEvent, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid task ID", nil)
		return nil, nil, false
	}

	t, events, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Task not found", nil)
			return nil, nil, false
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Task lookup failed", nil)
		return nil, nil, false
	}

	if t.OwnerID != nil {
		claims, ok := mw.GetClaims(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing token", nil)
			return nil, nil, false
		}
		if claims.UserID != *t.OwnerID && claims.Role != models.RoleAdmin {
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Not your task", nil)
			return nil, nil, false
		}
	}

	return t, events, true
}
