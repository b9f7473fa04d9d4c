package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devfedhq/devboard/internal/api/response"
	"github.com/devfedhq/devboard/internal/cache"
	"github.com/devfedhq/devboard/internal/github"
	"github.com/devfedhq/devboard/pkg/models"
)

const repoCacheTTL = 5 * time.Minute

// RepoHandler proxies repository browsing requests to GitHub, with a short
// Redis cache in front.
type RepoHandler struct {
	repos       github.Client
	cache       cache.Cache
	defaultRepo string
	defaultPath string
}

// NewRepoHandler creates a new RepoHandler.
func NewRepoHandler(repos github.Client, c cache.Cache, defaultRepo, defaultPath string) *RepoHandler {
	return &RepoHandler{repos: repos, cache: c, defaultRepo: defaultRepo, defaultPath: defaultPath}
}

// Tree handles GET /repo/tree.
func (h *RepoHandler) Tree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	repoID := q.Get("repo_id")
	if repoID == "" {
		repoID = h.defaultRepo
	}
	owner, name, ok := splitRepoID(repoID)
	if !ok {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"repo_id must be in owner/name form", nil)
		return
	}

	req := github.TreeRequest{
		Owner:      owner,
		Repo:       name,
		Branch:     q.Get("branch"),
		Recursive:  true,
		PathPrefix: q.Get("path_prefix"),
		Offset:     intParam(q.Get("offset"), 0),
		Limit:      intParam(q.Get("limit"), 500),
	}

	key := cache.RepoTreeKey(repoID, req.Branch, req.PathPrefix, req.Offset, req.Limit)
	var tree models.RepoTree
	if h.cacheGet(r.Context(), key, &tree) {
		response.JSON(w, tree)
		return
	}

	result, err := h.repos.Tree(r.Context(), req)
	if err != nil {
		h.repoError(w, err)
		return
	}

	h.cacheSet(r.Context(), key, result)
	response.JSON(w, result)
}

// File handles GET /repo/file.
func (h *RepoHandler) File(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	repoID := q.Get("repo_id")
	if repoID == "" {
		repoID = h.defaultRepo
	}
	owner, name, ok := splitRepoID(repoID)
	if !ok {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"repo_id must be in owner/name form", nil)
		return
	}

	path := q.Get("path")
	if path == "" {
		path = h.defaultPath
	}

	req := github.FileRequest{
		Owner:  owner,
		Repo:   name,
		Path:   path,
		Branch: q.Get("branch"),
	}

	key := cache.RepoFileKey(repoID, req.Branch, req.Path)
	var file models.RepoFile
	if h.cacheGet(r.Context(), key, &file) {
		response.JSON(w, file)
		return
	}

	result, err := h.repos.FileContent(r.Context(), req)
	if err != nil {
		h.repoError(w, err)
		return
	}

	h.cacheSet(r.Context(), key, result)
	response.JSON(w, result)
}

func (h *RepoHandler) repoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, github.ErrRequest):
		response.Error(w, http.StatusNotFound, "NOT_FOUND",
			"Repository, branch, or path not found", nil)
	case errors.Is(err, github.ErrTimeout):
		response.Error(w, http.StatusGatewayTimeout, "INTERNAL_ERROR",
			"GitHub request timed out", nil)
	default:
		response.Error(w, http.StatusBadGateway, "INTERNAL_ERROR",
			"GitHub request failed", nil)
	}
}

func (h *RepoHandler) cacheGet(ctx context.Context, key string, out any) bool {
	raw, found, err := h.cache.Get(ctx, key)
	if err != nil || !found {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (h *RepoHandler) cacheSet(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, raw, repoCacheTTL); err != nil {
		slog.Warn("repo cache write failed", "key", key, "error", err)
	}
}

func splitRepoID(repoID string) (string, string, bool) {
	owner, name, ok := strings.Cut(repoID, "/")
	if !ok || owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
