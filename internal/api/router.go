package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/devfedhq/devboard/internal/api/middleware"
	"github.com/devfedhq/devboard/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.GuestRateLimit

	HealthHandler http.HandlerFunc

	SignupHandler  http.HandlerFunc
	LoginHandler   http.HandlerFunc
	MeHandler      http.HandlerFunc
	RefreshHandler http.HandlerFunc
	ApproveHandler http.HandlerFunc

	RepoTreeHandler http.HandlerFunc
	RepoFileHandler http.HandlerFunc

	RunTaskHandler    http.HandlerFunc
	GetTaskHandler    http.HandlerFunc
	StreamTaskHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(deps.Auth.Authenticate)

	// Public health check
	r.Get("/health", orNotImplemented(deps.HealthHandler))

	// Auth
	r.Post("/auth/signup", orNotImplemented(deps.SignupHandler))
	r.Post("/auth/login", orNotImplemented(deps.LoginHandler))
	r.Post("/auth/refresh", orNotImplemented(deps.RefreshHandler))
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireUser)
		r.Get("/auth/me", orNotImplemented(deps.MeHandler))
	})
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAdmin)
		r.Post("/auth/approve/{userID}", orNotImplemented(deps.ApproveHandler))
	})

	// Repository browsing
	r.Get("/repo/tree", orNotImplemented(deps.RepoTreeHandler))
	r.Get("/repo/file", orNotImplemented(deps.RepoFileHandler))

	// Tasks: runs are open to guests under a rate limit; lookups and streams
	// enforce per-task ownership in the handler.
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)
		r.Post("/tasks/run/{kind}", orNotImplemented(deps.RunTaskHandler))
	})
	r.Get("/tasks/{taskID}", orNotImplemented(deps.GetTaskHandler))
	r.Get("/tasks/{taskID}/stream", orNotImplemented(deps.StreamTaskHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
