package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/devfedhq/devboard/internal/api/middleware"
	"github.com/devfedhq/devboard/internal/api/response"
	"github.com/devfedhq/devboard/internal/auth"
	"github.com/devfedhq/devboard/internal/store"
	"github.com/devfedhq/devboard/pkg/models"
)

// AuthHandler serves signup, login, token refresh, and admin approval.
type AuthHandler struct {
	store  store.Store
	tokens *auth.TokenManager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(st store.Store, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{store: st, tokens: tokens}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /auth/signup. New accounts are pending members until
// an admin approves them.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "A valid email is required", nil)
		return
	}
	if len(req.Password) < 8 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Password must be at least 8 characters", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Signup failed", nil)
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleMember,
		Status:       models.UserStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Email already registered. Please log in.", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Signup failed", nil)
		return
	}

	response.Created(w, map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"role":       user.Role,
		"status":     user.Status,
		"created_at": user.CreatedAt,
		"message":    "Account created! Awaiting admin approval.",
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
		return
	}

	token, err := h.tokens.CreateToken(user)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed", nil)
		return
	}

	uid := user.ID
	_ = h.store.CreateAuditLog(r.Context(), &models.AuditLog{
		UserID:    &uid,
		Action:    "login",
		CreatedAt: time.Now().UTC(),
	})

	message := "Login successful."
	if user.Status == models.UserStatusPending {
		message = "Logged in with demo access, awaiting admin approval."
	}

	response.JSON(w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"role":         user.Role,
		"status":       user.Status,
		"message":      message,
	})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.GetClaims(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing token", nil)
		return
	}

	user, err := h.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Lookup failed", nil)
		return
	}

	response.JSON(w, user)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "token is required", nil)
		return
	}

	token, err := h.tokens.RefreshToken(req.Token)
	if err != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
		return
	}

	response.JSON(w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// Approve handles POST /auth/approve/{userID} (admin only; enforced by
// middleware).
func (h *AuthHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid user ID", nil)
		return
	}

	if err := h.store.UpdateUserStatus(r.Context(), userID, models.UserStatusApproved); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "User not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Approval failed", nil)
		return
	}

	if claims, ok := mw.GetClaims(r); ok {
		adminID := claims.UserID
		_ = h.store.CreateAuditLog(r.Context(), &models.AuditLog{
			UserID:    &adminID,
			Action:    "approved user " + userID.String(),
			CreatedAt: time.Now().UTC(),
		})
	}

	response.JSON(w, map[string]any{
		"id":      userID,
		"message": "User approved",
	})
}
