package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleGuest  = "guest"
	RoleMember = "member"
	RoleAdmin  = "admin"
)

const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
)

// User is a registered account. New signups start as pending members and
// gain full access once an admin approves them.
type User struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	Email        string    `db:"email"         json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role"          json:"role"`
	Status       string    `db:"status"        json:"status"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

// MemoryEntry is one turn of conversational memory kept per user. The task
// runner persists assistant output here and feeds the most recent entries
// back into later completion requests.
type MemoryEntry struct {
	ID        int64     `db:"id"         json:"id"`
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	Role      string    `db:"role"       json:"role"` // "user" or "assistant"
	Content   string    `db:"content"    json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditLog records a user-visible action (login, approval, task run).
// UserID is nil for guest actions.
type AuditLog struct {
	ID        int64      `db:"id"         json:"id"`
	UserID    *uuid.UUID `db:"user_id"    json:"user_id,omitempty"`
	Action    string     `db:"action"     json:"action"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
