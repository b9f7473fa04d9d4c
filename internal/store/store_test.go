package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/devfedhq/devboard/internal/store"
	"github.com/devfedhq/devboard/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("devboard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func seedUser(t *testing.T, s store.Store, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "bcrypt-hash-here",
		Role:         models.RoleMember,
		Status:       models.UserStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

// --- User Tests ---

func TestUser_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := seedUser(t, s, "alice@example.com")

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, models.RoleMember, got.Role)
	assert.Equal(t, models.UserStatusPending, got.Status)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestUser_DuplicateEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	seedUser(t, s, "bob@example.com")

	err := s.CreateUser(context.Background(), &models.User{
		ID:           uuid.New(),
		Email:        "bob@example.com",
		PasswordHash: "other-hash",
		Role:         models.RoleMember,
		Status:       models.UserStatusPending,
		CreatedAt:    time.Now().UTC(),
	})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUser_UpdateStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := seedUser(t, s, "carol@example.com")

	require.NoError(t, s.UpdateUserStatus(ctx, user.ID, models.UserStatusApproved))
	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusApproved, got.Status)

	err = s.UpdateUserStatus(ctx, uuid.New(), models.UserStatusApproved)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Task Tests ---

func TestTask_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := seedUser(t, s, "dave@example.com")
	ownerID := owner.ID
	task := &models.Task{
		ID:        uuid.New(),
		OwnerID:   &ownerID,
		Kind:      models.TaskKindStructure,
		Status:    models.TaskStatusPending,
		Context:   "analyze this",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskKindStructure, got.Kind)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, ownerID, *got.OwnerID)
	assert.Nil(t, got.Output)

	_, err = s.GetTask(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTask_GuestOwnerIsNull(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	task := newTask(nil)
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OwnerID)
}

func TestTask_StatusLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	task := newTask(nil)
	require.NoError(t, s.CreateTask(ctx, task))

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning))
	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted, store.WithOutput("final output")))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.Output)
	assert.Equal(t, "final output", *got.Output)

	err = s.UpdateTaskStatus(ctx, task.ID, models.TaskStatusRunning)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

// --- Event Tests ---

func TestEvents_AppendAndReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	task := newTask(nil)
	require.NoError(t, s.CreateTask(ctx, task))

	for _, msg := range []string{"started", "working", "done"} {
		ev, err := s.AppendEvent(ctx, task.ID, msg)
		require.NoError(t, err)
		assert.Positive(t, ev.ID)
		assert.Equal(t, task.ID, ev.TaskID)
	}

	events, err := s.ListEvents(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "started", events[0].Message)
	assert.Equal(t, "done", events[2].Message)
	assert.Less(t, events[0].ID, events[1].ID)
	assert.Less(t, events[1].ID, events[2].ID)
}

func TestEvents_EmptyLogIsNotNil(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	task := newTask(nil)
	require.NoError(t, s.CreateTask(ctx, task))

	events, err := s.ListEvents(ctx, task.ID)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

// --- Memory Tests ---

func TestMemories_RecentWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := seedUser(t, s, "erin@example.com")

	base := time.Now().UTC().Add(-time.Hour)
	for i, content := range []string{"oldest", "older", "mid", "newer", "newest"} {
		require.NoError(t, s.CreateMemory(ctx, &models.MemoryEntry{
			UserID:    user.ID,
			Role:      "assistant",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.ListRecentMemories(ctx, user.ID, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest three, returned oldest first.
	assert.Equal(t, "mid", entries[0].Content)
	assert.Equal(t, "newer", entries[1].Content)
	assert.Equal(t, "newest", entries[2].Content)
}

// --- Audit Log Tests ---

func TestAuditLog_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := seedUser(t, s, "frank@example.com")
	uid := user.ID
	require.NoError(t, s.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &uid,
		Action:    "run task brainstorm",
		CreatedAt: time.Now().UTC(),
	}))

	// Guest actions carry no user.
	require.NoError(t, s.CreateAuditLog(ctx, &models.AuditLog{
		Action:    "run task brainstorm",
		CreatedAt: time.Now().UTC(),
	}))
}
