package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfedhq/devboard/internal/cache"
	"github.com/devfedhq/devboard/pkg/models"
)

// setupRedis starts an in-process Redis and returns a connected RedisCache.
func setupRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc, mr
}

func TestPing(t *testing.T) {
	rc, _ := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestSetGet_Roundtrip(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "test:key", []byte("hello"), 10*time.Second))

	val, found, err := rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)
}

func TestGet_NotFound(t *testing.T) {
	rc, _ := setupRedis(t)

	val, found, err := rc.Get(context.Background(), "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestDelete(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "test:key", []byte("bye"), time.Minute))
	require.NoError(t, rc.Delete(ctx, "test:key"))

	_, found, err := rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTaskStatus_Roundtrip(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()
	taskID := uuid.New()

	require.NoError(t, rc.SetTaskStatus(ctx, taskID, models.TaskStatusRunning, time.Minute))

	status, found, err := rc.GetTaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.TaskStatusRunning, status)
}

func TestTaskStatus_Expiry(t *testing.T) {
	rc, mr := setupRedis(t)
	ctx := context.Background()
	taskID := uuid.New()

	require.NoError(t, rc.SetTaskStatus(ctx, taskID, models.TaskStatusPending, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found, err := rc.GetTaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIncrWithExpiry_Counts(t *testing.T) {
	rc, _ := setupRedis(t)
	ctx := context.Background()
	key := cache.GuestRateLimitKey("203.0.113.9")

	for want := int64(1); want <= 3; want++ {
		got, err := rc.IncrWithExpiry(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestIncrWithExpiry_WindowResets(t *testing.T) {
	rc, mr := setupRedis(t)
	ctx := context.Background()
	key := cache.GuestRateLimitKey("203.0.113.9")

	_, err := rc.IncrWithExpiry(ctx, key, time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	got, err := rc.IncrWithExpiry(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "counter should reset after the window expires")
}

func TestKeys_Distinct(t *testing.T) {
	assert.NotEqual(t,
		cache.RepoTreeKey("a/b", "main", "", 0, 100),
		cache.RepoTreeKey("a/b", "main", "", 100, 100))
	assert.NotEqual(t,
		cache.RepoFileKey("a/b", "main", "x.go"),
		cache.RepoFileKey("a/b", "main", "y.go"))
	assert.NotEqual(t,
		cache.TaskStatusKey(uuid.New()),
		cache.TaskStatusKey(uuid.New()))
}
