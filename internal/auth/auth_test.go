package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfedhq/devboard/internal/auth"
	"github.com/devfedhq/devboard/pkg/models"
)

func testUser() *models.User {
	return &models.User{
		ID:     uuid.New(),
		Email:  "dev@example.com",
		Role:   models.RoleMember,
		Status: models.UserStatusApproved,
	}
}

func TestToken_Roundtrip(t *testing.T) {
	tm := auth.NewTokenManager("secret", time.Hour)
	user := testUser()

	token, err := tm.CreateToken(user)
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleMember, claims.Role)
	assert.Equal(t, models.UserStatusApproved, claims.Status)
	assert.Equal(t, "dev@example.com", claims.Subject)
}

func TestToken_WrongSecret(t *testing.T) {
	tm := auth.NewTokenManager("secret", time.Hour)
	other := auth.NewTokenManager("different", time.Hour)

	token, err := tm.CreateToken(testUser())
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	tm := auth.NewTokenManager("secret", -time.Minute)

	token, err := tm.CreateToken(testUser())
	require.NoError(t, err)

	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestToken_Garbage(t *testing.T) {
	tm := auth.NewTokenManager("secret", time.Hour)
	_, err := tm.ParseToken("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestToken_Refresh(t *testing.T) {
	tm := auth.NewTokenManager("secret", time.Hour)
	user := testUser()

	token, err := tm.CreateToken(user)
	require.NoError(t, err)

	refreshed, err := tm.RefreshToken(token)
	require.NoError(t, err)

	claims, err := tm.ParseToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestToken_RefreshRejectsExpired(t *testing.T) {
	tm := auth.NewTokenManager("secret", -time.Minute)
	token, err := tm.CreateToken(testUser())
	require.NoError(t, err)

	fresh := auth.NewTokenManager("secret", time.Hour)
	_, err = fresh.RefreshToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestPassword_Roundtrip(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, auth.CheckPassword(hash, "hunter22"))
	assert.False(t, auth.CheckPassword(hash, "hunter23"))
}
