package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/internal/server/storage"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	// Используем in-memory database для тестов
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func newTestUser(username string) *models.User {
	return &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: "$2a$10$hash",
		CreatedAt:    time.Now(),
	}
}

func TestUserStorage_CreateUser(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	tests := []struct {
		user *models.User
		name string
	}{
		{
			name: "create new user successfully",
			user: newTestUser("nurse1"),
		},
		{
			name: "create user with last login",
			user: func() *models.User {
				u := newTestUser("nurse2")
				u.LastLogin = timePtr(time.Now())
				return u
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.CreateUser(ctx, tt.user))

			retrieved, err := s.GetUserByUsername(ctx, tt.user.Username)
			require.NoError(t, err)
			assert.Equal(t, tt.user.Username, retrieved.Username)
			assert.Equal(t, tt.user.PasswordHash, retrieved.PasswordHash)
			assert.Equal(t, tt.user.LastLogin != nil, retrieved.LastLogin != nil)
		})
	}
}

func TestUserStorage_CreateUser_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.CreateUser(ctx, newTestUser("duplicate")))

	err := s.CreateUser(ctx, newTestUser("duplicate"))
	assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
}

func TestUserStorage_GetUser(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	user := newTestUser("findme")
	require.NoError(t, s.CreateUser(ctx, user))

	tests := []struct {
		wantError error
		get       func() (*models.User, error)
		name      string
	}{
		{
			name: "by username",
			get:  func() (*models.User, error) { return s.GetUserByUsername(ctx, "findme") },
		},
		{
			name:      "unknown username",
			get:       func() (*models.User, error) { return s.GetUserByUsername(ctx, "notfound") },
			wantError: storage.ErrUserNotFound,
		},
		{
			name:      "username is case sensitive",
			get:       func() (*models.User, error) { return s.GetUserByUsername(ctx, "FindMe") },
			wantError: storage.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieved, err := tt.get()
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, retrieved)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, retrieved.ID)
			assert.Equal(t, user.Username, retrieved.Username)
			assert.Nil(t, retrieved.LastLogin)
			assert.WithinDuration(t, user.CreatedAt, retrieved.CreatedAt, time.Second)
		})
	}
}

func TestUserStorage_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	user := newTestUser("logintest")
	require.NoError(t, s.CreateUser(ctx, user))

	tests := []struct {
		loginTime time.Time
		wantError error
		name      string
		userID    string
	}{
		{
			name:      "update last login for existing user",
			userID:    user.ID,
			loginTime: time.Now(),
		},
		{
			name:      "update last login for non-existent user",
			userID:    "nonexistent",
			loginTime: time.Now(),
			wantError: storage.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateLastLogin(ctx, tt.userID, tt.loginTime)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			retrieved, err := s.GetUserByUsername(ctx, user.Username)
			require.NoError(t, err)
			require.NotNil(t, retrieved.LastLogin)
			assert.WithinDuration(t, tt.loginTime, *retrieved.LastLogin, time.Second)
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
