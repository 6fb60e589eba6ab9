package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/client/api"
	"github.com/iudanet/infirmary/internal/client/storage/memory"
	"github.com/iudanet/infirmary/internal/logger"
	"github.com/iudanet/infirmary/internal/models"
	pkgapi "github.com/iudanet/infirmary/pkg/api"
)

func newAPIMock() *api.ClientAPIMock {
	return &api.ClientAPIMock{
		LoginFunc: func(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error) {
			if req.Password != "correct-horse" {
				return nil, api.ErrUnauthorized
			}
			return &pkgapi.TokenResponse{AccessToken: "jwt-token", UserID: "u-1", ExpiresIn: 3600}, nil
		},
		RegisterFunc: func(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.RegisterResponse, error) {
			return &pkgapi.RegisterResponse{UserID: "u-1", Message: "ok"}, nil
		},
		SetAccessTokenFunc: func(token string) {},
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	apiMock := newAPIMock()
	svc := NewService(apiMock, memory.New(), "http://localhost:8080", logger.Discard())

	resp, err := svc.Register(ctx, "nurse.ana", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.UserID)

	_, err = svc.Register(ctx, "x", "correct-horse")
	assert.True(t, models.IsValidation(err))

	_, err = svc.Register(ctx, "nurse.ana", "short")
	assert.True(t, models.IsValidation(err))

	assert.Len(t, apiMock.RegisterCalls(), 1)
}

func TestService_LoginRestoreLogout(t *testing.T) {
	ctx := context.Background()
	apiMock := newAPIMock()
	store := memory.New()
	svc := NewService(apiMock, store, "http://localhost:8080", logger.Discard())

	_, err := svc.Restore(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	session, err := svc.Login(ctx, "nurse.ana", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", session.AccessToken)
	assert.Greater(t, session.ExpiresAt, time.Now().Unix())

	// новый процесс восстанавливает сессию из хранилища
	restored := NewService(apiMock, store, "http://localhost:8080", logger.Discard())
	got, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)

	calls := apiMock.SetAccessTokenCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "jwt-token", calls[1].Token)

	require.NoError(t, svc.Logout(ctx))
	require.NoError(t, svc.Logout(ctx), "logout is idempotent")

	_, err = svc.Restore(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestService_LoginRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(newAPIMock(), store, "", logger.Discard())

	_, err := svc.Login(ctx, "nurse.ana", "wrong-password")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))

	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_RestoreExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(newAPIMock(), store, "", logger.Discard())

	_, err := svc.Login(ctx, "nurse.ana", "correct-horse")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Restore(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestService_RestoreOtherServer(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	_, err := NewService(newAPIMock(), store, "http://a:8080", logger.Discard()).Login(ctx, "nurse.ana", "correct-horse")
	require.NoError(t, err)

	_, err = NewService(newAPIMock(), store, "http://b:8080", logger.Discard()).Restore(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
