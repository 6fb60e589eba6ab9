// Package auth выполняет вход сотрудника и хранит сессию локально,
// чтобы синхронизация работала между запусками клиента.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/infirmary/internal/client/api"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/validation"
	pkgapi "github.com/iudanet/infirmary/pkg/api"
)

// ErrNotAuthenticated returned when no valid session is stored
var ErrNotAuthenticated = errors.New("not authenticated, run login first")

// Service предоставляет функции авторизации
type Service struct {
	apiClient api.ClientAPI
	authStore storage.AuthStorage
	serverURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient api.ClientAPI, authStore storage.AuthStorage, serverURL string, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		authStore: authStore,
		serverURL: serverURL,
		logger:    logger,
		now:       time.Now,
	}
}

// Register регистрирует нового сотрудника. Вход не выполняется.
func (s *Service) Register(ctx context.Context, username, password string) (*pkgapi.RegisterResponse, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	s.logger.Info("User registered", "username", username, "user_id", resp.UserID)
	return resp, nil
}

// Login выполняет аутентификацию и сохраняет токен
func (s *Service) Login(ctx context.Context, username, password string) (*storage.AuthData, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	session := &storage.AuthData{
		Username:    username,
		UserID:      resp.UserID,
		AccessToken: resp.AccessToken,
		ServerURL:   s.serverURL,
	}
	if resp.ExpiresIn > 0 {
		session.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
	}

	if err := s.authStore.SaveAuth(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.apiClient.SetAccessToken(session.AccessToken)

	s.logger.Info("Logged in", "username", username, "user_id", session.UserID)
	return session, nil
}

// Restore загружает сохраненную сессию и передает токен API клиенту
func (s *Service) Restore(ctx context.Context) (*storage.AuthData, error) {
	session, err := s.authStore.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.Expired(s.now()) {
		return nil, fmt.Errorf("session expired: %w", ErrNotAuthenticated)
	}
	if session.ServerURL != "" && s.serverURL != "" && session.ServerURL != s.serverURL {
		return nil, fmt.Errorf("session belongs to %s: %w", session.ServerURL, ErrNotAuthenticated)
	}

	s.apiClient.SetAccessToken(session.AccessToken)
	return session, nil
}

// Logout удаляет локальную сессию. Очередь операций не трогается.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.authStore.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.apiClient.SetAccessToken("")
	return nil
}
