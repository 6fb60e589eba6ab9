package storage

import (
	"context"
	"time"
)

//go:generate moq -out auth_mock.go . AuthStorage

// AuthStorage хранит сессию текущего сотрудника. Очередь и записи
// не привязаны к сессии и переживают выход.
type AuthStorage interface {
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth returns ErrAuthNotFound when nobody is logged in
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth returns ErrAuthNotFound when there is no session
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated reports whether a stored session has not expired yet
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData сессия, полученная при входе
type AuthData struct {
	Username    string `json:"username"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ServerURL   string `json:"server_url"`
	ExpiresAt   int64  `json:"expires_at"` // unix секунды, 0 если сервер не сообщил срок
}

// Expired reports whether the access token is past its expiry at now
func (a *AuthData) Expired(now time.Time) bool {
	return a.ExpiresAt != 0 && now.Unix() >= a.ExpiresAt
}
