package storage

import (
	"context"
	"time"

	"github.com/iudanet/infirmary/internal/models"
)

//go:generate moq -out user_mock.go . UserStorage

// UserStorage хранит учетные записи сотрудников для входа в API.
type UserStorage interface {
	// CreateUser сохраняет нового пользователя, ErrUserAlreadyExists если username занят
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername возвращает ErrUserNotFound для неизвестного username
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error
}
