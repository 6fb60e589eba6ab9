package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/pkg/api"
)

//go:generate moq -out client_mock.go . ClientAPI

// ClientAPI определяет интерфейс удаленного API медпункта
type ClientAPI interface {
	// Health проверяет доступность сервера
	Health(ctx context.Context) error

	// List возвращает записи типа, измененные строго после updatedAfter, по возрастанию updated_at
	List(ctx context.Context, entityType models.EntityType, updatedAfter time.Time, limit int) (*ListPage, error)

	// Get возвращает каноническую запись
	Get(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error)

	// Create создает запись; сервер может назначить другой ID
	Create(ctx context.Context, entityType models.EntityType, id string, data json.RawMessage) (*models.Entity, error)

	// Update изменяет запись, если версия на сервере равна baseVersion (или force)
	Update(ctx context.Context, entityType models.EntityType, id string, data json.RawMessage, baseVersion int64, force bool) (*models.Entity, error)

	// Delete помечает запись удаленной, если версия на сервере равна baseVersion (или force)
	Delete(ctx context.Context, entityType models.EntityType, id string, baseVersion int64, force bool) (*models.Entity, error)

	// Register регистрирует нового сотрудника
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)

	// Login выполняет аутентификацию
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)

	// SetAccessToken задает JWT для последующих запросов
	SetAccessToken(token string)
}

// ListPage страница записей, полученных при pull
type ListPage struct {
	Entities []*models.Entity
	HasMore  bool
}
