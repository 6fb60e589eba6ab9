package api

import (
	"encoding/json"
	"time"

	"github.com/iudanet/infirmary/internal/models"
)

// Entity представляет каноническую запись сервера
type Entity struct {
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	Deleted   bool            `json:"deleted"`
}

// ToModel converts the wire record to the client model
func (e *Entity) ToModel() *models.Entity {
	return &models.Entity{
		ID:        e.ID,
		Type:      models.EntityType(e.Type),
		Data:      e.Data,
		Version:   e.Version,
		Deleted:   e.Deleted,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// FromModel converts a model record to its wire form
func FromModel(e *models.Entity) Entity {
	return Entity{
		ID:        e.ID,
		Type:      string(e.Type),
		Data:      e.Data,
		Version:   e.Version,
		Deleted:   e.Deleted,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// ListResponse ответ на GET /api/v1/entities/{type}
type ListResponse struct {
	Entities []Entity `json:"entities"`
	HasMore  bool     `json:"has_more"` // HasMore есть записи после последней в ответе
}

// CreateRequest тело POST /api/v1/entities/{type}.
// ID необязателен: сервер принимает UUID клиента или назначает свой.
type CreateRequest struct {
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

// UpdateRequest тело PUT /api/v1/entities/{type}/{id}
type UpdateRequest struct {
	Data        json.RawMessage `json:"data"`
	BaseVersion int64           `json:"base_version"` // BaseVersion версия, на которой основано изменение
	Force       bool            `json:"force"`        // Force пропустить проверку версии
}

// ConflictResponse ответ 409: версия на сервере отличается от base_version
type ConflictResponse struct {
	Current *Entity `json:"current,omitempty"` // Current текущая запись, nil если записи нет
	Error   string  `json:"error"`
	Message string  `json:"message,omitempty"`
}

// HealthResponse ответ GET /api/v1/health
type HealthResponse struct {
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
}
