package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies a kind of domain record kept in the local store
type EntityType string

// Типы сущностей клиники
const (
	EntityPatient      EntityType = "patient"
	EntityConsultation EntityType = "consultation"
	EntityVaccination  EntityType = "vaccination"
	EntityAppointment  EntityType = "appointment"
	EntityMedication   EntityType = "medication"
	EntitySanitaryRest EntityType = "sanitary_rest"
)

// EntityTypes lists every watched entity type in push priority order.
// Patients go first because the other records reference them.
var EntityTypes = []EntityType{
	EntityPatient,
	EntityConsultation,
	EntityVaccination,
	EntityAppointment,
	EntityMedication,
	EntitySanitaryRest,
}

// Valid reports whether t is a known entity type
func (t EntityType) Valid() bool {
	return t.Priority() >= 0
}

// Priority returns the push order of the type, -1 for unknown types
func (t EntityType) Priority() int {
	for i, et := range EntityTypes {
		if et == t {
			return i
		}
	}
	return -1
}

func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType converts user input (singular or plural) to an EntityType
func ParseEntityType(s string) (EntityType, bool) {
	switch s {
	case "patient", "patients":
		return EntityPatient, true
	case "consultation", "consultations":
		return EntityConsultation, true
	case "vaccination", "vaccinations":
		return EntityVaccination, true
	case "appointment", "appointments":
		return EntityAppointment, true
	case "medication", "medications", "stock":
		return EntityMedication, true
	case "sanitary_rest", "sanitary_rests", "sanitary-rest", "rest":
		return EntitySanitaryRest, true
	}
	return "", false
}

// Entity представляет запись доменной сущности в локальном хранилище.
// Data хранит бизнес-поля в JSON, остальные поля используются синхронизацией.
type Entity struct {
	CreatedAt time.Time       `json:"created_at"` // CreatedAt время создания записи
	UpdatedAt time.Time       `json:"updated_at"` // UpdatedAt время последней записи (монотонно растет)
	ID        string          `json:"id"`         // ID идентификатор (временный до подтверждения сервером)
	Type      EntityType      `json:"type"`       // Type тип сущности
	Data      json.RawMessage `json:"data"`       // Data бизнес-поля
	Version   int64           `json:"version"`    // Version версия на сервере, 0 если сервер запись не видел
	Deleted   bool            `json:"deleted"`    // Deleted флаг soft delete
	// Stale локальная копия содержит отброшенные правки и ждет перечитывания с сервера.
	// Поле не передается по сети.
	Stale bool `json:"stale,omitempty"`
}

// IsNewerThan reports whether e should replace other under last-write-wins.
// UpdatedAt decides; on equal timestamps the higher server version wins.
// A stale copy loses to any fresh record.
func (e *Entity) IsNewerThan(other *Entity) bool {
	if other.Stale != e.Stale {
		return other.Stale
	}
	if e.UpdatedAt.After(other.UpdatedAt) {
		return true
	}
	if e.UpdatedAt.Before(other.UpdatedAt) {
		return false
	}
	return e.Version > other.Version
}

// Clone создает глубокую копию записи
func (e *Entity) Clone() *Entity {
	var data json.RawMessage
	if e.Data != nil {
		data = make(json.RawMessage, len(e.Data))
		copy(data, e.Data)
	}

	return &Entity{
		ID:        e.ID,
		Type:      e.Type,
		Data:      data,
		Version:   e.Version,
		Deleted:   e.Deleted,
		Stale:     e.Stale,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// Key returns the "type/id" key used to index records across types
func (e *Entity) Key() string {
	return EntityKey(e.Type, e.ID)
}

// EntityKey builds the "type/id" key for an entity
func EntityKey(entityType EntityType, id string) string {
	return string(entityType) + "/" + id
}
