package models

import (
	"encoding/json"
	"time"
)

// Resolution выбор стороны при разрешении конфликта
type Resolution string

const (
	// ResolutionLocal принудительно отправить локальную версию на сервер
	ResolutionLocal Resolution = "local"
	// ResolutionServer принять серверную версию и отбросить локальную операцию
	ResolutionServer Resolution = "server"
)

// ParseResolution accepts "local", "client" (alias of local) and "server"
func ParseResolution(s string) (Resolution, bool) {
	switch s {
	case "local", "client":
		return ResolutionLocal, true
	case "server":
		return ResolutionServer, true
	}
	return "", false
}

// Conflict представляет push, цель которого была изменена на сервере
// после постановки локальной операции в очередь.
type Conflict struct {
	DetectedAt      time.Time       `json:"detected_at"`
	ServerUpdatedAt time.Time       `json:"server_updated_at"`
	TempID          string          `json:"temp_id"`
	EntityType      EntityType      `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Kind            OperationKind   `json:"kind"`
	Message         string          `json:"message"`
	LocalData       json.RawMessage `json:"local_data"`
	ServerData      json.RawMessage `json:"server_data"`
	BaseVersion     int64           `json:"base_version"`
	ServerVersion   int64           `json:"server_version"`
	ServerDeleted   bool            `json:"server_deleted"`
	// ServerUnknown сервер отклонил операцию, но не прислал свою версию
	ServerUnknown bool `json:"server_unknown,omitempty"`
}

// ConflictFromOperation builds a conflict record for op using the server's current record.
// server is nil when the server rejected the operation without reporting its copy;
// the conflict is then marked ServerUnknown, not deleted.
func ConflictFromOperation(op *PendingOperation, server *Entity, message string, now time.Time) *Conflict {
	c := &Conflict{
		DetectedAt:  now,
		TempID:      op.TempID,
		EntityType:  op.EntityType,
		EntityID:    op.EntityID,
		Kind:        op.Kind,
		Message:     message,
		LocalData:   op.Payload,
		BaseVersion: op.BaseVersion,
	}
	if server != nil {
		c.ServerData = server.Data
		c.ServerVersion = server.Version
		c.ServerDeleted = server.Deleted
		c.ServerUpdatedAt = server.UpdatedAt
	} else {
		c.ServerUnknown = true
	}
	return c
}

// ServerEntity rebuilds the server record captured when the conflict was detected.
// Returns nil when the server copy was not captured.
func (c *Conflict) ServerEntity() *Entity {
	if c.ServerUnknown || (c.ServerData == nil && c.ServerVersion == 0) {
		return nil
	}
	return &Entity{
		ID:        c.EntityID,
		Type:      c.EntityType,
		Data:      c.ServerData,
		Version:   c.ServerVersion,
		Deleted:   c.ServerDeleted,
		UpdatedAt: c.ServerUpdatedAt,
	}
}
