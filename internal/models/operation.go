package models

import (
	"encoding/json"
	"time"
)

// OperationKind тип локальной мутации
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// Valid reports whether k is a known operation kind
func (k OperationKind) Valid() bool {
	switch k {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// OperationStatus состояние операции в очереди
type OperationStatus string

const (
	// StatusPending операция ожидает отправки
	StatusPending OperationStatus = "pending"
	// StatusFailed операция исчерпала попытки и требует внимания пользователя
	StatusFailed OperationStatus = "failed"
)

// DefaultMaxRetries is the number of failed pushes after which an operation is marked failed
const DefaultMaxRetries = 5

// PendingOperation представляет локальную мутацию, еще не подтвержденную сервером.
type PendingOperation struct {
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	TempID      string          `json:"temp_id"`      // TempID ключ операции в очереди
	EntityType  EntityType      `json:"entity_type"`  // EntityType тип сущности
	EntityID    string          `json:"entity_id"`    // EntityID идентификатор сущности
	Kind        OperationKind   `json:"kind"`         // Kind create/update/delete
	Status      OperationStatus `json:"status"`       // Status pending/failed
	LastError   string          `json:"last_error"`   // LastError последняя ошибка отправки
	Payload     json.RawMessage `json:"payload"`      // Payload бизнес-поля (для delete может быть пустым)
	BaseVersion int64           `json:"base_version"` // BaseVersion версия сервера, на которой основано изменение
	Seq         uint64          `json:"seq"`          // Seq позиция в FIFO очереди
	RetryCount  int             `json:"retry_count"`  // RetryCount число неудачных попыток
}

// Key returns the "type/id" key of the entity the operation targets
func (op *PendingOperation) Key() string {
	return EntityKey(op.EntityType, op.EntityID)
}

// IsFailed reports whether the operation was taken out of automatic retries
func (op *PendingOperation) IsFailed() bool {
	return op.Status == StatusFailed
}

// Touch marks the operation as changed at now. UpdatedAt strictly grows, so a
// request that was in flight sees the change and is not dequeued.
func (op *PendingOperation) Touch(now time.Time) {
	if !now.After(op.UpdatedAt) {
		now = op.UpdatedAt.Add(time.Nanosecond)
	}
	op.UpdatedAt = now
}

// Clone создает глубокую копию операции
func (op *PendingOperation) Clone() *PendingOperation {
	c := *op
	if op.Payload != nil {
		c.Payload = make(json.RawMessage, len(op.Payload))
		copy(c.Payload, op.Payload)
	}
	return &c
}
