package models

import "time"

// SyncMetadata процессное состояние синхронизации.
// Создается пустым при первом запуске и только перезаписывается.
type SyncMetadata struct {
	LastSyncDate           time.Time                `json:"last_sync_date"`
	PullCursors            map[EntityType]time.Time `json:"pull_cursors"` // PullCursors максимальный серверный updated_at по типам
	LastError              string                   `json:"last_error"`
	PendingOperationsCount int                      `json:"pending_operations_count"`
	SyncInProgress         bool                     `json:"sync_in_progress"`
}

// Cursor returns the pull watermark for the entity type (zero time if never pulled)
func (m *SyncMetadata) Cursor(entityType EntityType) time.Time {
	if m.PullCursors == nil {
		return time.Time{}
	}
	return m.PullCursors[entityType]
}

// AdvanceCursor moves the pull watermark forward, never backwards
func (m *SyncMetadata) AdvanceCursor(entityType EntityType, t time.Time) {
	if m.PullCursors == nil {
		m.PullCursors = make(map[EntityType]time.Time)
	}
	if t.After(m.PullCursors[entityType]) {
		m.PullCursors[entityType] = t
	}
}
