package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomy_Matching(t *testing.T) {
	server := &Entity{ID: "p-1", Type: EntityPatient, Version: 3}
	conflict := fmt.Errorf("push: %w", &ConflictError{Server: server})

	ce, ok := AsConflict(conflict)
	require.True(t, ok)
	assert.Equal(t, int64(3), ce.Server.Version)
	assert.False(t, IsTransient(conflict))

	transient := fmt.Errorf("push: %w", &TransientError{Err: errors.New("timeout")})
	assert.True(t, IsTransient(transient))
	_, ok = AsConflict(transient)
	assert.False(t, ok)

	assert.True(t, errors.Is(&OfflineError{Op: "sync"}, ErrOffline))
	assert.True(t, IsValidation(NewValidationError("first_name", "is required")))

	inner := errors.New("boom")
	resolution := &ResolutionError{TempID: "t-1", Err: inner}
	assert.ErrorIs(t, resolution, inner)
	assert.Contains(t, resolution.Error(), "t-1")
}

func TestParseResolution(t *testing.T) {
	r, ok := ParseResolution("client")
	require.True(t, ok)
	assert.Equal(t, ResolutionLocal, r)

	r, ok = ParseResolution("server")
	require.True(t, ok)
	assert.Equal(t, ResolutionServer, r)

	_, ok = ParseResolution("merge")
	assert.False(t, ok)
}

func TestConflictFromOperation(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	op := &PendingOperation{
		TempID:      "t-1",
		EntityType:  EntityPatient,
		EntityID:    "p-1",
		Kind:        OpUpdate,
		Payload:     []byte(`{"phone":"1"}`),
		BaseVersion: 2,
	}

	c := ConflictFromOperation(op, &Entity{Data: []byte(`{"phone":"2"}`), Version: 3}, "stale", now)
	assert.Equal(t, "t-1", c.TempID)
	assert.Equal(t, int64(3), c.ServerVersion)
	assert.Equal(t, int64(2), c.BaseVersion)
	assert.False(t, c.ServerDeleted)

	assert.False(t, c.ServerUnknown)

	tombstone := ConflictFromOperation(op, &Entity{ID: "p-1", Type: EntityPatient, Version: 4, Deleted: true}, "gone", now)
	assert.True(t, tombstone.ServerDeleted)
	assert.False(t, tombstone.ServerUnknown)
	require.NotNil(t, tombstone.ServerEntity())
	assert.True(t, tombstone.ServerEntity().Deleted)

	// 409 без тела: версия сервера неизвестна, это не удаление
	unknown := ConflictFromOperation(op, nil, "", now)
	assert.True(t, unknown.ServerUnknown)
	assert.False(t, unknown.ServerDeleted)
	assert.Nil(t, unknown.ServerData)
	assert.Nil(t, unknown.ServerEntity())
}
