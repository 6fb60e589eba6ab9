package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/infirmary/internal/clock"
	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/internal/server/storage"
)

func createPatient(t *testing.T, s *Storage, id, name string) *models.Entity {
	t.Helper()

	e, created, err := s.CreateEntity(context.Background(), storage.Mutation{
		Type:   models.EntityPatient,
		ID:     id,
		UserID: "user-1",
		Data:   json.RawMessage(`{"first_name":"` + name + `","last_name":"Doe"}`),
	})
	require.NoError(t, err)
	require.True(t, created)
	return e
}

func TestEntityStorage_Create(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	e := createPatient(t, s, "p-1", "Ann")
	assert.Equal(t, int64(1), e.Version)
	assert.False(t, e.Deleted)
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	stored, err := s.GetEntity(ctx, models.EntityPatient, "p-1")
	require.NoError(t, err)
	assert.Equal(t, e.UpdatedAt, stored.UpdatedAt)
	assert.JSONEq(t, string(e.Data), string(stored.Data))

	t.Run("replay returns stored record", func(t *testing.T) {
		replay, created, err := s.CreateEntity(ctx, storage.Mutation{
			Type: models.EntityPatient,
			ID:   "p-1",
			Data: json.RawMessage(`{"first_name":"Ann","last_name":"Doe"}`),
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(1), replay.Version)
		assert.Equal(t, e.UpdatedAt, replay.UpdatedAt)
	})

	t.Run("server assigns id", func(t *testing.T) {
		e, created, err := s.CreateEntity(ctx, storage.Mutation{
			Type: models.EntityMedication,
			Data: json.RawMessage(`{"name":"Aspirin","quantity":3,"min_stock":5}`),
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, e.ID)
	})

	t.Run("same id in another type", func(t *testing.T) {
		_, created, err := s.CreateEntity(ctx, storage.Mutation{
			Type: models.EntityConsultation,
			ID:   "p-1",
			Data: json.RawMessage(`{}`),
		})
		require.NoError(t, err)
		assert.True(t, created)
	})
}

func TestEntityStorage_Get_NotFound(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.GetEntity(context.Background(), models.EntityPatient, "missing")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestEntityStorage_Update(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		wantError   error
		name        string
		id          string
		baseVersion int64
		force       bool
		wantVersion int64
	}{
		{
			name:        "matching base version",
			id:          "p-1",
			baseVersion: 1,
			wantVersion: 2,
		},
		{
			name:        "stale base version",
			id:          "p-1",
			baseVersion: 7,
			wantError:   storage.ErrVersionMismatch,
		},
		{
			name:        "force ignores version",
			id:          "p-1",
			baseVersion: 7,
			force:       true,
			wantVersion: 2,
		},
		{
			name:        "unknown record",
			id:          "missing",
			baseVersion: 1,
			wantError:   storage.ErrEntityNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStorage(t)
			original := createPatient(t, s, "p-1", "Ann")

			updated, err := s.UpdateEntity(ctx, storage.Mutation{
				Type:        models.EntityPatient,
				ID:          tt.id,
				UserID:      "user-2",
				Data:        json.RawMessage(`{"first_name":"Anna","last_name":"Doe"}`),
				BaseVersion: tt.baseVersion,
				Force:       tt.force,
			})
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)

				stored, getErr := s.GetEntity(ctx, models.EntityPatient, "p-1")
				require.NoError(t, getErr)
				assert.Equal(t, int64(1), stored.Version)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, updated.Version)
			assert.True(t, updated.UpdatedAt.After(original.UpdatedAt))
			assert.Equal(t, original.CreatedAt, updated.CreatedAt)

			stored, err := s.GetEntity(ctx, models.EntityPatient, "p-1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"first_name":"Anna","last_name":"Doe"}`, string(stored.Data))
		})
	}
}

func TestEntityStorage_UpdateConflictCarriesCurrent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	createPatient(t, s, "p-1", "Ann")

	_, err := s.UpdateEntity(ctx, storage.Mutation{
		Type:        models.EntityPatient,
		ID:          "p-1",
		Data:        json.RawMessage(`{"first_name":"B","last_name":"Doe"}`),
		BaseVersion: 1,
	})
	require.NoError(t, err)

	_, err = s.UpdateEntity(ctx, storage.Mutation{
		Type:        models.EntityPatient,
		ID:          "p-1",
		Data:        json.RawMessage(`{"first_name":"C","last_name":"Doe"}`),
		BaseVersion: 1,
	})

	var conflict *storage.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.Current.Version)
	assert.Equal(t, int64(1), conflict.BaseVersion)
	assert.JSONEq(t, `{"first_name":"B","last_name":"Doe"}`, string(conflict.Current.Data))
}

func TestEntityStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)
	createPatient(t, s, "p-1", "Ann")

	_, err := s.DeleteEntity(ctx, storage.Mutation{Type: models.EntityPatient, ID: "p-1", BaseVersion: 5})
	require.ErrorIs(t, err, storage.ErrVersionMismatch)

	tomb, err := s.DeleteEntity(ctx, storage.Mutation{Type: models.EntityPatient, ID: "p-1", BaseVersion: 1})
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
	assert.Equal(t, int64(2), tomb.Version)

	// Повторное удаление ничего не меняет
	again, err := s.DeleteEntity(ctx, storage.Mutation{Type: models.EntityPatient, ID: "p-1", BaseVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, tomb.Version, again.Version)
	assert.Equal(t, tomb.UpdatedAt, again.UpdatedAt)

	// Правка надгробия без force конфликтует, с force восстанавливает запись
	_, err = s.UpdateEntity(ctx, storage.Mutation{
		Type: models.EntityPatient, ID: "p-1", BaseVersion: 2,
		Data: json.RawMessage(`{"first_name":"Ann","last_name":"Doe"}`),
	})
	require.ErrorIs(t, err, storage.ErrVersionMismatch)

	restored, err := s.UpdateEntity(ctx, storage.Mutation{
		Type: models.EntityPatient, ID: "p-1", Force: true,
		Data: json.RawMessage(`{"first_name":"Ann","last_name":"Doe"}`),
	})
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	assert.Equal(t, int64(3), restored.Version)

	_, err = s.DeleteEntity(ctx, storage.Mutation{Type: models.EntityPatient, ID: "missing"})
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestEntityStorage_ListPages(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		createPatient(t, s, id, id)
	}
	createPatient(t, s, "x", "x")
	_, err := s.DeleteEntity(ctx, storage.Mutation{Type: models.EntityPatient, ID: "x", BaseVersion: 1})
	require.NoError(t, err)
	_, _, err = s.CreateEntity(ctx, storage.Mutation{Type: models.EntityMedication, ID: "m", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)

	var (
		cursor time.Time
		ids    []string
		pages  int
	)
	for {
		page, hasMore, err := s.ListEntities(ctx, storage.ListQuery{
			Type:         models.EntityPatient,
			UpdatedAfter: cursor,
			Limit:        2,
		})
		require.NoError(t, err)
		pages++
		for _, e := range page {
			require.True(t, e.UpdatedAt.After(cursor))
			cursor = e.UpdatedAt
			ids = append(ids, e.ID)
		}
		if !hasMore {
			break
		}
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "x"}, ids)
	assert.Equal(t, 3, pages)

	// Надгробия отдаются, чтобы клиенты удалили запись у себя
	page, hasMore, err := s.ListEntities(ctx, storage.ListQuery{Type: models.EntityPatient, UpdatedAfter: cursor.Add(-time.Nanosecond)})
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page, 1)
	assert.True(t, page[0].Deleted)
}

func TestStorage_ClockSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "server.db")

	// Часы, отстающие от уже записанных меток
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	s, err := New(ctx, path)
	require.NoError(t, err)
	first := createPatient(t, s, "p-1", "Ann")
	require.NoError(t, s.Close())

	s, err = NewWithClock(ctx, path, clock.NewWithSource("test", func() time.Time { return past }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	second := createPatient(t, s, "p-2", "Bob")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}
