package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/internal/server/storage"
)

const (
	entityColumns = `type, id, data, version, deleted, created_at, updated_at`

	// DefaultListLimit размер страницы, если клиент его не задал
	DefaultListLimit = 100
)

// queryer общий интерфейс *sql.DB и *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetEntity returns the record including tombstones
func (s *Storage) GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	return getEntity(ctx, s.db, entityType, id)
}

// ListEntities returns a page of records changed after q.UpdatedAfter
func (s *Storage) ListEntities(ctx context.Context, q storage.ListQuery) ([]*models.Entity, bool, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var after int64
	if !q.UpdatedAfter.IsZero() {
		after = q.UpdatedAfter.UnixNano()
	}

	query := `SELECT ` + entityColumns + ` FROM entities
		WHERE type = ? AND updated_at > ?
		ORDER BY updated_at
		LIMIT ?`

	// Запрашиваем на одну запись больше, чтобы узнать о следующей странице
	rows, err := s.db.QueryContext(ctx, query, string(q.Type), after, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, false, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate entities: %w", err)
	}

	hasMore := len(entities) > limit
	if hasMore {
		entities = entities[:limit]
	}

	return entities, hasMore, nil
}

// CreateEntity stores a new record with version 1
func (s *Storage) CreateEntity(ctx context.Context, m storage.Mutation) (*models.Entity, bool, error) {
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}

	var (
		result  *models.Entity
		created bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := getEntity(ctx, tx, m.Type, id)
		if err == nil {
			// Повтор create после потерянного ответа
			result = existing
			return nil
		}
		if !errors.Is(err, storage.ErrEntityNotFound) {
			return err
		}

		// Метку берем внутри транзакции: записи фиксируются в порядке updated_at
		now := s.clock.Now()
		result = &models.Entity{
			ID:        id,
			Type:      m.Type,
			Data:      m.Data,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true

		_, err = tx.ExecContext(ctx, `INSERT INTO entities
			(type, id, data, version, deleted, created_at, updated_at, updated_by)
			VALUES (?, ?, ?, 1, 0, ?, ?, ?)`,
			string(m.Type), id, string(m.Data), now.UnixNano(), now.UnixNano(), m.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return result, created, nil
}

// UpdateEntity replaces data of an existing record after the version check
func (s *Storage) UpdateEntity(ctx context.Context, m storage.Mutation) (*models.Entity, error) {
	var result *models.Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getEntity(ctx, tx, m.Type, m.ID)
		if err != nil {
			return err
		}

		// Правка удаленной записи без force тоже конфликт: клиент решает, восстанавливать ли ее
		if !m.Force && (current.Version != m.BaseVersion || current.Deleted) {
			return &storage.VersionConflictError{Current: current, BaseVersion: m.BaseVersion}
		}

		current.Data = m.Data
		current.Deleted = false
		result, err = s.bump(ctx, tx, current, m.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteEntity turns the record into a tombstone
func (s *Storage) DeleteEntity(ctx context.Context, m storage.Mutation) (*models.Entity, error) {
	var result *models.Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getEntity(ctx, tx, m.Type, m.ID)
		if err != nil {
			return err
		}

		if current.Deleted {
			result = current
			return nil
		}

		if !m.Force && current.Version != m.BaseVersion {
			return &storage.VersionConflictError{Current: current, BaseVersion: m.BaseVersion}
		}

		current.Deleted = true
		result, err = s.bump(ctx, tx, current, m.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// bump записывает e с новой версией и меткой времени
func (s *Storage) bump(ctx context.Context, tx *sql.Tx, e *models.Entity, userID string) (*models.Entity, error) {
	e.Version++
	e.UpdatedAt = s.clock.Now()

	_, err := tx.ExecContext(ctx, `UPDATE entities
		SET data = ?, version = ?, deleted = ?, updated_at = ?, updated_by = ?
		WHERE type = ? AND id = ?`,
		string(e.Data), e.Version, e.Deleted, e.UpdatedAt.UnixNano(), userID,
		string(e.Type), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}

	return e, nil
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func getEntity(ctx context.Context, q queryer, entityType models.EntityType, id string) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE type = ? AND id = ?`

	e, err := scanEntity(q.QueryRowContext(ctx, query, string(entityType), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, err
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*models.Entity, error) {
	var (
		e         models.Entity
		entityTyp string
		data      string
		created   int64
		updated   int64
	)

	if err := row.Scan(&entityTyp, &e.ID, &data, &e.Version, &e.Deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	e.Type = models.EntityType(entityTyp)
	e.Data = json.RawMessage(data)
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()

	return &e, nil
}
