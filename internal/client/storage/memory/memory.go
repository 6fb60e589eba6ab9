// Package memory содержит реализацию storage.LocalStore в памяти процесса.
// Используется в тестах и для запусков без файла базы.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/infirmary/internal/client/queue"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/internal/validation"
)

var _ storage.LocalStore = (*Store)(nil)
var _ storage.AuthStorage = (*Store)(nil)
var _ storage.ConflictStorage = (*Store)(nil)

// Store хранит записи, очередь и метаданные в map под одним мьютексом:
// каждая операция видна другим только целиком.
type Store struct {
	entities map[models.EntityType]map[string]*models.Entity
	ops      map[string]*models.PendingOperation // ops по TempID
	byEntity map[string]string                   // "type/id" -> TempID
	conflict map[string]*models.Conflict         // конфликты по TempID
	meta     *models.SyncMetadata
	auth     *storage.AuthData
	now      func() time.Time
	seq      uint64
	mu       sync.RWMutex
}

// New создает пустое хранилище
func New() *Store {
	s := &Store{
		entities: make(map[models.EntityType]map[string]*models.Entity),
		ops:      make(map[string]*models.PendingOperation),
		byEntity: make(map[string]string),
		conflict: make(map[string]*models.Conflict),
		meta:     &models.SyncMetadata{},
		now:      time.Now,
	}
	for _, t := range models.EntityTypes {
		s.entities[t] = make(map[string]*models.Entity)
	}
	return s
}

func (s *Store) bucket(entityType models.EntityType) (map[string]*models.Entity, error) {
	b, ok := s.entities[entityType]
	if !ok {
		return nil, models.NewValidationError("type", "unknown entity type %q", entityType)
	}
	return b, nil
}

// GetEntity retrieves a record by type and ID
func (s *Store) GetEntity(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(entityType)
	if err != nil {
		return nil, err
	}
	e, ok := b[id]
	if !ok {
		return nil, storage.ErrEntityNotFound
	}
	return e.Clone(), nil
}

// ListEntities returns records of the type ordered by ID
func (s *Store) ListEntities(ctx context.Context, entityType models.EntityType, filter storage.ListFilter) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(entityType)
	if err != nil {
		return nil, err
	}

	out := []*models.Entity{}
	for _, e := range b {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return filter.Page(out), nil
}

// UpsertEntity stores the record if it is newer than the stored one
func (s *Store) UpsertEntity(ctx context.Context, entity *models.Entity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(entity.Type)
	if err != nil {
		return false, err
	}

	// Существующая версия новее - не обновляем
	if existing, ok := b[entity.ID]; ok && !entity.IsNewerThan(existing) {
		return false, nil
	}

	b[entity.ID] = entity.Clone()
	return true, nil
}

// ReplaceEntity stores a server-canonical record unconditionally
func (s *Store) ReplaceEntity(ctx context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(entity.Type)
	if err != nil {
		return err
	}
	b[entity.ID] = entity.Clone()
	return nil
}

// DeleteEntity removes the record physically
func (s *Store) DeleteEntity(ctx context.Context, entityType models.EntityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(entityType)
	if err != nil {
		return err
	}
	if _, ok := b[id]; !ok {
		return storage.ErrEntityNotFound
	}
	delete(b, id)
	return nil
}

// SaveLocalChange writes the local record and enqueues op atomically
func (s *Store) SaveLocalChange(ctx context.Context, entity *models.Entity, op *models.PendingOperation) (*models.PendingOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(entity.Type)
	if err != nil {
		return nil, err
	}

	result, action, err := s.enqueueLocked(op)
	if err != nil {
		return nil, err
	}

	if action == queue.ActionDrop {
		delete(b, entity.ID)
		return nil, nil
	}
	b[entity.ID] = entity.Clone()
	return result, nil
}

// EnqueueOperation appends op or folds it into the queued operation of the same entity
func (s *Store) EnqueueOperation(ctx context.Context, op *models.PendingOperation) (*models.PendingOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, _, err := s.enqueueLocked(op)
	return result, err
}

func (s *Store) enqueueLocked(op *models.PendingOperation) (*models.PendingOperation, queue.Action, error) {
	if err := validation.ValidateOperation(op); err != nil {
		return nil, queue.ActionKeep, err
	}

	var existing *models.PendingOperation
	if tempID, ok := s.byEntity[op.Key()]; ok {
		existing = s.ops[tempID]
	}

	now := s.now()
	result, action, err := queue.Collapse(existing, op, now)
	if err != nil {
		return nil, action, err
	}

	switch action {
	case queue.ActionAppend:
		result = op.Clone()
		s.seq++
		result.Seq = s.seq
		if result.TempID == "" {
			result.TempID = uuid.NewString()
		}
		if result.CreatedAt.IsZero() {
			result.CreatedAt = now
		}
		result.UpdatedAt = now
		result.Status = models.StatusPending
		s.putLocked(result)
	case queue.ActionReplace:
		s.putLocked(result)
	case queue.ActionDrop:
		s.removeLocked(existing)
		return nil, action, nil
	}

	return result.Clone(), action, nil
}

func (s *Store) putLocked(op *models.PendingOperation) {
	s.ops[op.TempID] = op.Clone()
	s.byEntity[op.Key()] = op.TempID
}

func (s *Store) removeLocked(op *models.PendingOperation) {
	delete(s.ops, op.TempID)
	delete(s.byEntity, op.Key())
}

// DequeueOperation removes the operation after confirmed success
func (s *Store) DequeueOperation(ctx context.Context, tempID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[tempID]
	if !ok {
		return storage.ErrOperationNotFound
	}
	s.removeLocked(op)
	return nil
}

// GetOperation retrieves a queued operation by temp ID
func (s *Store) GetOperation(ctx context.Context, tempID string) (*models.PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[tempID]
	if !ok {
		return nil, storage.ErrOperationNotFound
	}
	return op.Clone(), nil
}

// ListOperations returns all queued operations in Seq order
func (s *Store) ListOperations(ctx context.Context) ([]*models.PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.PendingOperation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, op.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// UpdateOperation rewrites a queued operation in place
func (s *Store) UpdateOperation(ctx context.Context, op *models.PendingOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.ops[op.TempID]
	if !ok {
		return storage.ErrOperationNotFound
	}

	updated := op.Clone()
	updated.Seq = current.Seq
	updated.EntityType = current.EntityType
	updated.EntityID = current.EntityID
	s.ops[op.TempID] = updated
	return nil
}

// PendingForEntity returns the operation queued for the entity
func (s *Store) PendingForEntity(ctx context.Context, entityType models.EntityType, id string) (*models.PendingOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tempID, ok := s.byEntity[models.EntityKey(entityType, id)]
	if !ok {
		return nil, storage.ErrOperationNotFound
	}
	return s.ops[tempID].Clone(), nil
}

// CountPending returns the queue size
func (s *Store) CountPending(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ops), nil
}

// RemapEntityID replaces a temporary entity ID everywhere it is referenced
func (s *Store) RemapEntityID(ctx context.Context, entityType models.EntityType, oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(entityType)
	if err != nil {
		return err
	}

	if e, ok := b[oldID]; ok {
		if _, exists := b[newID]; !exists {
			moved := e.Clone()
			moved.ID = newID
			b[newID] = moved
		}
		delete(b, oldID)
	}

	for _, records := range s.entities {
		for _, e := range records {
			if data, changed := queue.RemapRefs(e.Data, oldID, newID); changed {
				e.Data = data
			}
		}
	}

	now := s.now()
	for _, op := range s.ops {
		if data, changed := queue.RemapRefs(op.Payload, oldID, newID); changed {
			op.Payload = data
			op.Touch(now)
		}
		if op.EntityType == entityType && op.EntityID == oldID {
			delete(s.byEntity, op.Key())
			op.EntityID = newID
			s.byEntity[op.Key()] = op.TempID
		}
	}
	return nil
}

// GetSyncMetadata returns a copy of sync metadata
func (s *Store) GetSyncMetadata(ctx context.Context) (*models.SyncMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneMeta(s.meta), nil
}

// SaveSyncMetadata overwrites sync metadata
func (s *Store) SaveSyncMetadata(ctx context.Context, meta *models.SyncMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = cloneMeta(meta)
	return nil
}

func cloneMeta(m *models.SyncMetadata) *models.SyncMetadata {
	c := *m
	if m.PullCursors != nil {
		c.PullCursors = make(map[models.EntityType]time.Time, len(m.PullCursors))
		for k, v := range m.PullCursors {
			c.PullCursors[k] = v
		}
	}
	return &c
}

// SaveAuth stores authentication data
func (s *Store) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *auth
	s.auth = &a
	return nil
}

// GetAuth retrieves stored authentication data
func (s *Store) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.auth == nil {
		return nil, storage.ErrAuthNotFound
	}
	a := *s.auth
	return &a, nil
}

// DeleteAuth removes stored authentication data
func (s *Store) DeleteAuth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auth == nil {
		return storage.ErrAuthNotFound
	}
	s.auth = nil
	return nil
}

// IsAuthenticated checks if a non-expired token is stored
func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	auth, err := s.GetAuth(ctx)
	if err != nil {
		return false, nil
	}
	return !auth.Expired(s.now()), nil
}

// SaveConflict stores the conflict under its temp ID
func (s *Store) SaveConflict(ctx context.Context, c *models.Conflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.conflict[c.TempID] = &cp
	return nil
}

// DeleteConflict removes the conflict
func (s *Store) DeleteConflict(ctx context.Context, tempID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conflict, tempID)
	return nil
}

// ListConflicts returns all stored conflicts
func (s *Store) ListConflicts(ctx context.Context) ([]*models.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Conflict, 0, len(s.conflict))
	for _, c := range s.conflict {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op kept for parity with the bbolt storage
func (s *Store) Close() error {
	return nil
}
