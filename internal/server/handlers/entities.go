package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/internal/server/jwt"
	"github.com/iudanet/infirmary/internal/server/storage"
	"github.com/iudanet/infirmary/internal/validation"
	"github.com/iudanet/infirmary/pkg/api"
)

// MaxListLimit верхняя граница размера страницы pull
const MaxListLimit = 1000

// EntityHandler обслуживает CRUD записей с проверкой версий
type EntityHandler struct {
	logger  *slog.Logger
	storage storage.EntityStorage
}

// NewEntityHandler создает handler записей
func NewEntityHandler(logger *slog.Logger, entityStorage storage.EntityStorage) *EntityHandler {
	return &EntityHandler{
		logger:  logger,
		storage: entityStorage,
	}
}

// List обрабатывает GET /api/v1/entities/{type}?updated_after=&limit=
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityType, ok := h.entityType(w, r)
	if !ok {
		return
	}

	q := storage.ListQuery{Type: entityType}

	if raw := r.URL.Query().Get("updated_after"); raw != "" {
		after, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			sendError(w, h.logger, "updated_after must be RFC3339 time", http.StatusBadRequest)
			return
		}
		q.UpdatedAfter = after
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			sendError(w, h.logger, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		q.Limit = min(limit, MaxListLimit)
	}

	entities, hasMore, err := h.storage.ListEntities(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list entities", slog.String("type", entityType.String()), slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ListResponse{
		Entities: make([]api.Entity, 0, len(entities)),
		HasMore:  hasMore,
	}
	for _, e := range entities {
		resp.Entities = append(resp.Entities, api.FromModel(e))
	}

	h.logger.DebugContext(ctx, "entities listed",
		slog.String("type", entityType.String()),
		slog.Int("count", len(entities)),
		slog.Bool("has_more", hasMore))

	sendJSON(w, h.logger, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/entities/{type}/{id}.
// Удаленные записи отдаются как надгробия.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityType, ok := h.entityType(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	e, err := h.storage.GetEntity(ctx, entityType, id)
	if err != nil {
		h.storageError(w, r, err, "get")
		return
	}

	sendJSON(w, h.logger, api.FromModel(e), http.StatusOK)
}

// Create обрабатывает POST /api/v1/entities/{type}.
// Повтор с тем же id возвращает уже сохраненную запись со статусом 200.
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityType, ok := h.entityType(w, r)
	if !ok {
		return
	}

	var req api.CreateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode create request", slog.Any("error", err))
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID != "" {
		if _, err := uuid.Parse(req.ID); err != nil {
			sendError(w, h.logger, "id must be a UUID", http.StatusBadRequest)
			return
		}
	}

	if err := validation.ValidatePayload(entityType, req.Data); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	e, created, err := h.storage.CreateEntity(ctx, storage.Mutation{
		Type:   entityType,
		ID:     req.ID,
		UserID: userID(r),
		Data:   req.Data,
	})
	if err != nil {
		h.storageError(w, r, err, "create")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.logger.InfoContext(ctx, "entity created",
			slog.String("type", entityType.String()),
			slog.String("id", e.ID),
			slog.String("user_id", userID(r)))
	}

	sendJSON(w, h.logger, api.FromModel(e), status)
}

// Update обрабатывает PUT /api/v1/entities/{type}/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityType, ok := h.entityType(w, r)
	if !ok {
		return
	}

	var req api.UpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode update request", slog.Any("error", err))
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidatePayload(entityType, req.Data); err != nil {
		sendError(w, h.logger, err.Error(), http.StatusBadRequest)
		return
	}

	e, err := h.storage.UpdateEntity(ctx, storage.Mutation{
		Type:        entityType,
		ID:          mux.Vars(r)["id"],
		UserID:      userID(r),
		Data:        req.Data,
		BaseVersion: req.BaseVersion,
		Force:       req.Force,
	})
	if err != nil {
		h.storageError(w, r, err, "update")
		return
	}

	h.logger.InfoContext(ctx, "entity updated",
		slog.String("type", entityType.String()),
		slog.String("id", e.ID),
		slog.Int64("version", e.Version),
		slog.Bool("force", req.Force))

	sendJSON(w, h.logger, api.FromModel(e), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/entities/{type}/{id}?base_version=&force=
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entityType, ok := h.entityType(w, r)
	if !ok {
		return
	}

	m := storage.Mutation{
		Type:   entityType,
		ID:     mux.Vars(r)["id"],
		UserID: userID(r),
	}

	query := r.URL.Query()
	if raw := query.Get("base_version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			sendError(w, h.logger, "base_version must be a non-negative integer", http.StatusBadRequest)
			return
		}
		m.BaseVersion = v
	}
	if raw := query.Get("force"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			sendError(w, h.logger, "force must be a boolean", http.StatusBadRequest)
			return
		}
		m.Force = force
	}

	e, err := h.storage.DeleteEntity(ctx, m)
	if err != nil {
		h.storageError(w, r, err, "delete")
		return
	}

	h.logger.InfoContext(ctx, "entity deleted",
		slog.String("type", entityType.String()),
		slog.String("id", e.ID),
		slog.Int64("version", e.Version))

	sendJSON(w, h.logger, api.FromModel(e), http.StatusOK)
}

func (h *EntityHandler) entityType(w http.ResponseWriter, r *http.Request) (models.EntityType, bool) {
	entityType := models.EntityType(mux.Vars(r)["type"])
	if !entityType.Valid() {
		sendError(w, h.logger, "unknown entity type "+strconv.Quote(entityType.String()), http.StatusBadRequest)
		return "", false
	}
	return entityType, true
}

// storageError переводит ошибки хранилища в HTTP ответ
func (h *EntityHandler) storageError(w http.ResponseWriter, r *http.Request, err error, op string) {
	ctx := r.Context()

	var conflict *storage.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		h.logger.InfoContext(ctx, "version conflict",
			slog.String("op", op),
			slog.String("type", conflict.Current.Type.String()),
			slog.String("id", conflict.Current.ID),
			slog.Int64("base_version", conflict.BaseVersion),
			slog.Int64("current_version", conflict.Current.Version))

		current := api.FromModel(conflict.Current)
		sendJSON(w, h.logger, api.ConflictResponse{
			Current: &current,
			Error:   http.StatusText(http.StatusConflict),
			Message: err.Error(),
		}, http.StatusConflict)
	case errors.Is(err, storage.ErrEntityNotFound):
		sendError(w, h.logger, "entity not found", http.StatusNotFound)
	default:
		h.logger.ErrorContext(ctx, "entity storage failed", slog.String("op", op), slog.Any("error", err))
		sendError(w, h.logger, "internal server error", http.StatusInternalServerError)
	}
}

// userID возвращает автора запроса из claims auth middleware
func userID(r *http.Request) string {
	if claims, ok := jwt.FromContext(r.Context()); ok {
		return claims.UserID
	}
	return ""
}
