package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/imroc/req/v3"

	"github.com/iudanet/infirmary/internal/models"
	"github.com/iudanet/infirmary/pkg/api"
)

const (
	pathHealth   = "/api/v1/health"
	pathRegister = "/api/v1/auth/register"
	pathLogin    = "/api/v1/auth/login"
	pathEntities = "/api/v1/entities/{type}"
	pathEntity   = "/api/v1/entities/{type}/{id}"

	// DefaultTimeout таймаут одного HTTP запроса
	DefaultTimeout = 15 * time.Second
)

var _ ClientAPI = (*Client)(nil)

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	http    *req.Client
	baseURL string
	token   string
	mu      sync.RWMutex
}

// NewClient создает новый API клиент.
// Повторы на уровне транспорта отключены: повторами управляет очередь операций.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: baseURL,
		http: req.C().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetCommonRetryCount(0).
			SetUserAgent("infirmary-client").
			SetCommonErrorResult(&api.ErrorResponse{}),
	}
}

// BaseURL returns the server address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAccessToken задает JWT для последующих запросов
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) request(ctx context.Context) *req.Request {
	r := c.http.R().SetContext(ctx)

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token != "" {
		r.SetBearerAuthToken(token)
	}
	return r
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	var health api.HealthResponse
	resp, err := c.request(ctx).
		SetSuccessResult(&health).
		Get(pathHealth)

	return handleAPIError(resp, err, "health check")
}

// List возвращает записи, измененные после updatedAfter
func (c *Client) List(ctx context.Context, entityType models.EntityType, updatedAfter time.Time, limit int) (*ListPage, error) {
	var out api.ListResponse
	r := c.request(ctx).
		SetPathParam("type", string(entityType)).
		SetSuccessResult(&out)

	if !updatedAfter.IsZero() {
		r.SetQueryParam("updated_after", updatedAfter.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := r.Get(pathEntities)
	if err := handleAPIError(resp, err, "list "+string(entityType)); err != nil {
		return nil, err
	}

	page := &ListPage{
		Entities: make([]*models.Entity, 0, len(out.Entities)),
		HasMore:  out.HasMore,
	}
	for i := range out.Entities {
		page.Entities = append(page.Entities, out.Entities[i].ToModel())
	}
	return page, nil
}

// Get возвращает каноническую запись
func (c *Client) Get(ctx context.Context, entityType models.EntityType, id string) (*models.Entity, error) {
	var out api.Entity
	resp, err := c.request(ctx).
		SetPathParams(map[string]string{"type": string(entityType), "id": id}).
		SetSuccessResult(&out).
		Get(pathEntity)

	if err := handleAPIError(resp, err, "get "+models.EntityKey(entityType, id)); err != nil {
		return nil, err
	}
	return out.ToModel(), nil
}

// Create создает запись
func (c *Client) Create(ctx context.Context, entityType models.EntityType, id string, data json.RawMessage) (*models.Entity, error) {
	var out api.Entity
	resp, err := c.request(ctx).
		SetPathParam("type", string(entityType)).
		SetBody(api.CreateRequest{ID: id, Data: data}).
		SetSuccessResult(&out).
		Post(pathEntities)

	if err := handleAPIError(resp, err, "create "+models.EntityKey(entityType, id)); err != nil {
		return nil, err
	}
	return out.ToModel(), nil
}

// Update изменяет запись с проверкой версии
func (c *Client) Update(ctx context.Context, entityType models.EntityType, id string, data json.RawMessage, baseVersion int64, force bool) (*models.Entity, error) {
	var out api.Entity
	resp, err := c.request(ctx).
		SetPathParams(map[string]string{"type": string(entityType), "id": id}).
		SetBody(api.UpdateRequest{Data: data, BaseVersion: baseVersion, Force: force}).
		SetSuccessResult(&out).
		Put(pathEntity)

	if err := handleAPIError(resp, err, "update "+models.EntityKey(entityType, id)); err != nil {
		return nil, err
	}
	return out.ToModel(), nil
}

// Delete помечает запись удаленной с проверкой версии
func (c *Client) Delete(ctx context.Context, entityType models.EntityType, id string, baseVersion int64, force bool) (*models.Entity, error) {
	var out api.Entity
	resp, err := c.request(ctx).
		SetPathParams(map[string]string{"type": string(entityType), "id": id}).
		SetQueryParam("base_version", strconv.FormatInt(baseVersion, 10)).
		SetQueryParam("force", strconv.FormatBool(force)).
		SetSuccessResult(&out).
		Delete(pathEntity)

	if err := handleAPIError(resp, err, "delete "+models.EntityKey(entityType, id)); err != nil {
		return nil, err
	}
	return out.ToModel(), nil
}

// Register регистрирует нового сотрудника
func (c *Client) Register(ctx context.Context, body api.RegisterRequest) (*api.RegisterResponse, error) {
	var out api.RegisterResponse
	resp, err := c.request(ctx).
		SetBody(body).
		SetSuccessResult(&out).
		Post(pathRegister)

	if err := handleAPIError(resp, err, "register"); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &out, nil
}

// Login выполняет аутентификацию
func (c *Client) Login(ctx context.Context, body api.LoginRequest) (*api.TokenResponse, error) {
	var out api.TokenResponse
	resp, err := c.request(ctx).
		SetBody(body).
		SetSuccessResult(&out).
		Post(pathLogin)

	if err := handleAPIError(resp, err, "login"); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &out, nil
}
