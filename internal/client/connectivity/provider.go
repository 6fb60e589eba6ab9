package connectivity

import (
	"context"
	"time"
)

// HealthChecker проверяет доступность сервера (реализуется api.ClientAPI)
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HTTPProvider проверяет связь запросом к /api/v1/health
type HTTPProvider struct {
	client  HealthChecker
	timeout time.Duration
}

// NewHTTPProvider creates a provider with a per-probe timeout
func NewHTTPProvider(client HealthChecker, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{client: client, timeout: timeout}
}

// Probe calls the health endpoint
func (p *HTTPProvider) Probe(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.client.Health(ctx)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) error

// Probe calls f
func (f ProviderFunc) Probe(ctx context.Context) error {
	return f(ctx)
}
