// Package cli реализует команды клиента infirmary поверх сервисов синхронизации.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/infirmary/internal/client/api"
	"github.com/iudanet/infirmary/internal/client/auth"
	"github.com/iudanet/infirmary/internal/client/config"
	"github.com/iudanet/infirmary/internal/client/conflict"
	"github.com/iudanet/infirmary/internal/client/connectivity"
	"github.com/iudanet/infirmary/internal/client/data"
	"github.com/iudanet/infirmary/internal/client/iocli"
	"github.com/iudanet/infirmary/internal/client/push"
	"github.com/iudanet/infirmary/internal/client/queue"
	"github.com/iudanet/infirmary/internal/client/storage"
	"github.com/iudanet/infirmary/internal/client/storage/boltdb"
	"github.com/iudanet/infirmary/internal/client/storage/memory"
	"github.com/iudanet/infirmary/internal/client/sync"
	"github.com/iudanet/infirmary/internal/clock"
)

// Store локальное хранилище со всеми разделами, нужными клиенту
type Store interface {
	storage.LocalStore
	storage.AuthStorage
	storage.ConflictStorage
	Close() error
}

// Options зависимости Cli
type Options struct {
	Config   *config.Config
	Store    Store
	API      api.ClientAPI
	Provider connectivity.Provider // Provider по умолчанию HTTP проба /health через API
	IO       iocli.IO
	Logger   *slog.Logger
}

// Cli связывает сервисы клиента и выполняет команды
type Cli struct {
	io       iocli.IO
	cfg      *config.Config
	store    Store
	auth     *auth.Service
	data     data.Service
	queue    *queue.Queue
	resolver *conflict.Resolver
	engine   *sync.Engine
	monitor  *connectivity.Monitor
	provider connectivity.Provider
	logger   *slog.Logger
}

// New собирает сервисы клиента поверх переданного хранилища и API
func New(ctx context.Context, opts Options) (*Cli, error) {
	cfg := opts.Config
	logger := opts.Logger

	clk := clock.New()
	// часы не должны отставать от уже полученных с сервера меток
	meta, err := opts.Store.GetSyncMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync metadata: %w", err)
	}
	for _, cursor := range meta.PullCursors {
		clk.Observe(cursor)
	}

	q := queue.New(opts.Store, cfg.MaxRetries, logger)
	pusher := push.New(opts.API, opts.Store, clk, logger)

	resolver, err := conflict.New(ctx, pusher, opts.Store, opts.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load conflicts: %w", err)
	}

	provider := opts.Provider
	if provider == nil {
		provider = connectivity.NewHTTPProvider(opts.API, cfg.RequestTimeout)
	}
	monitor := connectivity.NewMonitor(false, logger)

	engine := sync.NewEngine(sync.Options{
		API:          opts.API,
		Store:        opts.Store,
		Queue:        q,
		Pusher:       pusher,
		Conflicts:    resolver,
		Connectivity: monitor,
		Clock:        clk,
		Logger:       logger,
		PageSize:     cfg.PageSize,
	})

	return &Cli{
		io:       opts.IO,
		cfg:      cfg,
		store:    opts.Store,
		auth:     auth.NewService(opts.API, opts.Store, cfg.ServerURL, logger),
		data:     data.NewService(opts.Store, clk, logger),
		queue:    q,
		resolver: resolver,
		engine:   engine,
		monitor:  monitor,
		provider: provider,
		logger:   logger,
	}, nil
}

// OpenStore открывает локальное хранилище из конфигурации: BoltDB файл
// или память процесса при db_path ":memory:"
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.InMemory() {
		return memory.New(), nil
	}
	if err := cfg.EnsureDBDir(); err != nil {
		return nil, err
	}

	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// Open открывает хранилище из конфигурации и создает HTTP клиент сервера
func Open(ctx context.Context, cfg *config.Config, io iocli.IO, logger *slog.Logger) (*Cli, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := New(ctx, Options{
		Config: cfg,
		Store:  store,
		API:    api.NewClient(cfg.ServerURL, cfg.RequestTimeout),
		IO:     io,
		Logger: logger,
	})
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			logger.Error("Failed to close database", "error", cerr)
		}
		return nil, err
	}
	return c, nil
}

// Close закрывает локальное хранилище
func (c *Cli) Close() error {
	return c.store.Close()
}

// goOnline проверяет связь с сервером и восстанавливает сессию.
// Команды, которым нужен сервер, вызывают его перед работой.
func (c *Cli) goOnline(ctx context.Context) error {
	if _, err := c.auth.Restore(ctx); err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			return fmt.Errorf("%w (run 'infirmary login')", err)
		}
		return err
	}

	if !c.monitor.Check(ctx, c.provider) {
		cause := c.monitor.LastError()
		if cause == nil {
			cause = ctx.Err()
		}
		return fmt.Errorf("server %s is unreachable: %w", c.cfg.ServerURL, cause)
	}
	return nil
}
