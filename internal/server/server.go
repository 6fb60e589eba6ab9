// Package server собирает HTTP API медпункта: маршруты, middleware и хранилище.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iudanet/infirmary/internal/server/config"
	"github.com/iudanet/infirmary/internal/server/handlers"
	"github.com/iudanet/infirmary/internal/server/jwt"
	"github.com/iudanet/infirmary/internal/server/middleware"
	"github.com/iudanet/infirmary/internal/server/storage"
	"github.com/iudanet/infirmary/internal/server/storage/sqlite"
)

const (
	healthPath             = "/api/v1/health"
	defaultShutdownTimeout = 10 * time.Second
)

// Store хранилище, которое обслуживает API
type Store interface {
	storage.UserStorage
	storage.EntityStorage
	handlers.Pinger
}

// Limits лимиты запросов за окно Window
type Limits struct {
	Window time.Duration
	API    int // API лимит на пользователя для /entities
	Auth   int // Auth лимит на IP для register/login
}

// Router HTTP обработчик API с остановкой фоновых горутин
type Router struct {
	http.Handler
	limiters []*middleware.RateLimiter
}

// Stop освобождает rate limiters
func (r *Router) Stop() {
	for _, l := range r.limiters {
		l.Stop()
	}
}

// NewRouter регистрирует маршруты API
func NewRouter(logger *slog.Logger, store Store, tokens *jwt.Service, limits Limits) *Router {
	authLimiter := middleware.NewRateLimiter(limits.Auth, limits.Window)
	apiLimiter := middleware.NewRateLimiter(limits.API, limits.Window)

	health := handlers.NewHealthHandler(logger, store)
	auth := handlers.NewAuthHandler(logger, store, tokens)
	entities := handlers.NewEntityHandler(logger, store)
	fallback := handlers.NewFallback(logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(fallback.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(fallback.MethodNotAllowed)
	r.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger, healthPath),
	)

	r.HandleFunc(healthPath, health.Health).Methods(http.MethodGet)

	authRouter := r.PathPrefix("/api/v1/auth").Subrouter()
	authRouter.Use(middleware.RateLimitMiddleware(authLimiter, logger))
	authRouter.HandleFunc("/register", auth.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", auth.Login).Methods(http.MethodPost)

	// Лимит после аутентификации: считается по пользователю
	api := r.PathPrefix("/api/v1/entities").Subrouter()
	api.Use(
		middleware.AuthMiddleware(logger, tokens),
		middleware.RateLimitMiddleware(apiLimiter, logger),
	)
	api.HandleFunc("/{type}", entities.List).Methods(http.MethodGet)
	api.HandleFunc("/{type}", entities.Create).Methods(http.MethodPost)
	api.HandleFunc("/{type}/{id}", entities.Get).Methods(http.MethodGet)
	api.HandleFunc("/{type}/{id}", entities.Update).Methods(http.MethodPut)
	api.HandleFunc("/{type}/{id}", entities.Delete).Methods(http.MethodDelete)

	return &Router{
		Handler:  r,
		limiters: []*middleware.RateLimiter{authLimiter, apiLimiter},
	}
}

// Server HTTP сервер медпункта
type Server struct {
	logger     *slog.Logger
	store      *sqlite.Storage
	router     *Router
	httpServer *http.Server
	cfg        *config.Config
}

// New открывает базу и собирает сервер
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	tokens := jwt.NewService(cfg.JWTSecret, cfg.AccessTokenTTL)
	router := NewRouter(logger, store, tokens, Limits{
		Window: cfg.RateWindow,
		API:    cfg.RateLimit,
		Auth:   cfg.AuthRateLimit,
	})

	return &Server{
		logger: logger,
		store:  store,
		router: router,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливается
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает запросы на ln до отмены ctx
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errC := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "address", ln.Addr().String())
		errC <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close останавливает фоновые задачи и закрывает базу
func (s *Server) Close() error {
	s.router.Stop()
	return s.store.Close()
}
