// Пакет server — HTTP-сервер Knowledge Module с graceful shutdown.
//
// Endpoints базы знаний регистрируются двумя независимыми путями:
// основным /api/v1/knowledge (с валидацией по OpenAPI контракту) и
// резервным /knowledge (напрямую в handlers). Оба пути используют одни
// и те же обработчики, поэтому их поведение идентично, а сбой валидатора
// или контракта не лишает клиентов доступа к базе знаний.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/goknowbase/internal/api/handlers"
	"github.com/bigkaa/goknowbase/internal/api/middleware"
	"github.com/bigkaa/goknowbase/internal/config"
)

// Таймауты HTTP-сервера.
const (
	httpReadTimeout  = 60 * time.Second
	httpWriteTimeout = 60 * time.Second
	httpIdleTimeout  = 120 * time.Second
)

// Handlers — набор обработчиков, регистрируемых сервером.
type Handlers struct {
	Files    *handlers.FilesHandler
	Search   *handlers.SearchHandler
	Taxonomy *handlers.TaxonomyHandler
	Health   *handlers.HealthHandler
}

// Server — HTTP-сервер Knowledge Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth — JWT middleware, validator — валидация по OpenAPI контракту
// (nil отключает её; резервный путь в любом случае работает без неё).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	h Handlers,
	auth *middleware.JWTAuth,
	validator func(http.Handler) http.Handler,
) *Server {
	router := NewRouter(logger, h, auth, validator)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршрутизатор с двойной регистрацией endpoints.
// Выделен из New для тестирования маршрутов без запуска сервера.
func NewRouter(
	logger *slog.Logger,
	h Handlers,
	auth *middleware.JWTAuth,
	validator func(http.Handler) http.Handler,
) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Служебные endpoints без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Основной путь регистрации: /api/v1 с валидацией по контракту
	router.Route("/api/v1", func(r chi.Router) {
		if validator != nil {
			r.Use(validator)
		}
		r.Use(auth.Middleware())
		registerKnowledgeRoutes(r, h)
	})

	// Резервный путь регистрации: те же handlers напрямую, без валидатора
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		registerKnowledgeRoutes(r, h)
	})

	return router
}

// registerKnowledgeRoutes регистрирует endpoints базы знаний.
// Вызывается для обоих путей регистрации с одними и теми же handlers.
func registerKnowledgeRoutes(r chi.Router, h Handlers) {
	read := middleware.RequireScope(middleware.ScopeRead)
	write := middleware.RequireScope(middleware.ScopeWrite)

	r.Route("/knowledge", func(kr chi.Router) {
		kr.With(read).Get("/files", h.Files.List)
		kr.With(write).Post("/files", h.Files.Upload)
		kr.With(write).Post("/files/binary", h.Files.Upload)
		kr.With(write).Post("/files/bulk-delete", h.Files.BulkDelete)
		kr.With(write).Post("/files/bulk-update", h.Files.BulkUpdate)
		kr.With(read).Get("/files/{id}", h.Files.Get)
		kr.With(write).Patch("/files/{id}", h.Files.Update)
		kr.With(write).Delete("/files/{id}", h.Files.Delete)
		kr.With(read).Get("/files/{id}/download", h.Files.Download)
		kr.With(read).Get("/search", h.Search.Search)
		kr.With(read).Get("/categories", h.Taxonomy.Categories)
		kr.With(read).Get("/tags", h.Taxonomy.Tags)
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCertPath, s.cfg.TLSKeyPath)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
