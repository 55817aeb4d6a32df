// Точка входа Knowledge Module — сервис базы знаний.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL
// (с резервным прямым соединением), создаёт сервисный слой, пул
// извлечения текста и topologymetrics, поднимает HTTP-сервер с двойной
// регистрацией endpoints и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goknowbase/internal/api/handlers"
	"github.com/bigkaa/goknowbase/internal/api/middleware"
	"github.com/bigkaa/goknowbase/internal/api/openapi"
	"github.com/bigkaa/goknowbase/internal/config"
	"github.com/bigkaa/goknowbase/internal/database"
	"github.com/bigkaa/goknowbase/internal/extract"
	"github.com/bigkaa/goknowbase/internal/repository"
	"github.com/bigkaa/goknowbase/internal/server"
	"github.com/bigkaa/goknowbase/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Knowledge Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Путь доступа к хранилищу. При включённом fallback сбои пула
	// ретраятся через прямое соединение, минуя pgxpool.
	var db repository.DBTX = pool
	if cfg.DBFallbackDirect {
		dual := database.NewDualPool(pool, cfg.DirectDSN(), logger)
		defer dual.Close(ctx)
		db = dual
		logger.Info("Резервное прямое соединение с PostgreSQL включено")
	}

	// 4.2 Адаптер pgxpool → *sql.DB для topologymetrics.
	// Health check идёт через боевой пул и видит его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repository и пул извлечения текста
	repo := repository.NewKnowledgeRepository(db)
	extractPool := extract.NewPool(cfg.ExtractPoolSize, logger)

	// 6. Services
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	ingestSvc := service.NewIngestService(repo, extractPool, cfg.ExtractTimeout, logger)
	knowledgeSvc := service.NewKnowledgeService(repo, cache, logger)
	searchSvc := service.NewSearchService(repo, cfg.SearchTimeout, cfg.SearchCandidateLimit, logger)

	// 7. Мониторинг зависимостей (topologymetrics)
	dephealthSvc, err := service.NewDephealthService(
		"knowledge-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания dephealth", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Error("Ошибка запуска dephealth", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dephealthSvc.Stop()

	// 8. JWT middleware (JWKS)
	auth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWTJWKSURL,
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		ClientTimeout:   10 * time.Second,
		RefreshInterval: 5 * time.Minute,
		Leeway:          time.Minute,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Валидация по OpenAPI контракту — только на основном пути
	// регистрации. При сбое загрузки контракта сервис продолжает работу
	// без валидатора: резервный путь в любом случае его не использует.
	var validator func(http.Handler) http.Handler
	if doc, loadErr := openapi.Load(ctx); loadErr != nil {
		logger.Warn("OpenAPI контракт не загружен, валидация отключена",
			slog.String("error", loadErr.Error()),
		)
	} else if validator, err = openapi.ValidationMiddleware(doc, logger); err != nil {
		logger.Warn("Валидатор OpenAPI не создан, валидация отключена",
			slog.String("error", err.Error()),
		)
		validator = nil
	}

	// 10. Handlers
	h := server.Handlers{
		Files:    handlers.NewFilesHandler(ingestSvc, knowledgeSvc, logger),
		Search:   handlers.NewSearchHandler(searchSvc, logger),
		Taxonomy: handlers.NewTaxonomyHandler(knowledgeSvc, logger),
		Health:   handlers.NewHealthHandler(database.NewReadinessChecker(pool), dephealthSvc),
	}

	// 11. HTTP-сервер с graceful shutdown
	srv := server.New(cfg, logger, h, auth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
