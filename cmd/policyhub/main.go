// Точка входа PolicyHub — сервис управления жизненным циклом политик.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт репозитории и сервисный слой, инициализирует JWT middleware,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/policyhub/internal/api/handlers"
	"github.com/bigkaa/policyhub/internal/api/middleware"
	"github.com/bigkaa/policyhub/internal/config"
	"github.com/bigkaa/policyhub/internal/database"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
	"github.com/bigkaa/policyhub/internal/numbering"
	"github.com/bigkaa/policyhub/internal/repository"
	"github.com/bigkaa/policyhub/internal/server"
	"github.com/bigkaa/policyhub/internal/service"
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
	logger.Info("PolicyHub запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("PH_DEPHEALTH_GROUP") == "" {
		logger.Warn("PH_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

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

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	policyRepo := repository.NewPolicyRepository(pool)
	revisionRepo := repository.NewRevisionRepository(pool)
	roleRepo := repository.NewRoleOverrideRepository(pool)
	txManager := repository.NewTxManager(pool)

	// 6. Генератор номеров политик (SQL-функции + retry с экспоненциальным backoff)
	numberGen := numbering.NewPGGenerator(pool, numbering.Config{
		MaxAttempts:  cfg.NumberingMaxAttempts,
		InitialDelay: cfg.NumberingInitialDelay,
	}, logger)

	// 7. Кэш политик (LRU с TTL)
	policyCache := service.NewPolicyCache(cfg.CacheSize, cfg.CacheTTL)

	// 8. Services
	policySvc := service.NewPolicyService(policyRepo, revisionRepo, numberGen, policyCache, logger)
	lifecycleSvc := service.NewLifecycleService(policyRepo, txManager, policyCache, logger)
	revisionSvc := service.NewRevisionService(policyRepo, revisionRepo, logger)
	roleOverrideSvc := service.NewRoleOverrideService(roleRepo, logger)

	// 9. Readiness checkers (PostgreSQL + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.KeycloakCACert, cfg.KeycloakReadinessTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		policySvc,
		lifecycleSvc,
		revisionSvc,
		roleOverrideSvc,
		logger,
	)

	// 11. JWT middleware
	// Адаптер RoleOverrideRepository → middleware.RoleOverrideProvider
	roleProvider := &roleOverrideAdapter{repo: roleRepo}

	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.KeycloakCACert,
		cfg.JWTIssuer,
		roleProvider,
		rbac.GroupMapping{
			SuperAdminGroups: cfg.RoleSuperAdminGroups,
			PublishGroups:    cfg.RolePublishGroups,
			EditGroups:       cfg.RoleEditGroups,
			ReadOnlyGroups:   cfg.RoleReadOnlyGroups,
		},
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + Keycloak)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"policyhub",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("PolicyHub остановлен")
}

// --- Вспомогательные типы ---

// roleOverrideAdapter — адаптер RoleOverrideRepository → middleware.RoleOverrideProvider.
// Преобразует *model.RoleOverride в *string (additional_role).
type roleOverrideAdapter struct {
	repo repository.RoleOverrideRepository
}

// GetRoleOverride возвращает дополнительную роль для пользователя.
// Если override не найден — возвращает nil, nil.
func (a *roleOverrideAdapter) GetRoleOverride(ctx context.Context, keycloakUserID string) (*string, error) {
	ro, err := a.repo.GetByKeycloakUserID(ctx, keycloakUserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if ro == nil {
		return nil, nil
	}
	return &ro.AdditionalRole, nil
}
