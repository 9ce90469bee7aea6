// Точка входа Time Manager — сервис учёта рабочего времени.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует Keycloak клиент и верификацию JWT, создаёт сервисный слой
// и API handlers, запускает фоновые задачи (автозакрытие смен,
// topologymetrics), HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/arturkryukov/timemanager/internal/api/handlers"
	"github.com/arturkryukov/timemanager/internal/api/middleware"
	"github.com/arturkryukov/timemanager/internal/auth"
	"github.com/arturkryukov/timemanager/internal/config"
	"github.com/arturkryukov/timemanager/internal/database"
	"github.com/arturkryukov/timemanager/internal/keycloak"
	"github.com/arturkryukov/timemanager/internal/repository"
	"github.com/arturkryukov/timemanager/internal/server"
	"github.com/arturkryukov/timemanager/internal/service"
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
	logger.Info("Time Manager запускается",
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

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. HTTP-клиент для Keycloak с таймаутом TM_IDP_TIMEOUT
	idpHTTPClient := &http.Client{Timeout: cfg.IDPTimeout}

	// 6. Keycloak Admin API клиент
	kcClient := keycloak.New(
		cfg.KeycloakInternalURL,
		cfg.KeycloakRealm,
		cfg.KeycloakAdminUser,
		cfg.KeycloakAdminPassword,
		cfg.KeycloakFrontendClientID,
		idpHTTPClient,
		logger,
	)
	logger.Info("Keycloak клиент создан",
		slog.String("url", cfg.KeycloakInternalURL),
		slog.String("realm", cfg.KeycloakRealm),
	)

	// 7. Repositories
	userRepo := repository.NewUserRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	clockRepo := repository.NewClockRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 8. Верификация JWT: JWKS-кэш + верификатор
	jwksCache := auth.NewJWKSCache(cfg.JWTJWKSURL, idpHTTPClient, logger)
	verifier := auth.NewVerifier(jwksCache, cfg.JWTIssuer, cfg.JWTAudience, 30*time.Second, logger)
	logger.Info("Верификация JWT инициализирована",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 9. Services
	identitySvc := service.NewIdentityService(userRepo, logger)
	usersSvc := service.NewUserService(userRepo, kcClient, logger)
	teamsSvc := service.NewTeamService(teamRepo, userRepo, logger)
	clocksSvc := service.NewClockService(clockRepo, userRepo, logger)
	kpiSvc := service.NewKPIService(clockRepo, userRepo, logger)

	// 10. Readiness checkers (PostgreSQL + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker, kcClient)

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		usersSvc,
		teamsSvc,
		clocksSvc,
		kpiSvc,
		logger,
	)

	// 12. JWT middleware: верификация токена + сверка с локальной БД
	jwtAuth := middleware.NewJWTAuth(verifier, identitySvc, logger)

	// 13. Фоновая задача автозакрытия смен
	autoClockoutSvc := service.NewAutoClockoutService(clockRepo, txRunner, cfg.AutoClockoutAt, logger)
	autoClockoutSvc.Start(ctx)

	// 13.1 topologymetrics — мониторинг зависимостей (PostgreSQL + Keycloak)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"time-manager",
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

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	autoClockoutSvc.Stop()

	logger.Info("Time Manager остановлен")
}
