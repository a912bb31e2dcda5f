// Точка входа Verification Module — модуля верификации документов
// фермерского маркетплейса.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/avinashDevlop/AgriLinkProject/internal/api/handlers"
	"github.com/avinashDevlop/AgriLinkProject/internal/api/middleware"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/contentstore"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/ledger"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/metastore"
	"github.com/avinashDevlop/AgriLinkProject/internal/client/objectstore"
	"github.com/avinashDevlop/AgriLinkProject/internal/config"
	"github.com/avinashDevlop/AgriLinkProject/internal/intake"
	"github.com/avinashDevlop/AgriLinkProject/internal/server"
	"github.com/avinashDevlop/AgriLinkProject/internal/service"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/index"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/journal"
	"github.com/avinashDevlop/AgriLinkProject/internal/storage/profilestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Verification Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// --- Инициализация компонентов ---

	// 1. Приёмник документов (временный каталог)
	in, err := intake.New(cfg.TmpDir, cfg.MaxFileSize)
	if err != nil {
		logger.Error("Ошибка инициализации приёмника", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Аудит-журнал
	jrn, err := journal.New(cfg.JournalDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Journal recovery: помечаем прерванные рестартом загрузки
	interrupted, err := jrn.RecoverInterrupted()
	if err != nil {
		logger.Error("Ошибка восстановления журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(interrupted) > 0 {
		logger.Warn("Обнаружены прерванные загрузки, помечены как failed",
			slog.Int("count", len(interrupted)),
		)
	}

	// 3. Хранилище профилей и in-memory индекс
	pstore, err := profilestore.New(cfg.ProfileDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища профилей", slog.String("error", err.Error()))
		os.Exit(1)
	}

	idx := index.New()
	if err := idx.BuildFromStore(pstore); err != nil {
		logger.Error("Ошибка построения индекса профилей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Индекс профилей построен", slog.Int("count", idx.Count()))

	// Обновляем Prometheus метрики профилей
	updateProfileMetrics(idx)

	// 4. Клиенты внешних систем
	meta := metastore.New(
		cfg.MetastoreURL,
		cfg.MetastoreAuthToken,
		cfg.MetastoreTimeout,
		cfg.CacheSize,
		cfg.CacheTTL,
		logger,
	)
	objects := objectstore.New(cfg.ObjectStoreURL, cfg.ObjectStoreBucket, cfg.UploadTimeout, logger)
	contents := contentstore.New(
		cfg.ContentStoreAPIURL,
		cfg.ContentStoreAPIKey,
		cfg.ContentStoreAPISecret,
		cfg.ContentStoreGatewayURL,
		cfg.UploadTimeout,
		logger,
	)
	ldg := ledger.New(cfg.LedgerURL, cfg.FetchTimeout, logger)
	if !ldg.Enabled() {
		logger.Info("Реестр аттестаций не сконфигурирован, аттестация отключена")
	}

	// 5. Сервисы
	reg := service.NewRegistry()
	uploads := service.NewDualUploadService(reg, jrn, in, objects, contents, cfg.UploadTimeout, logger)
	profiles := service.NewProfileService(pstore, idx, meta, logger)
	verify := service.NewVerifyService(reg, jrn, in, uploads, profiles, contents, ldg, cfg.FetchTimeout, logger)

	// 6. Фоновые процессы
	ctx := context.Background()

	// 6.1 Очистка temp-файлов и журнала
	cleanupSvc := service.NewCleanupService(in, jrn, reg, cfg.TmpTTL, cfg.JournalRetention, cfg.CleanupInterval, logger)
	cleanupSvc.Start(ctx)

	// 6.2 topologymetrics — мониторинг зависимостей
	deps := []service.DephealthDep{
		{Name: "metastore", URL: cfg.MetastoreURL, Critical: true},
		{Name: "object-store", URL: cfg.ObjectStoreURL, Critical: true},
		{Name: "content-gateway", URL: cfg.ContentStoreGatewayURL, Critical: true},
	}
	if cfg.LedgerURL != "" {
		deps = append(deps, service.DephealthDep{Name: "ledger", URL: cfg.LedgerURL, Critical: false})
	}

	dephealthSvc, dephealthErr := service.NewDephealthService(
		cfg.DephealthName,
		cfg.DephealthGroup,
		deps,
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
				slog.Int("deps", len(deps)),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 7. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewDocumentsHandler(verify, cfg.MaxFileSize, logger),
		handlers.NewProfileHandler(profiles, logger),
		handlers.NewHealthHandler(idx, in.TmpDir(), jrn.Dir()),
		logger,
	)

	// 8. Middleware: метрики, логирование запросов, JWT
	middlewares := []func(http.Handler) http.Handler{
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	}

	if cfg.JWKSUrl != "" {
		jwtAuth, jwtErr := middleware.NewJWTAuth(
			cfg.JWKSUrl,
			cfg.JWTIssuer,
			cfg.JWKSTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if jwtErr != nil {
			// JWT недоступен — запускаем без аутентификации (для разработки)
			logger.Warn("JWT JWKS недоступен, запуск без аутентификации",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", jwtErr.Error()),
			)
		} else {
			middlewares = append(middlewares,
				server.JWTAuthWithExclusions(jwtAuth.Middleware(), "/health", "/metrics"),
			)
			logger.Info("JWT аутентификация настроена",
				slog.String("jwks_url", cfg.JWKSUrl),
			)
		}
	} else {
		logger.Warn("VM_JWKS_URL не задан, запуск без аутентификации")
	}

	// 9. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, middlewares...)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	cleanupSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Verification Module остановлен")
}

// updateProfileMetrics обновляет Prometheus метрики профилей из индекса.
func updateProfileMetrics(idx *index.Index) {
	middleware.ProfilesTotal.Set(float64(idx.Count()))
	middleware.ProfilesVerified.Set(float64(idx.CountVerified()))
}
