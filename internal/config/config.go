// Пакет config — загрузка и валидация конфигурации Verification Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Verification Module.
type Config struct {
	// Порт HTTP-сервера (диапазон 8020-8029)
	Port int
	// Путь к временному каталогу приёма документов
	TmpDir string
	// Путь к директории аудит-журнала
	JournalDir string
	// Путь к директории локальных копий профилей
	ProfileDir string
	// Максимальный размер документа в байтах
	MaxFileSize int64
	// TTL локальных копий документов во временном каталоге
	TmpTTL time.Duration
	// Интервал фоновой очистки temp-файлов и журнала
	CleanupInterval time.Duration
	// Срок хранения завершённых записей журнала
	JournalRetention time.Duration

	// Базовый URL метахранилища (realtime KV база)
	MetastoreURL string
	// Токен доступа метахранилища (опционально)
	MetastoreAuthToken string
	// Таймаут запросов к метахранилищу
	MetastoreTimeout time.Duration
	// Размер read-through кэша узлов метахранилища
	CacheSize int
	// TTL записей кэша метахранилища
	CacheTTL time.Duration

	// Базовый URL REST API объектного хранилища
	ObjectStoreURL string
	// Имя бакета объектного хранилища
	ObjectStoreBucket string

	// Базовый URL pinning API контент-хранилища
	ContentStoreAPIURL string
	// Ключ pinning API
	ContentStoreAPIKey string
	// Секрет pinning API
	ContentStoreAPISecret string
	// Базовый URL gateway контент-хранилища
	ContentStoreGatewayURL string

	// Базовый URL реестра аттестаций (пусто — реестр отключён)
	LedgerURL string

	// Таймаут загрузки документа во внешнее хранилище
	UploadTimeout time.Duration
	// Таймаут скачивания удалённой копии при верификации
	FetchTimeout time.Duration

	// URL JWKS endpoint провайдера сессий (пусто — запуск без авторизации)
	JWKSUrl string
	// Ожидаемый issuer JWT (пусто — без проверки issuer)
	JWTIssuer string
	// Допустимый сдвиг часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Таймаут HTTP-запросов к JWKS endpoint
	JWKSTimeout time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя владельца пода для метки name в topologymetrics
	DephealthName string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// VM_PORT — порт HTTP-сервера (по умолчанию 8020)
	port, err := getEnvInt("VM_PORT", 8020)
	if err != nil {
		return nil, fmt.Errorf("VM_PORT: %w", err)
	}
	if port < 8020 || port > 8029 {
		return nil, fmt.Errorf("VM_PORT: значение %d вне допустимого диапазона 8020-8029", port)
	}
	cfg.Port = port

	// VM_TMP_DIR — обязательный
	cfg.TmpDir, err = getEnvRequired("VM_TMP_DIR")
	if err != nil {
		return nil, err
	}

	// VM_JOURNAL_DIR — обязательный
	cfg.JournalDir, err = getEnvRequired("VM_JOURNAL_DIR")
	if err != nil {
		return nil, err
	}

	// VM_PROFILE_DIR — обязательный
	cfg.ProfileDir, err = getEnvRequired("VM_PROFILE_DIR")
	if err != nil {
		return nil, err
	}

	// VM_MAX_FILE_SIZE — максимальный размер документа (по умолчанию 25 MB)
	maxFileSize, err := getEnvInt64("VM_MAX_FILE_SIZE", 25*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("VM_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("VM_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// VM_TMP_TTL — TTL локальных копий документов (по умолчанию 24h)
	cfg.TmpTTL, err = getEnvDuration("VM_TMP_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VM_TMP_TTL: %w", err)
	}

	// VM_CLEANUP_INTERVAL — интервал фоновой очистки (по умолчанию 1h)
	cfg.CleanupInterval, err = getEnvDuration("VM_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VM_CLEANUP_INTERVAL: %w", err)
	}

	// VM_JOURNAL_RETENTION — срок хранения завершённых записей (по умолчанию 720h)
	cfg.JournalRetention, err = getEnvDuration("VM_JOURNAL_RETENTION", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VM_JOURNAL_RETENTION: %w", err)
	}

	// VM_METASTORE_URL — обязательный
	cfg.MetastoreURL, err = getEnvRequired("VM_METASTORE_URL")
	if err != nil {
		return nil, err
	}

	// VM_METASTORE_AUTH_TOKEN — токен доступа (опционально)
	cfg.MetastoreAuthToken = getEnvDefault("VM_METASTORE_AUTH_TOKEN", "")

	// VM_METASTORE_TIMEOUT — таймаут запросов (по умолчанию 10s)
	cfg.MetastoreTimeout, err = getEnvDuration("VM_METASTORE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_METASTORE_TIMEOUT: %w", err)
	}

	// VM_CACHE_SIZE — размер кэша узлов (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("VM_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("VM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("VM_CACHE_SIZE: значение должно быть положительным")
	}

	// VM_CACHE_TTL — TTL записей кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("VM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_CACHE_TTL: %w", err)
	}

	// VM_OBJECT_STORE_URL — обязательный
	cfg.ObjectStoreURL, err = getEnvRequired("VM_OBJECT_STORE_URL")
	if err != nil {
		return nil, err
	}

	// VM_OBJECT_STORE_BUCKET — обязательный
	cfg.ObjectStoreBucket, err = getEnvRequired("VM_OBJECT_STORE_BUCKET")
	if err != nil {
		return nil, err
	}

	// VM_CONTENT_STORE_API_URL — обязательный
	cfg.ContentStoreAPIURL, err = getEnvRequired("VM_CONTENT_STORE_API_URL")
	if err != nil {
		return nil, err
	}

	// VM_CONTENT_STORE_API_KEY — обязательный
	cfg.ContentStoreAPIKey, err = getEnvRequired("VM_CONTENT_STORE_API_KEY")
	if err != nil {
		return nil, err
	}

	// VM_CONTENT_STORE_API_SECRET — обязательный
	cfg.ContentStoreAPISecret, err = getEnvRequired("VM_CONTENT_STORE_API_SECRET")
	if err != nil {
		return nil, err
	}

	// VM_CONTENT_STORE_GATEWAY_URL — обязательный
	cfg.ContentStoreGatewayURL, err = getEnvRequired("VM_CONTENT_STORE_GATEWAY_URL")
	if err != nil {
		return nil, err
	}

	// VM_LEDGER_URL — реестр аттестаций (опционально; пусто — отключён)
	cfg.LedgerURL = getEnvDefault("VM_LEDGER_URL", "")

	// VM_UPLOAD_TIMEOUT — таймаут загрузки (по умолчанию 2m)
	cfg.UploadTimeout, err = getEnvDuration("VM_UPLOAD_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_UPLOAD_TIMEOUT: %w", err)
	}

	// VM_FETCH_TIMEOUT — таймаут скачивания при верификации (по умолчанию 1m)
	cfg.FetchTimeout, err = getEnvDuration("VM_FETCH_TIMEOUT", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_FETCH_TIMEOUT: %w", err)
	}

	// VM_JWKS_URL — JWKS endpoint провайдера сессий (опционально)
	cfg.JWKSUrl = getEnvDefault("VM_JWKS_URL", "")

	// VM_JWT_ISSUER — ожидаемый issuer JWT (опционально)
	cfg.JWTIssuer = getEnvDefault("VM_JWT_ISSUER", "")

	// VM_JWT_LEEWAY — допустимый сдвиг часов (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("VM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_JWT_LEEWAY: %w", err)
	}

	// VM_JWKS_TIMEOUT — таймаут запросов к JWKS endpoint (по умолчанию 10s)
	cfg.JWKSTimeout, err = getEnvDuration("VM_JWKS_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_JWKS_TIMEOUT: %w", err)
	}

	// VM_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("VM_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("VM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// VM_TLS_CERT / VM_TLS_KEY — TLS (опционально, но парой)
	cfg.TLSCert = getEnvDefault("VM_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("VM_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("VM_TLS_CERT и VM_TLS_KEY должны быть заданы вместе")
	}

	// VM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("VM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("VM_LOG_LEVEL: %w", err)
	}

	// VM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("VM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("VM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// VM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("VM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// VM_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "verification-module")
	cfg.DephealthGroup = getEnvDefault("VM_DEPHEALTH_GROUP", "verification-module")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// VM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("VM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
