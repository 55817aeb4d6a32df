// Пакет config — загрузка и валидация конфигурации Knowledge Module
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

// Config содержит все параметры конфигурации Knowledge Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Путь к TLS-сертификату (опционально, вместе с TLSKeyPath включает HTTPS)
	TLSCertPath string
	// Путь к приватному ключу TLS (опционально)
	TLSKeyPath string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений
	DBPoolMax int
	// Резервное прямое подключение при сбоях пула
	DBFallbackDirect bool

	// --- JWT ---

	// URL JWKS endpoint для проверки подписей JWT
	JWTJWKSURL string
	// Ожидаемый issuer JWT (опционально, пустой = не проверяется)
	JWTIssuer string
	// Ожидаемая audience JWT (опционально, пустая = не проверяется)
	JWTAudience string

	// --- Извлечение текста ---

	// Число одновременных задач извлечения текста
	ExtractPoolSize int
	// Бюджет времени на извлечение текста одного документа
	ExtractTimeout time.Duration

	// --- Поиск ---

	// Бюджет времени на выполнение поискового запроса
	SearchTimeout time.Duration
	// Потолок числа кандидатов, отбираемых в SQL до ранжирования
	SearchCandidateLimit int

	// --- Кеш ---

	// Размер LRU-кеша записей (0 отключает кеш)
	CacheSize int
	// TTL записей кеша
	CacheTTL time.Duration

	// --- Наблюдаемость и завершение ---

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// KM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("KM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("KM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("KM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// KM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("KM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("KM_LOG_LEVEL: %w", err)
	}

	// KM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("KM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("KM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// KM_TLS_CERT_PATH / KM_TLS_KEY_PATH — TLS (опционально, задаются парой)
	cfg.TLSCertPath = getEnvDefault("KM_TLS_CERT_PATH", "")
	cfg.TLSKeyPath = getEnvDefault("KM_TLS_KEY_PATH", "")
	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		return nil, fmt.Errorf("KM_TLS_CERT_PATH и KM_TLS_KEY_PATH задаются вместе")
	}

	// --- PostgreSQL ---

	// KM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("KM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// KM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("KM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("KM_DB_PORT: %w", err)
	}

	// KM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("KM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// KM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("KM_DB_USER")
	if err != nil {
		return nil, err
	}

	// KM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("KM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// KM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("KM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("KM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// KM_DB_POOL_MAX — максимальный размер пула (по умолчанию 10)
	cfg.DBPoolMax, err = getEnvInt("KM_DB_POOL_MAX", 10)
	if err != nil {
		return nil, fmt.Errorf("KM_DB_POOL_MAX: %w", err)
	}
	if cfg.DBPoolMax < 1 || cfg.DBPoolMax > 100 {
		return nil, fmt.Errorf("KM_DB_POOL_MAX: значение %d вне допустимого диапазона 1-100", cfg.DBPoolMax)
	}

	// KM_DB_FALLBACK_DIRECT — резервное прямое подключение (по умолчанию true)
	cfg.DBFallbackDirect, err = getEnvBool("KM_DB_FALLBACK_DIRECT", true)
	if err != nil {
		return nil, fmt.Errorf("KM_DB_FALLBACK_DIRECT: %w", err)
	}

	// --- JWT ---

	// KM_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("KM_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// KM_JWT_ISSUER — issuer JWT (опционально)
	cfg.JWTIssuer = getEnvDefault("KM_JWT_ISSUER", "")

	// KM_JWT_AUDIENCE — audience JWT (опционально)
	cfg.JWTAudience = getEnvDefault("KM_JWT_AUDIENCE", "")

	// --- Извлечение текста ---

	// KM_EXTRACT_POOL_SIZE — число одновременных задач (по умолчанию 4)
	cfg.ExtractPoolSize, err = getEnvInt("KM_EXTRACT_POOL_SIZE", 4)
	if err != nil {
		return nil, fmt.Errorf("KM_EXTRACT_POOL_SIZE: %w", err)
	}
	if cfg.ExtractPoolSize < 1 || cfg.ExtractPoolSize > 64 {
		return nil, fmt.Errorf("KM_EXTRACT_POOL_SIZE: значение %d вне допустимого диапазона 1-64", cfg.ExtractPoolSize)
	}

	// KM_EXTRACT_TIMEOUT — бюджет извлечения (по умолчанию 30s)
	cfg.ExtractTimeout, err = getEnvDuration("KM_EXTRACT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KM_EXTRACT_TIMEOUT: %w", err)
	}

	// --- Поиск ---

	// KM_SEARCH_TIMEOUT — бюджет поиска (по умолчанию 5s)
	cfg.SearchTimeout, err = getEnvDuration("KM_SEARCH_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KM_SEARCH_TIMEOUT: %w", err)
	}

	// KM_SEARCH_CANDIDATE_LIMIT — потолок кандидатов (по умолчанию 500)
	cfg.SearchCandidateLimit, err = getEnvInt("KM_SEARCH_CANDIDATE_LIMIT", 500)
	if err != nil {
		return nil, fmt.Errorf("KM_SEARCH_CANDIDATE_LIMIT: %w", err)
	}
	if cfg.SearchCandidateLimit < 1 || cfg.SearchCandidateLimit > 10000 {
		return nil, fmt.Errorf("KM_SEARCH_CANDIDATE_LIMIT: значение %d вне допустимого диапазона 1-10000", cfg.SearchCandidateLimit)
	}

	// --- Кеш ---

	// KM_CACHE_SIZE — размер LRU-кеша, 0 отключает (по умолчанию 256)
	cfg.CacheSize, err = getEnvInt("KM_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("KM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("KM_CACHE_SIZE: значение %d отрицательное", cfg.CacheSize)
	}

	// KM_CACHE_TTL — TTL записей кеша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("KM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("KM_CACHE_TTL: %w", err)
	}

	// --- Наблюдаемость и завершение ---

	// KM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("KM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// KM_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию knowledge)
	cfg.DephealthGroup = getEnvDefault("KM_DEPHEALTH_GROUP", "knowledge")

	// KM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("KM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("KM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode, c.DBPoolMax,
	)
}

// DirectDSN возвращает строку подключения без параметров пула,
// пригодную для одиночного pgx.Connect.
func (c *Config) DirectDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// TLSEnabled сообщает, настроен ли HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
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

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
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
