// Пакет config — загрузка и валидация конфигурации Time Manager
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

// Config содержит все параметры конфигурации Time Manager.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

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
	DBMaxConns int

	// --- Keycloak ---

	// Публичный URL Keycloak (issuer токенов фронтенда)
	KeycloakPublicURL string
	// Внутренний URL Keycloak для серверных запросов
	// (по умолчанию совпадает с публичным)
	KeycloakInternalURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Логин администратора realm master (Admin API)
	KeycloakAdminUser string
	// Пароль администратора realm master
	KeycloakAdminPassword string
	// Client ID фронтенда (password grant при проверке пароля)
	KeycloakFrontendClientID string
	// Таймаут исходящих запросов к Keycloak
	IDPTimeout time.Duration

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из KeycloakPublicURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakInternalURL, если не задан)
	JWTJWKSURL string
	// Ожидаемый audience токенов
	JWTAudience string

	// --- Фоновые задачи ---

	// Время ежедневного автозакрытия смен в формате HH:MM (UTC)
	AutoClockoutAt string
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("TM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("TM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("TM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// TM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TM_LOG_LEVEL: %w", err)
	}

	// TM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// TM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("TM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// TM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("TM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("TM_DB_PORT: %w", err)
	}

	// TM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("TM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// TM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("TM_DB_USER")
	if err != nil {
		return nil, err
	}

	// TM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("TM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// TM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("TM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("TM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// TM_DB_MAX_CONNS — максимальный размер пула (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("TM_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("TM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("TM_DB_MAX_CONNS: значение %d должно быть положительным", cfg.DBMaxConns)
	}

	// --- Keycloak ---

	// TM_KEYCLOAK_PUBLIC_URL — обязательный
	cfg.KeycloakPublicURL, err = getEnvRequired("TM_KEYCLOAK_PUBLIC_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakPublicURL = strings.TrimRight(cfg.KeycloakPublicURL, "/")

	// TM_KEYCLOAK_INTERNAL_URL — по умолчанию совпадает с публичным
	cfg.KeycloakInternalURL = strings.TrimRight(
		getEnvDefault("TM_KEYCLOAK_INTERNAL_URL", cfg.KeycloakPublicURL), "/")

	// TM_KEYCLOAK_REALM — realm (по умолчанию time-manager)
	cfg.KeycloakRealm = getEnvDefault("TM_KEYCLOAK_REALM", "time-manager")

	// TM_KEYCLOAK_ADMIN_USER — обязательный
	cfg.KeycloakAdminUser, err = getEnvRequired("TM_KEYCLOAK_ADMIN_USER")
	if err != nil {
		return nil, err
	}

	// TM_KEYCLOAK_ADMIN_PASSWORD — обязательный
	cfg.KeycloakAdminPassword, err = getEnvRequired("TM_KEYCLOAK_ADMIN_PASSWORD")
	if err != nil {
		return nil, err
	}

	// TM_KEYCLOAK_FRONTEND_CLIENT_ID — client id фронтенда (по умолчанию frontend)
	cfg.KeycloakFrontendClientID = getEnvDefault("TM_KEYCLOAK_FRONTEND_CLIENT_ID", "frontend")

	// TM_IDP_TIMEOUT — таймаут запросов к Keycloak (по умолчанию 10s)
	cfg.IDPTimeout, err = getEnvDuration("TM_IDP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TM_IDP_TIMEOUT: %w", err)
	}

	// --- JWT ---

	// TM_JWT_ISSUER — issuer фронтендных токенов, вычисляется из публичного URL
	cfg.JWTIssuer = getEnvDefault("TM_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakPublicURL, cfg.KeycloakRealm))

	// TM_JWT_JWKS_URL — JWKS забирается по внутреннему URL
	cfg.JWTJWKSURL = getEnvDefault("TM_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakInternalURL, cfg.KeycloakRealm))

	// TM_JWT_AUDIENCE — ожидаемый audience (по умолчанию account)
	cfg.JWTAudience = getEnvDefault("TM_JWT_AUDIENCE", "account")

	// --- Фоновые задачи ---

	// TM_AUTO_CLOCKOUT_AT — время автозакрытия смен (по умолчанию 00:01 UTC)
	cfg.AutoClockoutAt = getEnvDefault("TM_AUTO_CLOCKOUT_AT", "00:01")
	if _, err := time.Parse("15:04", cfg.AutoClockoutAt); err != nil {
		return nil, fmt.Errorf("TM_AUTO_CLOCKOUT_AT: недопустимое значение %q, ожидается формат HH:MM", cfg.AutoClockoutAt)
	}

	// TM_DEPHEALTH_GROUP — имя группы в метриках зависимостей (по умолчанию time-manager)
	cfg.DephealthGroup = getEnvDefault("TM_DEPHEALTH_GROUP", "time-manager")

	// TM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("TM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// TM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("TM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL без учётных
// данных. Используется для лейблов метрик зависимостей.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%d/%s?sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
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
