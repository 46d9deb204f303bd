// Пакет config — загрузка и валидация конфигурации PolicyHub
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

// Config содержит все параметры конфигурации PolicyHub.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
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

	// --- Keycloak / JWT ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Путь к CA-сертификату для TLS к Keycloak (опционально)
	KeycloakCACert string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Таймаут проверки готовности Keycloak
	KeycloakReadinessTimeout time.Duration

	// --- Маппинг групп → ролей ---

	// Группы Keycloak, дающие роль super-admin (через запятую)
	RoleSuperAdminGroups []string
	// Группы Keycloak, дающие роль publish (через запятую)
	RolePublishGroups []string
	// Группы Keycloak, дающие роль edit (через запятую)
	RoleEditGroups []string
	// Группы Keycloak, дающие роль read-only (через запятую)
	RoleReadOnlyGroups []string

	// --- Генератор номеров ---

	// Максимальное число попыток генерации номера (включая первую)
	NumberingMaxAttempts int
	// Начальная задержка перед повтором (удваивается с каждой попыткой)
	NumberingInitialDelay time.Duration

	// --- Кэш политик ---

	// Размер LRU-кэша политик (0 — кэш выключен)
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Прочее ---

	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PH_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("PH_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("PH_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("PH_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// PH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PH_LOG_LEVEL: %w", err)
	}

	// PH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PH_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// PH_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("PH_DB_HOST")
	if err != nil {
		return nil, err
	}

	// PH_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PH_DB_PORT: %w", err)
	}

	// PH_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PH_DB_NAME")
	if err != nil {
		return nil, err
	}

	// PH_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PH_DB_USER")
	if err != nil {
		return nil, err
	}

	// PH_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PH_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PH_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PH_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PH_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Keycloak / JWT ---

	// PH_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("PH_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// PH_KEYCLOAK_REALM — realm (по умолчанию policyhub)
	cfg.KeycloakRealm = getEnvDefault("PH_KEYCLOAK_REALM", "policyhub")

	// PH_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("PH_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// PH_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("PH_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// PH_JWT_GROUPS_CLAIM — claim для групп (по умолчанию groups)

	// PH_KEYCLOAK_CA_CERT — CA-сертификат для TLS к Keycloak (опционально)
	cfg.KeycloakCACert = getEnvDefault("PH_KEYCLOAK_CA_CERT", "")

	// PH_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("PH_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PH_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// PH_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("PH_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PH_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// PH_JWT_LEEWAY — отклонение времени при проверке JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("PH_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PH_JWT_LEEWAY: %w", err)
	}

	// PH_KEYCLOAK_READINESS_TIMEOUT — таймаут readiness-проверки Keycloak (по умолчанию 5s)
	cfg.KeycloakReadinessTimeout, err = getEnvDuration("PH_KEYCLOAK_READINESS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PH_KEYCLOAK_READINESS_TIMEOUT: %w", err)
	}

	// --- Маппинг групп → ролей ---

	// PH_ROLE_SUPERADMIN_GROUPS — группы для роли super-admin
	cfg.RoleSuperAdminGroups = parseCSV(getEnvDefault("PH_ROLE_SUPERADMIN_GROUPS", "policyhub-superadmins"))

	// PH_ROLE_PUBLISH_GROUPS — группы для роли publish
	cfg.RolePublishGroups = parseCSV(getEnvDefault("PH_ROLE_PUBLISH_GROUPS", "policyhub-publishers"))

	// PH_ROLE_EDIT_GROUPS — группы для роли edit
	cfg.RoleEditGroups = parseCSV(getEnvDefault("PH_ROLE_EDIT_GROUPS", "policyhub-editors"))

	// PH_ROLE_READONLY_GROUPS — группы для роли read-only
	cfg.RoleReadOnlyGroups = parseCSV(getEnvDefault("PH_ROLE_READONLY_GROUPS", "policyhub-readers"))

	// --- Генератор номеров ---

	// PH_NUMBERING_MAX_ATTEMPTS — попытки генерации номера (по умолчанию 4: первая + 3 повтора)
	cfg.NumberingMaxAttempts, err = getEnvInt("PH_NUMBERING_MAX_ATTEMPTS", 4)
	if err != nil {
		return nil, fmt.Errorf("PH_NUMBERING_MAX_ATTEMPTS: %w", err)
	}
	if cfg.NumberingMaxAttempts < 1 || cfg.NumberingMaxAttempts > 10 {
		return nil, fmt.Errorf("PH_NUMBERING_MAX_ATTEMPTS: значение %d вне допустимого диапазона 1-10", cfg.NumberingMaxAttempts)
	}

	// PH_NUMBERING_INITIAL_DELAY — начальная задержка повтора (по умолчанию 1s)
	cfg.NumberingInitialDelay, err = getEnvDuration("PH_NUMBERING_INITIAL_DELAY", time.Second)
	if err != nil {
		return nil, fmt.Errorf("PH_NUMBERING_INITIAL_DELAY: %w", err)
	}

	// --- Кэш политик ---

	// PH_CACHE_SIZE — размер LRU-кэша (по умолчанию 512, 0 выключает кэш)
	cfg.CacheSize, err = getEnvInt("PH_CACHE_SIZE", 512)
	if err != nil {
		return nil, fmt.Errorf("PH_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("PH_CACHE_SIZE: значение %d не может быть отрицательным", cfg.CacheSize)
	}

	// PH_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("PH_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PH_CACHE_TTL: %w", err)
	}

	// --- Прочее ---

	// PH_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию policyhub)
	cfg.DephealthGroup = getEnvDefault("PH_DEPHEALTH_GROUP", "policyhub")

	// PH_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("PH_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PH_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// PH_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PH_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PH_SHUTDOWN_TIMEOUT: %w", err)
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

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для topologymetrics и golang-migrate).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
