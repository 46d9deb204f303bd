package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения и возвращает функцию для их очистки.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"PH_DB_HOST":      "localhost",
		"PH_DB_NAME":      "policyhub",
		"PH_DB_USER":      "policyhub",
		"PH_DB_PASSWORD":  "secret",
		"PH_KEYCLOAK_URL": "https://keycloak.kryukov.lan",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, ожидается localhost", cfg.DBHost)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.KeycloakRealm != "policyhub" {
		t.Errorf("KeycloakRealm = %q, ожидается policyhub", cfg.KeycloakRealm)
	}
	if cfg.NumberingMaxAttempts != 4 {
		t.Errorf("NumberingMaxAttempts = %d, ожидается 4", cfg.NumberingMaxAttempts)
	}
	if cfg.NumberingInitialDelay != time.Second {
		t.Errorf("NumberingInitialDelay = %v, ожидается 1s", cfg.NumberingInitialDelay)
	}
	if cfg.CacheSize != 512 {
		t.Errorf("CacheSize = %d, ожидается 512", cfg.CacheSize)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 5m", cfg.CacheTTL)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_JWTAutoDerive(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	expectedIssuer := "https://keycloak.kryukov.lan/realms/policyhub"
	if cfg.JWTIssuer != expectedIssuer {
		t.Errorf("JWTIssuer = %q, ожидается %q", cfg.JWTIssuer, expectedIssuer)
	}

	expectedJWKS := "https://keycloak.kryukov.lan/realms/policyhub/protocol/openid-connect/certs"
	if cfg.JWTJWKSURL != expectedJWKS {
		t.Errorf("JWTJWKSURL = %q, ожидается %q", cfg.JWTJWKSURL, expectedJWKS)
	}
}

func TestLoad_DefaultRoleGroups(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if len(cfg.RoleSuperAdminGroups) != 1 || cfg.RoleSuperAdminGroups[0] != "policyhub-superadmins" {
		t.Errorf("RoleSuperAdminGroups = %v", cfg.RoleSuperAdminGroups)
	}
	if len(cfg.RolePublishGroups) != 1 || cfg.RolePublishGroups[0] != "policyhub-publishers" {
		t.Errorf("RolePublishGroups = %v", cfg.RolePublishGroups)
	}
	if len(cfg.RoleEditGroups) != 1 || cfg.RoleEditGroups[0] != "policyhub-editors" {
		t.Errorf("RoleEditGroups = %v", cfg.RoleEditGroups)
	}
	if len(cfg.RoleReadOnlyGroups) != 1 || cfg.RoleReadOnlyGroups[0] != "policyhub-readers" {
		t.Errorf("RoleReadOnlyGroups = %v", cfg.RoleReadOnlyGroups)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["PH_PORT"] = "8005"
	envs["PH_LOG_LEVEL"] = "debug"
	envs["PH_LOG_FORMAT"] = "text"
	envs["PH_DB_PORT"] = "5433"
	envs["PH_DB_SSL_MODE"] = "require"
	envs["PH_NUMBERING_MAX_ATTEMPTS"] = "2"
	envs["PH_NUMBERING_INITIAL_DELAY"] = "500ms"
	envs["PH_CACHE_SIZE"] = "128"
	envs["PH_CACHE_TTL"] = "1m"
	envs["PH_ROLE_SUPERADMIN_GROUPS"] = "ciso, platform-admins"
	envs["PH_ROLE_PUBLISH_GROUPS"] = "compliance-officers"
	envs["PH_SHUTDOWN_TIMEOUT"] = "10s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8005 {
		t.Errorf("Port = %d, ожидается 8005", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.DBPort != 5433 {
		t.Errorf("DBPort = %d, ожидается 5433", cfg.DBPort)
	}
	if cfg.DBSSLMode != "require" {
		t.Errorf("DBSSLMode = %q, ожидается require", cfg.DBSSLMode)
	}
	if cfg.NumberingMaxAttempts != 2 {
		t.Errorf("NumberingMaxAttempts = %d, ожидается 2", cfg.NumberingMaxAttempts)
	}
	if cfg.NumberingInitialDelay != 500*time.Millisecond {
		t.Errorf("NumberingInitialDelay = %v, ожидается 500ms", cfg.NumberingInitialDelay)
	}
	if cfg.CacheSize != 128 {
		t.Errorf("CacheSize = %d, ожидается 128", cfg.CacheSize)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 1m", cfg.CacheTTL)
	}
	if len(cfg.RoleSuperAdminGroups) != 2 || cfg.RoleSuperAdminGroups[0] != "ciso" || cfg.RoleSuperAdminGroups[1] != "platform-admins" {
		t.Errorf("RoleSuperAdminGroups = %v, ожидается [ciso platform-admins]", cfg.RoleSuperAdminGroups)
	}
	if len(cfg.RolePublishGroups) != 1 || cfg.RolePublishGroups[0] != "compliance-officers" {
		t.Errorf("RolePublishGroups = %v, ожидается [compliance-officers]", cfg.RolePublishGroups)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	requiredVars := []string{
		"PH_DB_HOST", "PH_DB_NAME", "PH_DB_USER", "PH_DB_PASSWORD",
		"PH_KEYCLOAK_URL",
	}

	for _, missing := range requiredVars {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, missing)
			// Очищаем все переменные окружения
			for k := range minimalEnvs() {
				os.Unsetenv(k)
			}
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ниже диапазона", "7999"},
		{"выше диапазона", "8010"},
		{"не число", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs["PH_PORT"] = tt.value
			for k := range minimalEnvs() {
				os.Unsetenv(k)
			}
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при PH_PORT=%q", tt.value)
			}
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	envs := minimalEnvs()
	envs["PH_LOG_LEVEL"] = "verbose"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при PH_LOG_LEVEL=verbose")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	envs := minimalEnvs()
	envs["PH_LOG_FORMAT"] = "xml"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при PH_LOG_FORMAT=xml")
	}
}

func TestLoad_InvalidSSLMode(t *testing.T) {
	envs := minimalEnvs()
	envs["PH_DB_SSL_MODE"] = "prefer"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при PH_DB_SSL_MODE=prefer")
	}
}

func TestLoad_InvalidNumberingAttempts(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ноль", "0"},
		{"слишком много", "11"},
		{"не число", "three"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs["PH_NUMBERING_MAX_ATTEMPTS"] = tt.value
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Errorf("Load() не вернул ошибку при PH_NUMBERING_MAX_ATTEMPTS=%q", tt.value)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	envs := minimalEnvs()
	envs["PH_CACHE_TTL"] = "abc"
	setEnvs(t, envs)

	_, err := Load()
	if err == nil {
		t.Error("Load() не вернул ошибку при PH_CACHE_TTL=abc")
	}
}

func TestLoad_KeycloakURLTrailingSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["PH_KEYCLOAK_URL"] = "https://keycloak.kryukov.lan/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.KeycloakURL != "https://keycloak.kryukov.lan" {
		t.Errorf("KeycloakURL = %q, ожидается без trailing slash", cfg.KeycloakURL)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "policyhub",
		DBUser:     "user",
		DBPassword: "pass",
		DBSSLMode:  "disable",
	}
	expected := "host=db.example.com port=5432 dbname=policyhub user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"json", "json"},
		{"text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: tt.format,
			}
			logger := SetupLogger(cfg)
			if logger == nil {
				t.Error("SetupLogger() вернул nil")
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"editors", []string{"editors"}},
		{"editors, publishers", []string{"editors", "publishers"}},
		{"editors,,publishers,", []string{"editors", "publishers"}},
		{" editors , publishers , readers ", []string{"editors", "publishers", "readers"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseCSV(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseCSV(%q) = %v (len %d), ожидается %v (len %d)",
					tt.input, result, len(result), tt.expected, len(tt.expected))
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, ожидается %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}
