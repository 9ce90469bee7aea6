package config

import (
	"testing"
	"time"
)

// setRequiredEnv задаёт минимальный набор обязательных переменных.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TM_DB_HOST", "localhost")
	t.Setenv("TM_DB_NAME", "timemanager")
	t.Setenv("TM_DB_USER", "tm")
	t.Setenv("TM_DB_PASSWORD", "secret")
	t.Setenv("TM_KEYCLOAK_PUBLIC_URL", "https://keycloak.example.com/")
	t.Setenv("TM_KEYCLOAK_ADMIN_USER", "admin")
	t.Setenv("TM_KEYCLOAK_ADMIN_PASSWORD", "admin-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load вернул ошибку: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидалось 8000", cfg.Port)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидалось json", cfg.LogFormat)
	}
	// trailing slash публичного URL убирается
	if cfg.KeycloakPublicURL != "https://keycloak.example.com" {
		t.Errorf("KeycloakPublicURL = %q", cfg.KeycloakPublicURL)
	}
	// внутренний URL по умолчанию совпадает с публичным
	if cfg.KeycloakInternalURL != cfg.KeycloakPublicURL {
		t.Errorf("KeycloakInternalURL = %q, ожидалось %q", cfg.KeycloakInternalURL, cfg.KeycloakPublicURL)
	}
	if cfg.KeycloakRealm != "time-manager" {
		t.Errorf("KeycloakRealm = %q, ожидалось time-manager", cfg.KeycloakRealm)
	}
	if cfg.JWTIssuer != "https://keycloak.example.com/realms/time-manager" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTJWKSURL != "https://keycloak.example.com/realms/time-manager/protocol/openid-connect/certs" {
		t.Errorf("JWTJWKSURL = %q", cfg.JWTJWKSURL)
	}
	if cfg.JWTAudience != "account" {
		t.Errorf("JWTAudience = %q, ожидалось account", cfg.JWTAudience)
	}
	if cfg.IDPTimeout != 10*time.Second {
		t.Errorf("IDPTimeout = %v, ожидалось 10s", cfg.IDPTimeout)
	}
	if cfg.AutoClockoutAt != "00:01" {
		t.Errorf("AutoClockoutAt = %q, ожидалось 00:01", cfg.AutoClockoutAt)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, ожидалось 10", cfg.DBMaxConns)
	}
}

func TestLoadInternalURLOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TM_KEYCLOAK_INTERNAL_URL", "http://keycloak.svc:8080/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load вернул ошибку: %v", err)
	}

	// issuer считается от публичного URL, JWKS — от внутреннего
	if cfg.JWTIssuer != "https://keycloak.example.com/realms/time-manager" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTJWKSURL != "http://keycloak.svc:8080/realms/time-manager/protocol/openid-connect/certs" {
		t.Errorf("JWTJWKSURL = %q", cfg.JWTJWKSURL)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TM_DB_HOST", "")

	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка при отсутствии TM_DB_HOST")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, val string
	}{
		{"некорректный порт", "TM_PORT", "abc"},
		{"порт вне диапазона", "TM_PORT", "70000"},
		{"некорректный формат логов", "TM_LOG_FORMAT", "xml"},
		{"некорректный уровень логов", "TM_LOG_LEVEL", "verbose"},
		{"некорректный ssl mode", "TM_DB_SSL_MODE", "maybe"},
		{"нулевой размер пула", "TM_DB_MAX_CONNS", "0"},
		{"некорректное время автозакрытия", "TM_AUTO_CLOCKOUT_AT", "25:99"},
		{"некорректный таймаут", "TM_IDP_TIMEOUT", "десять секунд"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5432, DBName: "tm", DBUser: "u", DBPassword: "p", DBSSLMode: "disable",
	}
	want := "host=db port=5432 dbname=tm user=u password=p sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN = %q, ожидалось %q", got, want)
	}
}
