package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/arturkryukov/timemanager/internal/auth"
	"github.com/arturkryukov/timemanager/internal/domain/model"
)

// mockVerifier — мок TokenVerifier.
type mockVerifier struct {
	claims *auth.VerifiedClaims
	err    error
}

func (m *mockVerifier) Verify(_ context.Context, _ string) (*auth.VerifiedClaims, error) {
	return m.claims, m.err
}

// mockResolver — мок IdentityResolver.
type mockResolver struct {
	user *model.User
	err  error
}

func (m *mockResolver) Resolve(_ context.Context, _ *auth.VerifiedClaims) (*model.User, error) {
	return m.user, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestJWTAuth_ValidToken — валидный токен помещает пользователя в контекст.
func TestJWTAuth_ValidToken(t *testing.T) {
	claims := &auth.VerifiedClaims{Subject: "kc-user-001", Roles: []string{"employee"}}
	user := &model.User{ID: 42, KeycloakID: "kc-user-001", RealmRoles: []string{"employee"}}
	jwtAuth := NewJWTAuth(&mockVerifier{claims: claims}, &mockResolver{user: user}, testLogger())

	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := UserFromContext(r.Context())
		if got == nil || got.ID != 42 {
			t.Errorf("UserFromContext = %+v, хотели пользователя 42", got)
		}
		gotClaims := ClaimsFromContext(r.Context())
		if gotClaims == nil || gotClaims.Subject != "kc-user-001" {
			t.Errorf("ClaimsFromContext = %+v", gotClaims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_MissingHeader — отсутствие Authorization.
func TestJWTAuth_MissingHeader(t *testing.T) {
	jwtAuth := NewJWTAuth(&mockVerifier{}, &mockResolver{}, testLogger())
	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_InvalidFormat — некорректный формат Authorization.
func TestJWTAuth_InvalidFormat(t *testing.T) {
	jwtAuth := NewJWTAuth(&mockVerifier{}, &mockResolver{}, testLogger())
	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"no bearer prefix", "token123"},
		{"empty bearer", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

// TestJWTAuth_VerificationErrors — маппинг ошибок верификации в статусы.
func TestJWTAuth_VerificationErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"просроченный токен", auth.ErrTokenExpired, http.StatusUnauthorized},
		{"невалидная подпись", auth.ErrSignatureInvalid, http.StatusUnauthorized},
		{"неизвестный ключ", auth.ErrUnknownSigningKey, http.StatusUnauthorized},
		{"чужой issuer", auth.ErrIssuerMismatch, http.StatusUnauthorized},
		{"keycloak недоступен", auth.ErrIDPUnavailable, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jwtAuth := NewJWTAuth(&mockVerifier{err: tt.err}, &mockResolver{}, testLogger())
			handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler не должен быть вызван")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			req.Header.Set("Authorization", "Bearer bad-token")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("ожидался статус %d, получен %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

// TestJWTAuth_ResolverError — ошибка сверки с БД даёт 500.
func TestJWTAuth_ResolverError(t *testing.T) {
	claims := &auth.VerifiedClaims{Subject: "kc-user-001"}
	jwtAuth := NewJWTAuth(
		&mockVerifier{claims: claims},
		&mockResolver{err: errors.New("база недоступна")},
		testLogger(),
	)
	handler := jwtAuth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("ожидался статус 500, получен %d", rec.Code)
	}
}

// --- Тесты RequireRole ---

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		userRoles  []string
		required   []string
		wantStatus int
	}{
		{"есть нужная роль", []string{"manager"}, []string{"manager", "organization"}, http.StatusOK},
		{"одна из нескольких", []string{"employee", "organization"}, []string{"organization"}, http.StatusOK},
		{"нет нужной роли", []string{"employee"}, []string{"manager", "organization"}, http.StatusForbidden},
		{"нет ролей вовсе", []string{}, []string{"manager"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(tt.required...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			user := &model.User{ID: 1, RealmRoles: tt.userRoles}
			ctx := context.WithValue(context.Background(), ContextKeyUser, user)
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("ожидался статус %d, получен %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

// TestRequireRole_NoUser — отсутствие пользователя в контексте.
func TestRequireRole_NoUser(t *testing.T) {
	handler := RequireRole("manager")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}
