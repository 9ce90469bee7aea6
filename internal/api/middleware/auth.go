// auth.go — JWT middleware для аутентификации и авторизации Time Manager.
// Извлекает Bearer token, валидирует через верификатор (JWKS Keycloak),
// сверяет пользователя с локальной БД (auto-provisioning при первом входе)
// и помещает результат в контекст запроса.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/arturkryukov/timemanager/internal/api/errors"
	"github.com/arturkryukov/timemanager/internal/auth"
	"github.com/arturkryukov/timemanager/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUser — локальный пользователь в контексте запроса.
	ContextKeyUser contextKey = "current_user"
	// ContextKeyClaims — проверенные claims токена в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// TokenVerifier — верификация JWT. Реализуется auth.Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*auth.VerifiedClaims, error)
}

// IdentityResolver — сверка субъекта токена с локальной БД.
// Реализуется service.IdentityService.
type IdentityResolver interface {
	Resolve(ctx context.Context, claims *auth.VerifiedClaims) (*model.User, error)
}

// JWTAuth — middleware аутентификации.
type JWTAuth struct {
	verifier TokenVerifier
	resolver IdentityResolver
	logger   *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
func NewJWTAuth(verifier TokenVerifier, resolver IdentityResolver, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		verifier: verifier,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Цепочка: Bearer token → верификация → сверка с БД → контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims, err := j.verifier.Verify(r.Context(), tokenString)
			if err != nil {
				// Недоступность Keycloak — не вина клиента
				if errors.Is(err, auth.ErrIDPUnavailable) {
					j.logger.Error("Keycloak недоступен при верификации токена",
						slog.String("error", err.Error()),
					)
					apierrors.IDPUnavailable(w, "Identity provider недоступен")
					return
				}

				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			user, err := j.resolver.Resolve(r.Context(), claims)
			if err != nil {
				j.logger.Error("Ошибка сверки пользователя с БД",
					slog.String("keycloak_id", claims.Subject),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Ошибка обработки пользователя")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			ctx = context.WithValue(ctx, ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole возвращает middleware, требующий одну из указанных бизнес-ролей.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				apierrors.Unauthorized(w, "Отсутствует пользователь в контексте")
				return
			}

			for _, role := range roles {
				if user.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(roles, " или ")))
		})
	}
}

// --- Context helpers ---

// UserFromContext извлекает локального пользователя из контекста запроса.
// Возвращает nil, если пользователь не найден.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}

// ClaimsFromContext извлекает claims токена из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *auth.VerifiedClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*auth.VerifiedClaims)
	return claims
}
