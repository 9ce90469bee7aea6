package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/arturkryukov/timemanager/internal/domain/roles"
)

// Ошибки верификации токена.
var (
	// ErrTokenMalformed — строка не является структурно корректным JWT
	// либо в заголовке отсутствует kid.
	ErrTokenMalformed = errors.New("токен повреждён")
	// ErrUnknownSigningKey — kid не найден даже после обновления JWKS.
	ErrUnknownSigningKey = errors.New("неизвестный ключ подписи")
	// ErrSignatureInvalid — подпись не сходится либо недопустимый алгоритм.
	ErrSignatureInvalid = errors.New("невалидная подпись токена")
	// ErrTokenExpired — токен просрочен.
	ErrTokenExpired = errors.New("токен просрочен")
	// ErrIssuerMismatch — issuer не совпадает с ожидаемым.
	ErrIssuerMismatch = errors.New("неверный issuer токена")
	// ErrAudienceMismatch — audience не содержит ожидаемого значения.
	ErrAudienceMismatch = errors.New("неверный audience токена")
)

// VerifiedClaims — проверенные и отфильтрованные claims токена.
type VerifiedClaims struct {
	// Subject — sub, идентификатор пользователя в Keycloak.
	Subject string
	// Email — email из токена (может быть пустым).
	Email string
	// GivenName — given_name из токена.
	GivenName string
	// FamilyName — family_name из токена.
	FamilyName string
	// PreferredUsername — preferred_username из токена.
	PreferredUsername string
	// Roles — бизнес-роли из realm_access.roles.
	// Служебные роли Keycloak отброшены.
	Roles []string
}

// keycloakClaims — raw claims из Keycloak JWT для парсинга.
type keycloakClaims struct {
	jwt.RegisteredClaims
	// Email — электронная почта.
	Email string `json:"email"`
	// GivenName — имя.
	GivenName string `json:"given_name"`
	// FamilyName — фамилия.
	FamilyName string `json:"family_name"`
	// PreferredUsername — имя пользователя.
	PreferredUsername string `json:"preferred_username"`
	// RealmAccess — вложенная структура для realm_access.roles.
	RealmAccess *realmAccess `json:"realm_access,omitempty"`
}

// realmAccess — вложенная структура realm_access в Keycloak JWT.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// Verifier — верификатор JWT Keycloak.
// Допускает только RS256, проверяет подпись через JWKSCache,
// issuer, audience и срок действия.
type Verifier struct {
	jwks     *JWKSCache
	issuer   string
	audience string
	leeway   time.Duration
	logger   *slog.Logger
}

// NewVerifier создаёт верификатор токенов.
func NewVerifier(jwks *JWKSCache, issuer, audience string, leeway time.Duration, logger *slog.Logger) *Verifier {
	return &Verifier{
		jwks:     jwks,
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		logger:   logger.With(slog.String("component", "token_verifier")),
	}
}

// Verify проверяет токен и возвращает claims.
//
// При неизвестном kid выполняется ровно одно принудительное обновление
// JWKS (ротация ключей в Keycloak): если kid не появился и после
// обновления — ErrUnknownSigningKey. Если Keycloak недоступен в момент
// обновления — ErrIDPUnavailable.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*VerifiedClaims, error) {
	kf, err := v.jwks.Keyfunc(ctx)
	if err != nil {
		return nil, err
	}

	claims, err := v.parse(ctx, tokenString, kf)
	if err == nil {
		return claims, nil
	}

	// Неизвестный kid — единственный случай, когда кэш принудительно
	// обновляется и парсинг повторяется.
	if errors.Is(err, jwkset.ErrKeyNotFound) {
		if refreshErr := v.jwks.Refresh(ctx); refreshErr != nil {
			return nil, refreshErr
		}
		kf, err = v.jwks.Keyfunc(ctx)
		if err != nil {
			return nil, err
		}
		claims, err = v.parse(ctx, tokenString, kf)
		if err == nil {
			return claims, nil
		}
		if errors.Is(err, jwkset.ErrKeyNotFound) {
			return nil, ErrUnknownSigningKey
		}
	}

	return nil, mapJWTError(err)
}

// requireKid оборачивает keyfunc проверкой заголовка kid.
// keyfunc v3 при отсутствии kid отдаёт весь набор ключей, и подпись
// проверялась бы каждым из них; токен без kid отклоняется до подбора ключа.
func requireKid(kf jwt.Keyfunc) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: отсутствует kid", ErrTokenMalformed)
		}
		return kf(token)
	}
}

// parse выполняет разбор и валидацию токена.
func (v *Verifier) parse(ctx context.Context, tokenString string, kf keyfunc.Keyfunc) (*VerifiedClaims, error) {
	raw := &keycloakClaims{}
	_, err := jwt.ParseWithClaims(tokenString, raw, requireKid(kf.KeyfuncCtx(ctx)),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, err
	}

	if raw.Subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", ErrTokenMalformed)
	}

	claims := &VerifiedClaims{
		Subject:           raw.Subject,
		Email:             raw.Email,
		GivenName:         raw.GivenName,
		FamilyName:        raw.FamilyName,
		PreferredUsername: raw.PreferredUsername,
		Roles:             []string{},
	}
	if raw.RealmAccess != nil {
		claims.Roles = roles.FilterBusiness(raw.RealmAccess.Roles)
	}
	return claims, nil
}

// mapJWTError переводит ошибки golang-jwt в ошибки пакета.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, ErrTokenMalformed):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
