// identity.go — сверка субъекта токена Keycloak с локальной БД.
//
// Keycloak — источник истины о пользователях. Локальная запись нужна
// для связей (команды, записи учёта времени) и создаётся автоматически
// при первом входе с валидным токеном. При каждом запросе набор
// бизнес-ролей в БД подтягивается к набору из токена.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arturkryukov/timemanager/internal/auth"
	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/domain/roles"
	"github.com/arturkryukov/timemanager/internal/repository"
)

// IdentityService — сверка и авто-создание пользователей.
type IdentityService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewIdentityService создаёт сервис сверки пользователей.
func NewIdentityService(users repository.UserRepository, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		users:  users,
		logger: logger.With(slog.String("component", "identity")),
	}
}

// Resolve возвращает локального пользователя для проверенных claims.
//
// Отсутствующий пользователь создаётся автоматически. Два параллельных
// первых запроса одного пользователя разрешаются через уникальный
// индекс keycloak_id: проигравший вставку повторяет поиск.
//
// Роли синхронизируются только при фактическом расхождении наборов.
// Email и имя после создания НЕ синхронизируются: локальные правки
// пользователя не затираются данными токена.
func (s *IdentityService) Resolve(ctx context.Context, claims *auth.VerifiedClaims) (*model.User, error) {
	user, err := s.users.GetByKeycloakID(ctx, claims.Subject)
	if err == nil {
		return s.syncRoles(ctx, user, claims.Roles)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("поиск пользователя по keycloak_id: %w", err)
	}

	// первый вход — создаём локальную запись
	user = s.userFromClaims(claims)
	err = s.users.Create(ctx, user)
	if err == nil {
		s.logger.Info("Пользователь создан при первом входе",
			slog.Int64("user_id", user.ID),
			slog.String("keycloak_id", user.KeycloakID),
		)
		return user, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("создание пользователя при первом входе: %w", err)
	}

	// гонка параллельных первых запросов: запись уже вставлена,
	// перечитываем и продолжаем как с существующей
	user, err = s.users.GetByKeycloakID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("повторный поиск после конфликта вставки: %w", err)
	}
	return s.syncRoles(ctx, user, claims.Roles)
}

// syncRoles записывает роли из токена, если наборы различаются.
func (s *IdentityService) syncRoles(ctx context.Context, user *model.User, tokenRoles []string) (*model.User, error) {
	if roles.Equal(user.RealmRoles, tokenRoles) {
		return user, nil
	}

	if err := s.users.UpdateRealmRoles(ctx, user.ID, tokenRoles); err != nil {
		return nil, fmt.Errorf("синхронизация ролей пользователя %d: %w", user.ID, err)
	}

	s.logger.Info("Роли пользователя синхронизированы",
		slog.Int64("user_id", user.ID),
		slog.Any("old_roles", user.RealmRoles),
		slog.Any("new_roles", tokenRoles),
	)

	user.RealmRoles = tokenRoles
	return user, nil
}

// userFromClaims строит локальную запись из claims токена.
func (s *IdentityService) userFromClaims(claims *auth.VerifiedClaims) *model.User {
	email := claims.Email
	if email == "" {
		// токен без email — синтетический адрес, уникальный по sub
		email = claims.Subject + "@unknown.local"
	}

	return &model.User{
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		Email:      email,
		KeycloakID: claims.Subject,
		RealmRoles: claims.Roles,
	}
}
