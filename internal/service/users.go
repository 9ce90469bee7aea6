// users.go — управление пользователями: провижининг в Keycloak + локальная БД.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/domain/roles"
	"github.com/arturkryukov/timemanager/internal/domain/validate"
	"github.com/arturkryukov/timemanager/internal/keycloak"
	"github.com/arturkryukov/timemanager/internal/repository"
)

// IdentityProvider — операции Keycloak, нужные сервису пользователей.
// Реализуется keycloak.Client, в тестах подменяется моком.
type IdentityProvider interface {
	CreateUser(ctx context.Context, params keycloak.UserCreateParams) (string, error)
	DeleteUser(ctx context.Context, userID string) error
	ResetPassword(ctx context.Context, userID, newPassword string, temporary bool) error
	VerifyPassword(ctx context.Context, keycloakID, password string) bool
}

// UserService — бизнес-логика управления пользователями.
type UserService struct {
	users  repository.UserRepository
	idp    IdentityProvider
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(users repository.UserRepository, idp IdentityProvider, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		idp:    idp,
		logger: logger.With(slog.String("component", "users")),
	}
}

// Create создаёт пользователя: сначала в Keycloak, затем в локальной БД.
// Возвращает созданного пользователя и временный пароль (сгенерированный,
// если не был задан явно). При ошибке локальной вставки созданная в
// Keycloak учётка удаляется (best-effort).
func (s *UserService) Create(ctx context.Context, in model.UserCreate) (*model.User, string, error) {
	email, err := validate.Email(in.Email)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	firstName, err := validate.FirstName(in.FirstName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: имя: %v", ErrValidation, err)
	}
	lastName, err := validate.LastName(in.LastName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: фамилия: %v", ErrValidation, err)
	}

	var phone *string
	if in.PhoneNumber != "" {
		p, err := validate.Phone(in.PhoneNumber)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrValidation, err)
		}
		phone = &p
	}

	// дубликат email отсекается локально до похода в Keycloak,
	// чтобы не создавать учётку, которую придётся откатывать
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("%w: пользователь с email %s уже существует", ErrConflict, email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("проверка уникальности email: %w", err)
	}

	username := in.Username
	if username == "" {
		username = email
	}

	tempPassword := in.TempPassword
	if tempPassword == "" {
		tempPassword = uuid.NewString()
	}

	userRoles := roles.FilterBusiness(in.RealmRoles)
	if len(userRoles) == 0 {
		userRoles = []string{roles.Employee}
	}

	keycloakID, err := s.idp.CreateUser(ctx, keycloak.UserCreateParams{
		Username:     username,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		TempPassword: tempPassword,
		RealmRoles:   userRoles,
	})
	if err != nil {
		if errors.Is(err, keycloak.ErrDuplicateIdentity) {
			return nil, "", fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, "", fmt.Errorf("провижининг пользователя в Keycloak: %w", err)
	}

	user := &model.User{
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		PhoneNumber: phone,
		KeycloakID:  keycloakID,
		RealmRoles:  userRoles,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// откат: без локальной записи учётка в Keycloak осиротеет
		if delErr := s.idp.DeleteUser(ctx, keycloakID); delErr != nil {
			s.logger.Warn("Не удалось откатить создание пользователя в Keycloak",
				slog.String("keycloak_id", keycloakID),
				slog.String("error", delErr.Error()),
			)
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", ErrConflict
		}
		return nil, "", fmt.Errorf("создание пользователя в БД: %w", err)
	}

	s.logger.Info("Пользователь создан",
		slog.Int64("user_id", user.ID),
		slog.String("keycloak_id", keycloakID),
		slog.String("email", email),
	)

	return user, tempPassword, nil
}

// Get возвращает пользователя по ID.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// List возвращает страницу пользователей и общее количество.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]*model.User, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update обновляет поля пользователя. nil-поля не изменяются.
func (s *UserService) Update(ctx context.Context, id int64, in model.UserUpdate) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if in.FirstName != nil {
		firstName, err := validate.FirstName(*in.FirstName)
		if err != nil {
			return nil, fmt.Errorf("%w: имя: %v", ErrValidation, err)
		}
		user.FirstName = firstName
	}
	if in.LastName != nil {
		lastName, err := validate.LastName(*in.LastName)
		if err != nil {
			return nil, fmt.Errorf("%w: фамилия: %v", ErrValidation, err)
		}
		user.LastName = lastName
	}
	if in.Email != nil {
		email, err := validate.Email(*in.Email)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		user.Email = email
	}
	if in.PhoneNumber != nil {
		if *in.PhoneNumber == "" {
			user.PhoneNumber = nil
		} else {
			phone, err := validate.Phone(*in.PhoneNumber)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			user.PhoneNumber = &phone
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Delete удаляет пользователя из БД и из Keycloak.
// Удаление в Keycloak — best-effort: локальная запись уже удалена,
// ошибка провайдера только логируется.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.idp.DeleteUser(ctx, user.KeycloakID); err != nil {
		s.logger.Warn("Пользователь удалён из БД, но не из Keycloak",
			slog.Int64("user_id", id),
			slog.String("keycloak_id", user.KeycloakID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Пользователь удалён", slog.Int64("user_id", id))
	return nil
}

// ResetPassword меняет пароль пользователя в Keycloak.
// При непустом currentPassword сначала проверяется текущий пароль
// (самостоятельная смена); пустой currentPassword — административный
// сброс с временным паролем.
func (s *UserService) ResetPassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: новый пароль не может быть пустым", ErrValidation)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	temporary := true
	if currentPassword != "" {
		// логин для проверки определяет сам клиент Keycloak:
		// username учётки может отличаться от локального email
		if !s.idp.VerifyPassword(ctx, user.KeycloakID, currentPassword) {
			return ErrWrongPassword
		}
		temporary = false
	}

	if err := s.idp.ResetPassword(ctx, user.KeycloakID, newPassword, temporary); err != nil {
		return err
	}

	s.logger.Info("Пароль пользователя изменён",
		slog.Int64("user_id", id),
		slog.Bool("temporary", temporary),
	)
	return nil
}
