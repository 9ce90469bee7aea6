// teams.go — управление командами и их составом.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/repository"
)

// TeamService — бизнес-логика команд.
type TeamService struct {
	teams  repository.TeamRepository
	users  repository.UserRepository
	logger *slog.Logger
}

// NewTeamService создаёт сервис команд.
func NewTeamService(teams repository.TeamRepository, users repository.UserRepository, logger *slog.Logger) *TeamService {
	return &TeamService{
		teams:  teams,
		users:  users,
		logger: logger.With(slog.String("component", "teams")),
	}
}

// Create создаёт команду. Имя уникально.
func (s *TeamService) Create(ctx context.Context, in model.TeamCreate) (*model.Team, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: название команды не может быть пустым", ErrValidation)
	}

	if in.ManagerID != nil {
		if _, err := s.users.GetByID(ctx, *in.ManagerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: менеджер %d не найден", ErrValidation, *in.ManagerID)
			}
			return nil, err
		}
	}

	team := &model.Team{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		ManagerID:   in.ManagerID,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.logger.Info("Команда создана",
		slog.Int64("team_id", team.ID),
		slog.String("name", team.Name),
	)
	return team, nil
}

// Get возвращает команду по ID.
func (s *TeamService) Get(ctx context.Context, id int64) (*model.Team, error) {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

// List возвращает все команды. Команд немного, пагинация фиксированная.
func (s *TeamService) List(ctx context.Context) ([]*model.Team, error) {
	return s.teams.List(ctx, 1000, 0)
}

// Update обновляет поля команды. nil-поля не изменяются.
func (s *TeamService) Update(ctx context.Context, id int64, in model.TeamUpdate) (*model.Team, error) {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: название команды не может быть пустым", ErrValidation)
		}
		team.Name = name
	}
	if in.Description != nil {
		team.Description = strings.TrimSpace(*in.Description)
	}
	if in.ManagerID != nil {
		if _, err := s.users.GetByID(ctx, *in.ManagerID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w: менеджер %d не найден", ErrValidation, *in.ManagerID)
			}
			return nil, err
		}
		team.ManagerID = in.ManagerID
	}

	if err := s.teams.Update(ctx, team); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

// Delete удаляет команду. Пользователи команды остаются (team_id
// сбрасывается внешним ключом ON DELETE SET NULL).
func (s *TeamService) Delete(ctx context.Context, id int64) error {
	if err := s.teams.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.logger.Info("Команда удалена", slog.Int64("team_id", id))
	return nil
}

// ListMembers возвращает состав команды.
func (s *TeamService) ListMembers(ctx context.Context, teamID int64) ([]*model.User, error) {
	if _, err := s.teams.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.users.ListByTeam(ctx, teamID)
}

// AddMember добавляет пользователя в команду (перезаписывает прежнюю).
func (s *TeamService) AddMember(ctx context.Context, teamID, userID int64) error {
	if _, err := s.teams.GetByID(ctx, teamID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	user.TeamID = &teamID
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("добавление пользователя %d в команду %d: %w", userID, teamID, err)
	}

	s.logger.Info("Пользователь добавлен в команду",
		slog.Int64("user_id", userID),
		slog.Int64("team_id", teamID),
	)
	return nil
}

// RemoveMember убирает пользователя из команды.
// Если пользователь состоит в другой команде, возвращается ErrNotFound.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if user.TeamID == nil || *user.TeamID != teamID {
		return ErrNotFound
	}

	user.TeamID = nil
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("исключение пользователя %d из команды %d: %w", userID, teamID, err)
	}

	s.logger.Info("Пользователь исключён из команды",
		slog.Int64("user_id", userID),
		slog.Int64("team_id", teamID),
	)
	return nil
}
