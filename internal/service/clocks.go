// clocks.go — учёт рабочего времени: отметки прихода/ухода.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/repository"
)

// ClockService — бизнес-логика отметок времени.
type ClockService struct {
	clocks repository.ClockRepository
	users  repository.UserRepository
	logger *slog.Logger

	// подменяется в тестах для контроля времени
	now func() time.Time
}

// NewClockService создаёт сервис учёта времени.
func NewClockService(clocks repository.ClockRepository, users repository.UserRepository, logger *slog.Logger) *ClockService {
	return &ClockService{
		clocks: clocks,
		users:  users,
		logger: logger.With(slog.String("component", "clocks")),
		now:    time.Now,
	}
}

// Toggle переключает состояние смены пользователя: открытая запись
// закрывается текущим моментом, иначе создаётся новая открытая.
// Возвращает затронутую запись.
//
// Гонка двух одновременных Toggle одного пользователя разрешается
// частичным уникальным индексом: проигравший вставку закрывает
// запись победителя.
func (s *ClockService) Toggle(ctx context.Context, userID int64) (*model.Clock, error) {
	now := s.now().UTC().Truncate(time.Second)

	open, err := s.clocks.GetOpenByUser(ctx, userID)
	if err == nil {
		return s.closeClock(ctx, open, now)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("поиск открытой записи пользователя %d: %w", userID, err)
	}

	clock := &model.Clock{UserID: userID, ClockIn: now}
	err = s.clocks.Create(ctx, clock)
	if err == nil {
		s.logger.Info("Смена открыта",
			slog.Int64("user_id", userID),
			slog.Int64("clock_id", clock.ID),
			slog.Time("clock_in", now),
		)
		return clock, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, fmt.Errorf("открытие смены пользователя %d: %w", userID, err)
	}

	// параллельный Toggle успел открыть запись — закрываем её
	open, err = s.clocks.GetOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("повторный поиск открытой записи после конфликта: %w", err)
	}
	return s.closeClock(ctx, open, now)
}

func (s *ClockService) closeClock(ctx context.Context, open *model.Clock, at time.Time) (*model.Clock, error) {
	if err := s.clocks.Close(ctx, open.ID, at); err != nil {
		return nil, fmt.Errorf("закрытие записи %d: %w", open.ID, err)
	}
	open.ClockOut = &at

	s.logger.Info("Смена закрыта",
		slog.Int64("user_id", open.UserID),
		slog.Int64("clock_id", open.ID),
		slog.Duration("duration", open.Duration()),
	)
	return open, nil
}

// Current возвращает открытую запись пользователя или ErrNotFound.
func (s *ClockService) Current(ctx context.Context, userID int64) (*model.Clock, error) {
	clock, err := s.clocks.GetOpenByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return clock, nil
}

// ListByUser возвращает записи пользователя, новые первыми.
// Возвращает ErrNotFound, если пользователь не существует.
func (s *ClockService) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Clock, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.clocks.ListByUser(ctx, userID, limit, offset)
}

// Get возвращает запись по ID.
func (s *ClockService) Get(ctx context.Context, id int64) (*model.Clock, error) {
	clock, err := s.clocks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return clock, nil
}
