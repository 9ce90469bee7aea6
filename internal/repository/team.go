package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/timemanager/internal/domain/model"
)

// TeamRepository — интерфейс CRUD для таблицы teams.
type TeamRepository interface {
	// Create создаёт команду. Возвращает ErrConflict при дублировании имени.
	Create(ctx context.Context, t *model.Team) error
	// GetByID возвращает команду по ID.
	GetByID(ctx context.Context, id int64) (*model.Team, error)
	// Update обновляет изменяемые поля команды.
	Update(ctx context.Context, t *model.Team) error
	// Delete удаляет команду по ID.
	Delete(ctx context.Context, id int64) error
	// List возвращает команды с пагинацией.
	List(ctx context.Context, limit, offset int) ([]*model.Team, error)
	// Count возвращает количество команд.
	Count(ctx context.Context) (int, error)
}

// teamRepo — реализация TeamRepository.
type teamRepo struct {
	db DBTX
}

// NewTeamRepository создаёт репозиторий команд.
func NewTeamRepository(db DBTX) TeamRepository {
	return &teamRepo{db: db}
}

const teamColumns = `id, name, description, manager_id, created_at`

func (r *teamRepo) Create(ctx context.Context, t *model.Team) error {
	query := `
		INSERT INTO teams (name, description, manager_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, t.Name, t.Description, t.ManagerID).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания команды: %w", err)
	}
	return nil
}

func (r *teamRepo) GetByID(ctx context.Context, id int64) (*model.Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE id = $1`, teamColumns)

	t := &model.Team{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Description, &t.ManagerID, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения команды: %w", err)
	}
	return t, nil
}

func (r *teamRepo) Update(ctx context.Context, t *model.Team) error {
	query := `
		UPDATE teams
		SET name = $2, description = $3, manager_id = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, t.ID, t.Name, t.Description, t.ManagerID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка обновления команды: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *teamRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления команды: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *teamRepo) List(ctx context.Context, limit, offset int) ([]*model.Team, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM teams
		ORDER BY id
		LIMIT $1 OFFSET $2`, teamColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка команд: %w", err)
	}
	defer rows.Close()

	var result []*model.Team
	for rows.Next() {
		t := &model.Team{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.ManagerID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования команды: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *teamRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM teams`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта команд: %w", err)
	}
	return count, nil
}
