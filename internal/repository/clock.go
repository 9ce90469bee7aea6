package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/timemanager/internal/domain/model"
)

// ClockRepository — интерфейс доступа к таблице clocks.
type ClockRepository interface {
	// Create создаёт запись учёта времени. Возвращает ErrConflict,
	// если у пользователя уже есть открытая запись.
	Create(ctx context.Context, c *model.Clock) error
	// GetByID возвращает запись по ID.
	GetByID(ctx context.Context, id int64) (*model.Clock, error)
	// GetOpenByUser возвращает открытую запись пользователя или ErrNotFound.
	GetOpenByUser(ctx context.Context, userID int64) (*model.Clock, error)
	// Close закрывает запись указанным временем.
	Close(ctx context.Context, id int64, clockOut time.Time) error
	// ListByUser возвращает записи пользователя, новые первыми.
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Clock, error)
	// ListByUserSince возвращает записи пользователя, начатые не раньше since.
	ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]*model.Clock, error)
	// ListOpenBefore возвращает открытые записи, начатые раньше границы.
	// Используется задачей автозакрытия смен.
	ListOpenBefore(ctx context.Context, boundary time.Time) ([]*model.Clock, error)
	// Delete удаляет запись по ID.
	Delete(ctx context.Context, id int64) error
	// WithTx возвращает репозиторий, работающий внутри транзакции.
	WithTx(tx pgx.Tx) ClockRepository
}

// clockRepo — реализация ClockRepository.
type clockRepo struct {
	db DBTX
}

// NewClockRepository создаёт репозиторий записей учёта времени.
func NewClockRepository(db DBTX) ClockRepository {
	return &clockRepo{db: db}
}

const clockColumns = `id, user_id, clock_in, clock_out`

func scanClock(row pgx.Row) (*model.Clock, error) {
	c := &model.Clock{}
	if err := row.Scan(&c.ID, &c.UserID, &c.ClockIn, &c.ClockOut); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *clockRepo) Create(ctx context.Context, c *model.Clock) error {
	query := `
		INSERT INTO clocks (user_id, clock_in, clock_out)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.db.QueryRow(ctx, query, c.UserID, c.ClockIn, c.ClockOut).Scan(&c.ID)
	if err != nil {
		// частичный уникальный индекс: одна открытая запись на пользователя
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания записи учёта времени: %w", err)
	}
	return nil
}

func (r *clockRepo) GetByID(ctx context.Context, id int64) (*model.Clock, error) {
	query := fmt.Sprintf(`SELECT %s FROM clocks WHERE id = $1`, clockColumns)

	c, err := scanClock(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи учёта времени: %w", err)
	}
	return c, nil
}

func (r *clockRepo) GetOpenByUser(ctx context.Context, userID int64) (*model.Clock, error) {
	query := fmt.Sprintf(`SELECT %s FROM clocks WHERE user_id = $1 AND clock_out IS NULL`, clockColumns)

	c, err := scanClock(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения открытой записи: %w", err)
	}
	return c, nil
}

func (r *clockRepo) Close(ctx context.Context, id int64, clockOut time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE clocks SET clock_out = $2 WHERE id = $1 AND clock_out IS NULL`,
		id, clockOut,
	)
	if err != nil {
		return fmt.Errorf("ошибка закрытия записи учёта времени: %w", err)
	}
	// запись не существует либо уже закрыта
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clockRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*model.Clock, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM clocks
		WHERE user_id = $1
		ORDER BY clock_in DESC
		LIMIT $2 OFFSET $3`, clockColumns)

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей пользователя: %w", err)
	}
	defer rows.Close()

	return collectClocks(rows)
}

func (r *clockRepo) ListByUserSince(ctx context.Context, userID int64, since time.Time) ([]*model.Clock, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM clocks
		WHERE user_id = $1 AND clock_in >= $2
		ORDER BY clock_in`, clockColumns)

	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей пользователя за период: %w", err)
	}
	defer rows.Close()

	return collectClocks(rows)
}

func (r *clockRepo) ListOpenBefore(ctx context.Context, boundary time.Time) ([]*model.Clock, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM clocks
		WHERE clock_out IS NULL AND clock_in < $1
		ORDER BY clock_in`, clockColumns)

	rows, err := r.db.Query(ctx, query, boundary)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения открытых записей: %w", err)
	}
	defer rows.Close()

	return collectClocks(rows)
}

func (r *clockRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи учёта времени: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *clockRepo) WithTx(tx pgx.Tx) ClockRepository {
	return &clockRepo{db: tx}
}

func collectClocks(rows pgx.Rows) ([]*model.Clock, error) {
	var result []*model.Clock
	for rows.Next() {
		c, err := scanClock(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи учёта времени: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
