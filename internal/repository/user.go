package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/timemanager/internal/domain/model"
)

// UserRepository — интерфейс CRUD для таблицы users.
type UserRepository interface {
	// Create создаёт пользователя. Возвращает ErrConflict при
	// нарушении уникальности (email, phone_number, keycloak_id).
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по внутреннему ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByKeycloakID возвращает пользователя по идентификатору субъекта Keycloak.
	GetByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error)
	// GetByEmail возвращает пользователя по email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update обновляет изменяемые поля пользователя.
	Update(ctx context.Context, u *model.User) error
	// UpdateRealmRoles записывает новый набор бизнес-ролей.
	UpdateRealmRoles(ctx context.Context, id int64, roles []string) error
	// Delete удаляет пользователя по ID.
	Delete(ctx context.Context, id int64) error
	// List возвращает пользователей с пагинацией.
	List(ctx context.Context, limit, offset int) ([]*model.User, error)
	// ListByTeam возвращает пользователей команды.
	ListByTeam(ctx context.Context, teamID int64) ([]*model.User, error)
	// Count возвращает количество пользователей.
	Count(ctx context.Context) (int, error)
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, first_name, last_name, email, phone_number, keycloak_id, realm_roles, team_id, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber,
		&u.KeycloakID, &u.RealmRoles, &u.TeamID, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.RealmRoles == nil {
		u.RealmRoles = []string{}
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (first_name, last_name, email, phone_number, keycloak_id, realm_roles, team_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		u.FirstName, u.LastName, u.Email, u.PhoneNumber, u.KeycloakID, u.RealmRoles, u.TeamID,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE keycloak_id = $1`, userColumns)

	u, err := scanUser(r.db.QueryRow(ctx, query, keycloakID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя по keycloak_id: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя по email: %w", err)
	}
	return u, nil
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, email = $4, phone_number = $5, team_id = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		u.ID, u.FirstName, u.LastName, u.Email, u.PhoneNumber, u.TeamID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdateRealmRoles(ctx context.Context, id int64, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET realm_roles = $2 WHERE id = $1`, id, roles)
	if err != nil {
		return fmt.Errorf("ошибка обновления ролей пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2`, userColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) ListByTeam(ctx context.Context, teamID int64) ([]*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE team_id = $1 ORDER BY id`, userColumns)

	rows, err := r.db.Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей команды: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	return count, nil
}
