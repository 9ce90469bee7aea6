// Пакет repository — доступ к данным учёта рабочего времени в PostgreSQL.
// Таблицы users, teams и clocks обслуживаются чистым SQL через pgx, без ORM.
// Уникальность открытой смены обеспечивает частичный индекс clocks(user_id)
// WHERE clock_out IS NULL; его нарушение репозитории переводят в ErrConflict.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена (или уже изменена конкурентом).
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — нарушение уникальности: email, имя команды
	// или вторая открытая смена пользователя.
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// DBTX — исполнитель SQL-запросов. Ему удовлетворяют и *pgxpool.Pool,
// и pgx.Tx, поэтому один и тот же репозиторий работает как на пуле,
// так и внутри транзакции (см. ClockRepository.WithTx).
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner открывает транзакции на пуле подключений.
// Используется задачей автозакрытия смен: все закрытия одного прохода
// применяются атомарно.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner поверх пула.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn в транзакции: ошибка fn откатывает её,
// успешное завершение — коммитит.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением
// уникальности PostgreSQL (включая частичные индексы).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
