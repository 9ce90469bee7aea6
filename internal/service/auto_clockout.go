// auto_clockout.go — фоновая задача автозакрытия забытых смен.
//
// AutoClockoutService запускает горутину, которая раз в сутки
// (TM_AUTO_CLOCKOUT_AT, по умолчанию 00:01 UTC) закрывает открытые
// записи, начатые до начала текущих суток. Запись закрывается временем
// 23:59:59 UTC суток её clock_in.
//
// Все закрытия одного прохода применяются в одной транзакции.
// Запись, закрытая параллельно (вручную или другой репликой),
// пропускается; ошибка SQL откатывает проход целиком, записи
// обработает следующий запуск. Задача идемпотентна: повторный
// запуск не находит уже закрытых записей.
//
// Prometheus-метрики:
//   - tm_auto_clockout_duration_seconds — длительность прохода
//   - tm_auto_clockout_closed_total — количество закрытых записей
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/timemanager/internal/repository"
)

// txRunner — выполнение функции в транзакции БД.
// Реализуется repository.TxRunner, в тестах подменяется моком.
type txRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Prometheus-метрики автозакрытия смен.
var (
	autoClockoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tm_auto_clockout_duration_seconds",
		Help:    "Длительность прохода автозакрытия смен",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms … ~5s
	})
	autoClockoutClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tm_auto_clockout_closed_total",
		Help: "Количество смен, закрытых автоматически",
	})
)

// AutoClockoutService — фоновый сервис автозакрытия смен.
type AutoClockoutService struct {
	clocks repository.ClockRepository
	tx     txRunner
	runAt  string // время запуска в формате "15:04" (UTC)
	logger *slog.Logger

	// подменяется в тестах для контроля времени
	now func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutoClockoutService создаёт сервис автозакрытия.
// runAt — время суточного запуска в формате "15:04" (UTC).
func NewAutoClockoutService(clocks repository.ClockRepository, tx txRunner, runAt string, logger *slog.Logger) *AutoClockoutService {
	return &AutoClockoutService{
		clocks: clocks,
		tx:     tx,
		runAt:  runAt,
		logger: logger.With(slog.String("component", "auto_clockout")),
		now:    time.Now,
	}
}

// Start запускает фоновую горутину с суточным расписанием.
func (s *AutoClockoutService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Автозакрытие смен запущено",
			slog.String("run_at", s.runAt),
		)

		for {
			next := s.nextRun(s.now().UTC())
			timer := time.NewTimer(next.Sub(s.now().UTC()))

			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("Автозакрытие смен остановлено")
				return
			case <-timer.C:
				closed, err := s.RunOnce(ctx)
				if err != nil {
					s.logger.Error("Ошибка прохода автозакрытия смен",
						slog.String("error", err.Error()),
					)
				} else {
					s.logger.Info("Проход автозакрытия смен завершён",
						slog.Int("closed", closed),
					)
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *AutoClockoutService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// nextRun возвращает ближайший момент запуска строго после from.
func (s *AutoClockoutService) nextRun(from time.Time) time.Time {
	at, err := time.Parse("15:04", s.runAt)
	if err != nil {
		// конфигурация валидируется при старте, сюда попадать не должны
		at = time.Date(0, 1, 1, 0, 1, 0, 0, time.UTC)
	}

	next := time.Date(from.Year(), from.Month(), from.Day(), at.Hour(), at.Minute(), 0, 0, time.UTC)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce закрывает открытые записи, начатые до начала текущих суток.
// Все закрытия применяются в одной транзакции: ошибка SQL откатывает
// проход, следующий запуск обработает записи заново. Возвращает
// количество закрытых записей.
func (s *AutoClockoutService) RunOnce(ctx context.Context) (int, error) {
	startedAt := s.now().UTC()
	todayStart := startedAt.Truncate(24 * time.Hour)

	stale, err := s.clocks.ListOpenBefore(ctx, todayStart)
	if err != nil {
		return 0, fmt.Errorf("получение забытых открытых смен: %w", err)
	}

	closed := 0
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		clocks := s.clocks.WithTx(tx)
		for _, c := range stale {
			clockOut := endOfDay(c.ClockIn)
			if err := clocks.Close(ctx, c.ID, clockOut); err != nil {
				// ErrNotFound: запись закрыли параллельно, это не ошибка
				if errors.Is(err, repository.ErrNotFound) {
					continue
				}
				return fmt.Errorf("закрытие смены %d: %w", c.ID, err)
			}

			closed++
			s.logger.Info("Смена закрыта автоматически",
				slog.Int64("clock_id", c.ID),
				slog.Int64("user_id", c.UserID),
				slog.Time("clock_in", c.ClockIn),
				slog.Time("clock_out", clockOut),
			)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("проход автозакрытия смен: %w", err)
	}

	autoClockoutClosed.Add(float64(closed))
	autoClockoutDuration.Observe(s.now().UTC().Sub(startedAt).Seconds())

	return closed, nil
}

// endOfDay возвращает 23:59:59 UTC суток, содержащих t.
func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}
