// kpi.go — сводные показатели рабочего времени за текущую неделю.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/repository"
)

// Границы стандартного рабочего дня (UTC). Приход позже workdayStart
// считается опозданием, работа после workdayEnd — переработкой.
const (
	workdayStart = 9 * time.Hour
	workdayEnd   = 17 * time.Hour
)

// KPISummary — показатели пользователя за неделю.
type KPISummary struct {
	// UserID — владелец показателей
	UserID int64 `json:"user_id"`
	// WeekStart — понедельник 00:00 UTC текущей недели
	WeekStart time.Time `json:"week_start"`
	// TotalHours — суммарная длительность закрытых смен, часы
	TotalHours float64 `json:"total_hours"`
	// ShiftCount — количество закрытых смен
	ShiftCount int `json:"shift_count"`
	// AverageShiftHours — средняя длительность смены, часы
	AverageShiftHours float64 `json:"average_shift_hours"`
	// LateArrivals — количество приходов позже начала рабочего дня
	LateArrivals int `json:"late_arrivals"`
	// LateMinutes — суммарное опоздание, минуты
	LateMinutes int `json:"late_minutes"`
	// OvertimeHours — суммарная переработка после конца рабочего дня, часы
	OvertimeHours float64 `json:"overtime_hours"`
}

// KPIService — расчёт показателей рабочего времени.
type KPIService struct {
	clocks repository.ClockRepository
	users  repository.UserRepository
	logger *slog.Logger

	// подменяется в тестах для контроля времени
	now func() time.Time
}

// NewKPIService создаёт сервис показателей.
func NewKPIService(clocks repository.ClockRepository, users repository.UserRepository, logger *slog.Logger) *KPIService {
	return &KPIService{
		clocks: clocks,
		users:  users,
		logger: logger.With(slog.String("component", "kpi")),
		now:    time.Now,
	}
}

// Summary считает показатели пользователя с начала текущей недели
// (понедельник 00:00 UTC). Открытые смены в расчёт не входят.
func (s *KPIService) Summary(ctx context.Context, userID int64) (*KPISummary, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	weekStart := startOfWeek(s.now().UTC())
	records, err := s.clocks.ListByUserSince(ctx, userID, weekStart)
	if err != nil {
		return nil, err
	}

	summary := &KPISummary{UserID: userID, WeekStart: weekStart}

	var total, late, overtime time.Duration
	for _, c := range records {
		if c.Open() {
			continue
		}
		total += c.Duration()
		summary.ShiftCount++

		if d := lateBy(c); d > 0 {
			summary.LateArrivals++
			late += d
		}
		overtime += overtimeOf(c)
	}

	summary.TotalHours = roundHours(total)
	summary.LateMinutes = int(late.Round(time.Minute) / time.Minute)
	summary.OvertimeHours = roundHours(overtime)
	if summary.ShiftCount > 0 {
		summary.AverageShiftHours = roundHours(total / time.Duration(summary.ShiftCount))
	}

	return summary, nil
}

// startOfWeek возвращает понедельник 00:00 UTC недели, содержащей t.
func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// lateBy возвращает, насколько приход позже начала рабочего дня.
func lateBy(c *model.Clock) time.Duration {
	in := c.ClockIn.UTC()
	dayStart := time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, time.UTC)
	expected := dayStart.Add(workdayStart)
	if in.After(expected) {
		return in.Sub(expected)
	}
	return 0
}

// overtimeOf возвращает время, отработанное после конца рабочего дня.
func overtimeOf(c *model.Clock) time.Duration {
	out := c.ClockOut.UTC()
	dayStart := time.Date(out.Year(), out.Month(), out.Day(), 0, 0, 0, 0, time.UTC)
	boundary := dayStart.Add(workdayEnd)
	if out.After(boundary) {
		return out.Sub(boundary)
	}
	return 0
}

// roundHours переводит длительность в часы с двумя знаками.
func roundHours(d time.Duration) float64 {
	return float64(d.Round(36*time.Second)) / float64(time.Hour)
}
