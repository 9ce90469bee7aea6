package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/repository"
)

// fakeTxRunner — выполняет функцию без реальной транзакции,
// подсчитывая количество открытых транзакций.
type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) RunInTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	f.calls++
	return fn(nil)
}

func newAutoClockout(repo repository.ClockRepository, tx *fakeTxRunner) *AutoClockoutService {
	svc := NewAutoClockoutService(repo, tx, "00:01", testLogger())
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC) }
	return svc
}

// TestRunOnce_ClosesStaleClocks — забытые смены закрываются концом своих суток.
func TestRunOnce_ClosesStaleClocks(t *testing.T) {
	repo := newFakeClockRepo()

	// вчерашняя забытая смена
	stale := &model.Clock{UserID: 1, ClockIn: time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)}
	if err := repo.Create(context.Background(), stale); err != nil {
		t.Fatalf("создание записи: %v", err)
	}
	// сегодняшняя открытая смена — не трогается
	today := &model.Clock{UserID: 2, ClockIn: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	if err := repo.Create(context.Background(), today); err != nil {
		t.Fatalf("создание записи: %v", err)
	}

	tx := &fakeTxRunner{}
	svc := newAutoClockout(repo, tx)

	closed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if closed != 1 {
		t.Errorf("закрыто = %d, хотели 1", closed)
	}
	if tx.calls != 1 {
		t.Errorf("транзакций = %d, все закрытия прохода должны идти в одной", tx.calls)
	}

	got, err := repo.GetByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	wantOut := time.Date(2026, 3, 9, 23, 59, 59, 0, time.UTC)
	if got.ClockOut == nil || !got.ClockOut.Equal(wantOut) {
		t.Errorf("ClockOut = %v, хотели %v", got.ClockOut, wantOut)
	}

	todayGot, err := repo.GetByID(context.Background(), today.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !todayGot.Open() {
		t.Error("сегодняшняя смена не должна закрываться")
	}
}

// TestRunOnce_Idempotent — повторный проход ничего не меняет.
func TestRunOnce_Idempotent(t *testing.T) {
	repo := newFakeClockRepo()
	stale := &model.Clock{UserID: 1, ClockIn: time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)}
	if err := repo.Create(context.Background(), stale); err != nil {
		t.Fatalf("создание записи: %v", err)
	}

	svc := newAutoClockout(repo, &fakeTxRunner{})

	if _, err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("первый RunOnce: %v", err)
	}
	closed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("повторный RunOnce: %v", err)
	}
	if closed != 0 {
		t.Errorf("повторный проход закрыл %d записей, хотели 0", closed)
	}
}

// TestRunOnce_MultiDayStale — смена двухдневной давности закрывается
// концом суток своего clock_in, а не вчерашних.
func TestRunOnce_MultiDayStale(t *testing.T) {
	repo := newFakeClockRepo()
	stale := &model.Clock{UserID: 1, ClockIn: time.Date(2026, 3, 7, 14, 30, 0, 0, time.UTC)}
	if err := repo.Create(context.Background(), stale); err != nil {
		t.Fatalf("создание записи: %v", err)
	}

	svc := newAutoClockout(repo, &fakeTxRunner{})

	if _, err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	got, err := repo.GetByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	wantOut := time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC)
	if got.ClockOut == nil || !got.ClockOut.Equal(wantOut) {
		t.Errorf("ClockOut = %v, хотели %v", got.ClockOut, wantOut)
	}
}

// failingCloseRepo — Close падает для заданного ID.
type failingCloseRepo struct {
	*fakeClockRepo
	failID int64
}

func (r *failingCloseRepo) Close(ctx context.Context, id int64, clockOut time.Time) error {
	if id == r.failID {
		return errors.New("соединение с БД потеряно")
	}
	return r.fakeClockRepo.Close(ctx, id, clockOut)
}

func (r *failingCloseRepo) WithTx(_ pgx.Tx) repository.ClockRepository { return r }

// TestRunOnce_SQLErrorAbortsRun — ошибка SQL откатывает проход:
// RunOnce возвращает ошибку, следующий запуск обработает записи заново.
func TestRunOnce_SQLErrorAbortsRun(t *testing.T) {
	base := newFakeClockRepo()
	first := &model.Clock{UserID: 1, ClockIn: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)}
	second := &model.Clock{UserID: 2, ClockIn: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)}
	for _, c := range []*model.Clock{first, second} {
		if err := base.Create(context.Background(), c); err != nil {
			t.Fatalf("создание записи: %v", err)
		}
	}

	repo := &failingCloseRepo{fakeClockRepo: base, failID: second.ID}
	svc := newAutoClockout(repo, &fakeTxRunner{})

	closed, err := svc.RunOnce(context.Background())
	if err == nil {
		t.Fatal("ожидали ошибку прохода при сбое SQL")
	}
	if closed != 0 {
		t.Errorf("закрыто = %d, при откате прохода хотели 0", closed)
	}

	// после восстановления БД проход закрывает оставшиеся записи
	repo.failID = 0
	if _, err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("повторный RunOnce: %v", err)
	}
	for _, c := range []*model.Clock{first, second} {
		got, err := base.GetByID(context.Background(), c.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Open() {
			t.Errorf("запись %d осталась открытой после повторного прохода", c.ID)
		}
	}
}

// TestRunOnce_RaceWithManualClose — параллельно закрытая запись
// пропускается, проход не прерывается.
func TestRunOnce_RaceWithManualClose(t *testing.T) {
	base := newFakeClockRepo()
	stale := &model.Clock{UserID: 1, ClockIn: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)}
	if err := base.Create(context.Background(), stale); err != nil {
		t.Fatalf("создание записи: %v", err)
	}

	repo := &notFoundCloseRepo{fakeClockRepo: base}
	svc := newAutoClockout(repo, &fakeTxRunner{})

	closed, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if closed != 0 {
		t.Errorf("закрыто = %d, хотели 0", closed)
	}
}

type notFoundCloseRepo struct {
	*fakeClockRepo
}

func (r *notFoundCloseRepo) Close(_ context.Context, _ int64, _ time.Time) error {
	return repository.ErrNotFound
}

func (r *notFoundCloseRepo) WithTx(_ pgx.Tx) repository.ClockRepository { return r }

// TestNextRun — расчёт следующего запуска.
func TestNextRun(t *testing.T) {
	svc := NewAutoClockoutService(newFakeClockRepo(), &fakeTxRunner{}, "00:01", testLogger())

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			"до времени запуска",
			time.Date(2026, 3, 10, 0, 0, 30, 0, time.UTC),
			time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC),
		},
		{
			"после времени запуска",
			time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC),
		},
		{
			"ровно во время запуска",
			time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC),
			time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.nextRun(tt.from); !got.Equal(tt.want) {
				t.Errorf("nextRun(%v) = %v, хотели %v", tt.from, got, tt.want)
			}
		})
	}
}
