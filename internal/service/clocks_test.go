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

// fakeClockRepo — in-memory реализация ClockRepository для unit-тестов.
type fakeClockRepo struct {
	byID   map[int64]*model.Clock
	nextID int64
}

func newFakeClockRepo() *fakeClockRepo {
	return &fakeClockRepo{byID: map[int64]*model.Clock{}, nextID: 1}
}

func (f *fakeClockRepo) Create(_ context.Context, c *model.Clock) error {
	if c.ClockOut == nil {
		for _, existing := range f.byID {
			if existing.UserID == c.UserID && existing.ClockOut == nil {
				return repository.ErrConflict
			}
		}
	}
	c.ID = f.nextID
	f.nextID++
	clone := *c
	f.byID[c.ID] = &clone
	return nil
}

func (f *fakeClockRepo) GetByID(_ context.Context, id int64) (*model.Clock, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeClockRepo) GetOpenByUser(_ context.Context, userID int64) (*model.Clock, error) {
	for _, c := range f.byID {
		if c.UserID == userID && c.ClockOut == nil {
			clone := *c
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeClockRepo) Close(_ context.Context, id int64, clockOut time.Time) error {
	c, ok := f.byID[id]
	if !ok || c.ClockOut != nil {
		return repository.ErrNotFound
	}
	out := clockOut
	c.ClockOut = &out
	return nil
}

func (f *fakeClockRepo) ListByUser(_ context.Context, userID int64, _, _ int) ([]*model.Clock, error) {
	var result []*model.Clock
	for _, c := range f.byID {
		if c.UserID == userID {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (f *fakeClockRepo) ListByUserSince(_ context.Context, userID int64, since time.Time) ([]*model.Clock, error) {
	var result []*model.Clock
	for _, c := range f.byID {
		if c.UserID == userID && !c.ClockIn.Before(since) {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (f *fakeClockRepo) ListOpenBefore(_ context.Context, boundary time.Time) ([]*model.Clock, error) {
	var result []*model.Clock
	for _, c := range f.byID {
		if c.ClockOut == nil && c.ClockIn.Before(boundary) {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (f *fakeClockRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeClockRepo) WithTx(_ pgx.Tx) repository.ClockRepository { return f }

// --- Тесты ClockService ---

// TestToggle_OpenThenClose — первый Toggle открывает смену, второй закрывает.
func TestToggle_OpenThenClose(t *testing.T) {
	repo := newFakeClockRepo()
	svc := NewClockService(repo, newFakeUserRepo(), testLogger())

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	clock, err := svc.Toggle(context.Background(), 1)
	if err != nil {
		t.Fatalf("первый Toggle: %v", err)
	}
	if !clock.Open() {
		t.Error("после первого Toggle запись должна быть открыта")
	}
	if !clock.ClockIn.Equal(base) {
		t.Errorf("ClockIn = %v, хотели %v", clock.ClockIn, base)
	}

	svc.now = func() time.Time { return base.Add(8 * time.Hour) }

	closed, err := svc.Toggle(context.Background(), 1)
	if err != nil {
		t.Fatalf("второй Toggle: %v", err)
	}
	if closed.Open() {
		t.Error("после второго Toggle запись должна быть закрыта")
	}
	if closed.ID != clock.ID {
		t.Errorf("закрыта запись %d, хотели %d", closed.ID, clock.ID)
	}
	if got := closed.Duration(); got != 8*time.Hour {
		t.Errorf("Duration = %v, хотели 8h", got)
	}

	// третий Toggle открывает новую запись
	reopened, err := svc.Toggle(context.Background(), 1)
	if err != nil {
		t.Fatalf("третий Toggle: %v", err)
	}
	if !reopened.Open() || reopened.ID == clock.ID {
		t.Errorf("третий Toggle должен открыть новую запись, получили %+v", reopened)
	}
}

// TestToggle_IndependentUsers — смены разных пользователей независимы.
func TestToggle_IndependentUsers(t *testing.T) {
	repo := newFakeClockRepo()
	svc := NewClockService(repo, newFakeUserRepo(), testLogger())

	if _, err := svc.Toggle(context.Background(), 1); err != nil {
		t.Fatalf("Toggle пользователя 1: %v", err)
	}
	clock2, err := svc.Toggle(context.Background(), 2)
	if err != nil {
		t.Fatalf("Toggle пользователя 2: %v", err)
	}
	if !clock2.Open() {
		t.Error("смена пользователя 2 должна быть открыта")
	}

	open1, err := svc.Current(context.Background(), 1)
	if err != nil {
		t.Fatalf("Current пользователя 1: %v", err)
	}
	if !open1.Open() {
		t.Error("смена пользователя 1 должна остаться открытой")
	}
}

// TestToggle_CreateRace — конфликт вставки закрывает запись победителя.
func TestToggle_CreateRace(t *testing.T) {
	repo := newFakeClockRepo()
	svc := NewClockService(&racingClockRepo{fakeClockRepo: repo}, newFakeUserRepo(), testLogger())

	clock, err := svc.Toggle(context.Background(), 1)
	if err != nil {
		t.Fatalf("Toggle при гонке вставки: %v", err)
	}
	if clock.Open() {
		t.Error("проигравший гонку Toggle должен закрыть чужую открытую запись")
	}
}

// racingClockRepo — имитация гонки: между GetOpenByUser и Create
// другой процесс открывает смену.
type racingClockRepo struct {
	*fakeClockRepo
	raced bool
}

func (r *racingClockRepo) Create(ctx context.Context, c *model.Clock) error {
	if !r.raced {
		r.raced = true
		rival := &model.Clock{UserID: c.UserID, ClockIn: c.ClockIn.Add(-time.Minute)}
		if err := r.fakeClockRepo.Create(ctx, rival); err != nil {
			return err
		}
	}
	return r.fakeClockRepo.Create(ctx, c)
}

// TestCurrent_NoOpenClock — Current без открытой смены даёт ErrNotFound.
func TestCurrent_NoOpenClock(t *testing.T) {
	svc := NewClockService(newFakeClockRepo(), newFakeUserRepo(), testLogger())

	_, err := svc.Current(context.Background(), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидали ErrNotFound, получили %v", err)
	}
}
