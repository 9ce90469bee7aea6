package model

import "time"

// Clock — запись учёта рабочего времени, хранится в таблице clocks.
// Инвариант бизнес-логики: у пользователя не более одной открытой
// записи (clock_out IS NULL) одновременно.
type Clock struct {
	// ID — внутренний числовой идентификатор
	ID int64
	// UserID — владелец записи
	UserID int64
	// ClockIn — момент начала работы
	ClockIn time.Time
	// ClockOut — момент окончания работы (nil — запись открыта)
	ClockOut *time.Time
}

// Open сообщает, открыта ли запись.
func (c *Clock) Open() bool {
	return c.ClockOut == nil
}

// Duration возвращает длительность закрытой записи.
// Для открытой записи возвращает 0.
func (c *Clock) Duration() time.Duration {
	if c.ClockOut == nil {
		return 0
	}
	return c.ClockOut.Sub(c.ClockIn)
}
