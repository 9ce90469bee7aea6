package model

import "time"

// Team — команда сотрудников, хранится в таблице teams.
type Team struct {
	// ID — внутренний числовой идентификатор
	ID int64
	// Name — название команды (уникальное)
	Name string
	// Description — описание команды
	Description string
	// ManagerID — менеджер команды (опционально)
	ManagerID *int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// TeamCreate — входные данные создания команды.
type TeamCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ManagerID   *int64 `json:"manager_id,omitempty"`
}

// TeamUpdate — частичное обновление команды.
type TeamUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ManagerID   *int64  `json:"manager_id,omitempty"`
}
