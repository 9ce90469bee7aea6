// Пакет model — доменные модели Time Manager.
package model

import "time"

// User — сотрудник, хранится в таблице users.
// Создаётся либо явно (POST /users + провижининг в Keycloak),
// либо автоматически при первом входе с валидным токеном Keycloak.
type User struct {
	// ID — внутренний числовой идентификатор
	ID int64
	// FirstName — имя (нормализуется: первая буква заглавная)
	FirstName string
	// LastName — фамилия (нормализуется: верхний регистр)
	LastName string
	// Email — адрес электронной почты (уникальный, нижний регистр)
	Email string
	// PhoneNumber — телефон в формате E.164 (уникальный, опционально)
	PhoneNumber *string
	// KeycloakID — идентификатор субъекта в Keycloak (sub, уникальный)
	KeycloakID string
	// RealmRoles — актуальный набор бизнес-ролей из последнего валидного токена
	RealmRoles []string
	// TeamID — команда пользователя (опционально)
	TeamID *int64
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// FullName возвращает полное имя пользователя.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HasRole проверяет наличие бизнес-роли у пользователя.
func (u *User) HasRole(role string) bool {
	for _, r := range u.RealmRoles {
		if r == role {
			return true
		}
	}
	return false
}

// UserCreate — входные данные создания пользователя.
type UserCreate struct {
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	PhoneNumber  string   `json:"phone_number"`
	Username     string   `json:"username,omitempty"`
	TempPassword string   `json:"temp_password,omitempty"`
	RealmRoles   []string `json:"realm_roles,omitempty"`
}

// UserUpdate — частичное обновление пользователя.
// nil-поля не изменяются.
type UserUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}
