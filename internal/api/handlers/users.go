// users.go — обработчики /api/v1/users endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/arturkryukov/timemanager/internal/api/errors"
	"github.com/arturkryukov/timemanager/internal/api/middleware"
	"github.com/arturkryukov/timemanager/internal/domain/model"
)

// userCreatedResponse — ответ создания пользователя.
// Временный пароль возвращается один раз и нигде не сохраняется.
type userCreatedResponse struct {
	User         userResponse `json:"user"`
	TempPassword string       `json:"temp_password"`
}

// userListResponse — ответ списка пользователей.
type userListResponse struct {
	Items   []userResponse `json:"items"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// CreateUser — POST /api/v1/users.
// Создаёт пользователя в Keycloak и локальной БД.
// Доступ: manager или organization.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	user, tempPassword, err := h.users.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания пользователя")
		return
	}

	writeJSON(w, http.StatusCreated, userCreatedResponse{
		User:         mapUser(user),
		TempPassword: tempPassword,
	})
}

// ListUsers — GET /api/v1/users.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	users, total, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения списка пользователей")
		return
	}

	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = mapUser(u)
	}

	writeJSON(w, http.StatusOK, userListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+len(items) < total,
	})
}

// GetUser — GET /api/v1/users/{id}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID пользователя")
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения пользователя")
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// GetCurrentUser — GET /api/v1/users/me.
// Возвращает пользователя текущего токена.
func (h *APIHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

// UpdateUser — PUT /api/v1/users/{id}.
// Доступ: manager или organization.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID пользователя")
		return
	}

	var req model.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	user, err := h.users.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления пользователя")
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// DeleteUser — DELETE /api/v1/users/{id}.
// Доступ: manager или organization.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID пользователя")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления пользователя")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListUserClocks — GET /api/v1/users/{id}/clocks.
// Свои записи видит любой пользователь, чужие — manager/organization.
func (h *APIHandler) ListUserClocks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID пользователя")
		return
	}

	current := middleware.UserFromContext(r.Context())
	if current == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	if current.ID != id && !isSupervisor(current) {
		apierrors.Forbidden(w, "Недостаточно прав для просмотра чужих записей")
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	clocks, err := h.clocks.ListByUser(r.Context(), id, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения записей учёта времени")
		return
	}

	writeJSON(w, http.StatusOK, mapClocks(clocks))
}

// resetPasswordRequest — тело запроса смены пароля.
type resetPasswordRequest struct {
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password"`
}

// ResetPassword — POST /api/v1/users/{id}/reset-password.
// Свой пароль меняет любой пользователь (с подтверждением текущего),
// чужой сбрасывает manager/organization.
func (h *APIHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID пользователя")
		return
	}

	current := middleware.UserFromContext(r.Context())
	if current == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	if current.ID == id {
		// самостоятельная смена требует подтверждения текущего пароля
		if req.CurrentPassword == "" {
			apierrors.ValidationError(w, "Требуется текущий пароль")
			return
		}
	} else {
		if !isSupervisor(current) {
			apierrors.Forbidden(w, "Недостаточно прав для сброса чужого пароля")
			return
		}
		// административный сброс не проверяет текущий пароль
		req.CurrentPassword = ""
	}

	if err := h.users.ResetPassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, r, err, "Ошибка смены пароля")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
