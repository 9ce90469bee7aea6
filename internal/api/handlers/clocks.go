// clocks.go — обработчики /api/v1/clocks endpoints.
package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/arturkryukov/timemanager/internal/api/errors"
	"github.com/arturkryukov/timemanager/internal/api/middleware"
	"github.com/arturkryukov/timemanager/internal/service"
)

// ToggleClock — POST /api/v1/clocks/toggle.
// Открывает смену текущего пользователя либо закрывает открытую.
// Self-service: доступен любому аутентифицированному пользователю.
func (h *APIHandler) ToggleClock(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	clock, err := h.clocks.Toggle(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка переключения смены")
		return
	}

	status := http.StatusOK
	if clock.Open() {
		status = http.StatusCreated
	}
	writeJSON(w, status, mapClock(clock))
}

// GetCurrentClock — GET /api/v1/clocks/current.
// Возвращает открытую смену текущего пользователя или 404.
func (h *APIHandler) GetCurrentClock(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	clock, err := h.clocks.Current(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Открытая смена отсутствует")
			return
		}
		h.writeServiceError(w, r, err, "Ошибка получения открытой смены")
		return
	}

	writeJSON(w, http.StatusOK, mapClock(clock))
}

// GetClock — GET /api/v1/clocks/{id}.
// Свои записи видит любой пользователь, чужие — manager/organization.
func (h *APIHandler) GetClock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID записи")
		return
	}

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	clock, err := h.clocks.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения записи")
		return
	}

	if clock.UserID != user.ID && !isSupervisor(user) {
		apierrors.Forbidden(w, "Недостаточно прав для просмотра чужой записи")
		return
	}

	writeJSON(w, http.StatusOK, mapClock(clock))
}
