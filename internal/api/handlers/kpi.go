// kpi.go — обработчик /api/v1/kpi endpoints.
package handlers

import (
	"net/http"

	apierrors "github.com/arturkryukov/timemanager/internal/api/errors"
	"github.com/arturkryukov/timemanager/internal/api/middleware"
)

// KPISummary — GET /api/v1/kpi/summary?user_id=N.
// Без user_id возвращает показатели текущего пользователя.
// Чужие показатели доступны только manager/organization.
func (h *APIHandler) KPISummary(w http.ResponseWriter, r *http.Request) {
	current := middleware.UserFromContext(r.Context())
	if current == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	userID := int64(queryInt(r, "user_id", int(current.ID)))
	if userID != current.ID && !isSupervisor(current) {
		apierrors.Forbidden(w, "Недостаточно прав для просмотра чужих показателей")
		return
	}

	summary, err := h.kpi.Summary(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка расчёта показателей")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
