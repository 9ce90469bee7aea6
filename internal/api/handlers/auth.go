// auth.go — обработчик /api/v1/auth endpoints.
package handlers

import (
	"net/http"

	apierrors "github.com/arturkryukov/timemanager/internal/api/errors"
	"github.com/arturkryukov/timemanager/internal/api/middleware"
)

// authMeResponse — ответ /auth/me: локальный пользователь + claims токена.
type authMeResponse struct {
	User              userResponse `json:"user"`
	PreferredUsername string       `json:"preferred_username,omitempty"`
	TokenRoles        []string     `json:"token_roles"`
}

// AuthMe — GET /api/v1/auth/me.
// Возвращает текущего пользователя, сверенного с локальной БД.
func (h *APIHandler) AuthMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	claims := middleware.ClaimsFromContext(r.Context())
	if user == nil || claims == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	writeJSON(w, http.StatusOK, authMeResponse{
		User:              mapUser(user),
		PreferredUsername: claims.PreferredUsername,
		TokenRoles:        claims.Roles,
	})
}
