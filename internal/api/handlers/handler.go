// handler.go — основной обработчик API Time Manager.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/timemanager/internal/api/errors"
	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/domain/roles"
	"github.com/arturkryukov/timemanager/internal/keycloak"
	"github.com/arturkryukov/timemanager/internal/service"
)

// isSupervisor — пользователь с ролью, дающей доступ к чужим данным.
func isSupervisor(u *model.User) bool {
	return u.HasRole(roles.Manager) || u.HasRole(roles.Organization)
}

// APIHandler — основной обработчик API Time Manager.
type APIHandler struct {
	health *HealthHandler
	users  *service.UserService
	teams  *service.TeamService
	clocks *service.ClockService
	kpi    *service.KPIService
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	users *service.UserService,
	teams *service.TeamService,
	clocks *service.ClockService,
	kpi *service.KPIService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health: health,
		users:  users,
		teams:  teams,
		clocks: clocks,
		kpi:    kpi,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// pathID извлекает числовой параметр пути.
func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// queryInt возвращает целочисленный query-параметр или значение по умолчанию.
func queryInt(r *http.Request, name string, defaultVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "Ресурс уже существует")
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrWrongPassword):
		apierrors.Forbidden(w, "Текущий пароль не подтверждён")
	case errors.Is(err, keycloak.ErrDuplicateIdentity):
		apierrors.Conflict(w, "Пользователь уже существует в Keycloak")
	case errors.Is(err, keycloak.ErrPasswordChangeFailed):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, keycloak.ErrAdminAuthFailed):
		h.logger.Error("Keycloak Admin API недоступен", "path", r.URL.Path, "error", err)
		apierrors.IDPUnavailable(w, "Keycloak недоступен")
	default:
		h.logger.Error(fallback, "path", r.URL.Path, "error", err)
		apierrors.InternalError(w, fallback)
	}
}

// --- DTO ---

// userResponse — представление пользователя в API.
type userResponse struct {
	ID          int64    `json:"id"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	PhoneNumber *string  `json:"phone_number,omitempty"`
	KeycloakID  string   `json:"keycloak_id"`
	RealmRoles  []string `json:"realm_roles"`
	TeamID      *int64   `json:"team_id,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

func mapUser(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		KeycloakID:  u.KeycloakID,
		RealmRoles:  u.RealmRoles,
		TeamID:      u.TeamID,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// teamResponse — представление команды в API.
type teamResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ManagerID   *int64 `json:"manager_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func mapTeam(t *model.Team) teamResponse {
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		ManagerID:   t.ManagerID,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// clockResponse — представление записи учёта времени в API.
type clockResponse struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"user_id"`
	ClockIn  string  `json:"clock_in"`
	ClockOut *string `json:"clock_out,omitempty"`
	Open     bool    `json:"open"`
}

func mapClock(c *model.Clock) clockResponse {
	resp := clockResponse{
		ID:      c.ID,
		UserID:  c.UserID,
		ClockIn: c.ClockIn.UTC().Format(time.RFC3339),
		Open:    c.Open(),
	}
	if c.ClockOut != nil {
		out := c.ClockOut.UTC().Format(time.RFC3339)
		resp.ClockOut = &out
	}
	return resp
}

func mapClocks(clocks []*model.Clock) []clockResponse {
	items := make([]clockResponse, len(clocks))
	for i, c := range clocks {
		items[i] = mapClock(c)
	}
	return items
}
