// teams.go — обработчики /api/v1/teams endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/arturkryukov/timemanager/internal/api/errors"
	"github.com/arturkryukov/timemanager/internal/domain/model"
)

// CreateTeam — POST /api/v1/teams.
// Доступ: manager или organization.
func (h *APIHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req model.TeamCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	team, err := h.teams.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания команды")
		return
	}

	writeJSON(w, http.StatusCreated, mapTeam(team))
}

// ListTeams — GET /api/v1/teams.
func (h *APIHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения списка команд")
		return
	}

	items := make([]teamResponse, len(teams))
	for i, t := range teams {
		items[i] = mapTeam(t)
	}
	writeJSON(w, http.StatusOK, items)
}

// GetTeam — GET /api/v1/teams/{id}.
func (h *APIHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID команды")
		return
	}

	team, err := h.teams.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения команды")
		return
	}

	writeJSON(w, http.StatusOK, mapTeam(team))
}

// UpdateTeam — PUT /api/v1/teams/{id}.
// Доступ: manager или organization.
func (h *APIHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID команды")
		return
	}

	var req model.TeamUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	team, err := h.teams.Update(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления команды")
		return
	}

	writeJSON(w, http.StatusOK, mapTeam(team))
}

// DeleteTeam — DELETE /api/v1/teams/{id}.
// Доступ: manager или organization.
func (h *APIHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID команды")
		return
	}

	if err := h.teams.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления команды")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTeamMembers — GET /api/v1/teams/{id}/members.
func (h *APIHandler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID команды")
		return
	}

	members, err := h.teams.ListMembers(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения состава команды")
		return
	}

	items := make([]userResponse, len(members))
	for i, u := range members {
		items[i] = mapUser(u)
	}
	writeJSON(w, http.StatusOK, items)
}

// AddTeamMember — PUT /api/v1/teams/{id}/members/{userId}.
// Доступ: manager или organization.
func (h *APIHandler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID команды")
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID пользователя")
		return
	}

	if err := h.teams.AddMember(r.Context(), teamID, userID); err != nil {
		h.writeServiceError(w, r, err, "Ошибка добавления пользователя в команду")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveTeamMember — DELETE /api/v1/teams/{id}/members/{userId}.
// Доступ: manager или organization.
func (h *APIHandler) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "id")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID команды")
		return
	}
	userID, err := pathID(r, "userId")
	if err != nil {
		apierrors.ValidationError(w, "Некорректный ID пользователя")
		return
	}

	if err := h.teams.RemoveMember(r.Context(), teamID, userID); err != nil {
		h.writeServiceError(w, r, err, "Ошибка исключения пользователя из команды")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
