package handlers

import (
	"net/http"

	"github.com/questforge/dm-companion/middleware"
	"github.com/questforge/dm-companion/services"
)

type EncounterHandler struct {
	encounterService *services.EncounterService
}

func NewEncounterHandler(encounterService *services.EncounterService) *EncounterHandler {
	return &EncounterHandler{encounterService: encounterService}
}

// CreateEncounter godoc
// @Summary Создать энкаунтер вместе со списками участников
// @Tags encounters
// @Accept json
// @Produce json
// @Param input body services.CreateEncounterInput true "Энкаунтер и участники"
// @Success 201 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /encounters [post]
func (h *EncounterHandler) CreateEncounter(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.CreateEncounterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	encounter, err := h.encounterService.CreateEncounter(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"encounter": encounter}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EncounterHandler) GetEncounter(w http.ResponseWriter, r *http.Request) {
	encounterID, err := getIDFromURL(r, "encounterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	encounter, err := h.encounterService.GetEncounter(r.Context(), encounterID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"encounter": encounter}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EncounterHandler) ListEncounters(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	encounters, err := h.encounterService.ListEncounters(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"encounters": encounters}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateEncounter godoc
// @Summary Обновить энкаунтер и привести участников к присланным спискам
// @Description Строки участников с id обновляются, без id — создаются, отсутствующие в списке — удаляются. Всё в одной транзакции.
// @Tags encounters
// @Accept json
// @Produce json
// @Param input body services.UpdateEncounterInput true "Желаемое состояние энкаунтера"
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /encounters/{encounterID} [put]
func (h *EncounterHandler) UpdateEncounter(w http.ResponseWriter, r *http.Request) {
	encounterID, err := getIDFromURL(r, "encounterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.UpdateEncounterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	encounter, err := h.encounterService.UpdateEncounter(r.Context(), encounterID, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"encounter": encounter}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *EncounterHandler) DeleteEncounter(w http.ResponseWriter, r *http.Request) {
	encounterID, err := getIDFromURL(r, "encounterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.encounterService.DeleteEncounter(r.Context(), encounterID, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
