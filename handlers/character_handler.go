package handlers

import (
	"errors"
	"net/http"

	"github.com/questforge/dm-companion/middleware"
	"github.com/questforge/dm-companion/services"
)

type CharacterHandler struct {
	characterService services.CharacterService
}

func NewCharacterHandler(characterService services.CharacterService) *CharacterHandler {
	return &CharacterHandler{characterService: characterService}
}

// CreateCharacter godoc
// @Summary Создать персонажа игрока в ростере текущего пользователя
// @Tags characters
// @Accept json
// @Produce json
// @Param input body services.CreateCharacterInput true "Данные персонажа"
// @Success 201 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /characters [post]
func (h *CharacterHandler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.CreateCharacterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	character, err := h.characterService.CreateCharacter(r.Context(), currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"character": character}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CharacterHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	characterID, err := getIDFromURL(r, "characterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	character, err := h.characterService.GetCharacter(r.Context(), characterID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"character": character}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CharacterHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	characters, err := h.characterService.ListCharacters(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"characters": characters}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CharacterHandler) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	characterID, err := getIDFromURL(r, "characterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	var input services.UpdateCharacterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	character, err := h.characterService.UpdateCharacter(r.Context(), characterID, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"character": character}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CharacterHandler) UploadPortrait(w http.ResponseWriter, r *http.Request) {
	characterID, err := getIDFromURL(r, "characterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	file, header, err := r.FormFile("portrait")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("content type required"))
		return
	}

	character, err := h.characterService.UploadPortrait(r.Context(), characterID, currentUserID, file, contentType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"character": character}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CharacterHandler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	characterID, err := getIDFromURL(r, "characterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	if err := h.characterService.DeleteCharacter(r.Context(), characterID, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
