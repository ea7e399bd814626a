package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/questforge/dm-companion/repositories"
	"github.com/questforge/dm-companion/services"
)

// CompendiumHandler отдаёт справочник монстров и заклинаний. Только чтение.
type CompendiumHandler struct {
	compendiumService services.CompendiumService
}

func NewCompendiumHandler(compendiumService services.CompendiumService) *CompendiumHandler {
	return &CompendiumHandler{compendiumService: compendiumService}
}

func (h *CompendiumHandler) GetMonster(w http.ResponseWriter, r *http.Request) {
	monsterID, err := getIDFromURL(r, "monsterID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	monster, err := h.compendiumService.GetMonster(r.Context(), monsterID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"monster": monster}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMonsters godoc
// @Summary Список монстров с фильтрами name/type/cr и пагинацией
// @Tags compendium
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /compendium/monsters [get]
func (h *CompendiumHandler) ListMonsters(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.ListMonstersFilter{
		Name:   query.Get("name"),
		Type:   query.Get("type"),
		CR:     query.Get("cr"),
		Limit:  parseQueryInt(query.Get("limit")),
		Offset: parseQueryInt(query.Get("offset")),
	}

	monsters, err := h.compendiumService.ListMonsters(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"monsters": monsters}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompendiumHandler) GetSpell(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "spellSlug")

	spell, err := h.compendiumService.GetSpell(r.Context(), slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"spell": spell}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompendiumHandler) ListSpells(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repositories.ListSpellsFilter{
		School: query.Get("school"),
		Class:  query.Get("class"),
		Limit:  parseQueryInt(query.Get("limit")),
		Offset: parseQueryInt(query.Get("offset")),
	}
	if raw := query.Get("level"); raw != "" {
		if level, err := strconv.Atoi(raw); err == nil {
			filter.Level = &level
		}
	}

	spells, err := h.compendiumService.ListSpells(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"spells": spells}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func parseQueryInt(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
