package handlers

import (
	"net/http"

	"streamvault/models"
	"streamvault/services/profiles"
)

// ProfilesHandler manages viewing profiles and favorites.
type ProfilesHandler struct {
	profiles *profiles.Service
}

func NewProfilesHandler(profilesSvc *profiles.Service) *ProfilesHandler {
	return &ProfilesHandler{profiles: profilesSvc}
}

func (h *ProfilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		IsKids    bool   `json:"isKids,omitempty"`
		AvatarHue int    `json:"avatarHue,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p, err := h.profiles.Create(r.Context(), body.Name, body.IsKids, body.AvatarHue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.profiles.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.Profile{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.profiles.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (h *ProfilesHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		MediaType models.MediaType `json:"mediaType"`
		MediaID   int64            `json:"mediaId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	favorite, err := h.profiles.ToggleFavorite(r.Context(), id, body.MediaType, body.MediaID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

func (h *ProfilesHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	favs, err := h.profiles.Favorites(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if favs == nil {
		favs = []models.Favorite{}
	}
	writeJSON(w, http.StatusOK, favs)
}
