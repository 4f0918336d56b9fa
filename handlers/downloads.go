package handlers

import (
	"net/http"
	"strings"

	"streamvault/models"
	"streamvault/services/downloads"
)

// DownloadsHandler manages offline downloads.
type DownloadsHandler struct {
	downloads *downloads.Service
}

func NewDownloadsHandler(downloadsSvc *downloads.Service) *DownloadsHandler {
	return &DownloadsHandler{downloads: downloadsSvc}
}

func (h *DownloadsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProfileID int64            `json:"profileId"`
		MediaType models.MediaType `json:"mediaType"`
		MediaID   int64            `json:"mediaId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProfileID <= 0 || body.MediaID <= 0 {
		writeError(w, http.StatusBadRequest, "profileId and mediaId are required")
		return
	}

	d, err := h.downloads.Enqueue(r.Context(), body.ProfileID, body.MediaType, body.MediaID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DownloadsHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID, ok := queryID(w, r, "profileId")
	if !ok {
		return
	}
	list, err := h.downloads.List(r.Context(), profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.Download{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DownloadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	d, err := h.downloads.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "download not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DownloadsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.downloads.Remove(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
