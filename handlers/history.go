package handlers

import (
	"net/http"

	"streamvault/models"
	"streamvault/services/history"
)

// HistoryHandler serves watch history and continue-watching.
type HistoryHandler struct {
	history *history.Service
}

func NewHistoryHandler(historySvc *history.Service) *HistoryHandler {
	return &HistoryHandler{history: historySvc}
}

type recordProgressRequest struct {
	ProfileID int64            `json:"profileId"`
	MediaType models.MediaType `json:"mediaType"`
	MediaID   int64            `json:"mediaId"`
	Progress  float64          `json:"progress"`
}

func (h *HistoryHandler) Record(w http.ResponseWriter, r *http.Request) {
	var body recordProgressRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProfileID <= 0 || body.MediaID <= 0 {
		writeError(w, http.StatusBadRequest, "profileId and mediaId are required")
		return
	}

	if err := h.history.Record(r.Context(), body.ProfileID, body.MediaType, body.MediaID, body.Progress); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HistoryHandler) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	profileID, ok := queryID(w, r, "profileId")
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 20)

	items, err := h.history.ContinueWatching(r.Context(), profileID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []models.WatchHistory{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	profileID, ok := queryID(w, r, "profileId")
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 50)

	items, err := h.history.Recent(r.Context(), profileID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []models.WatchHistory{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *HistoryHandler) Forget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProfileID int64            `json:"profileId"`
		MediaType models.MediaType `json:"mediaType"`
		MediaID   int64            `json:"mediaId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.history.Forget(r.Context(), body.ProfileID, body.MediaType, body.MediaID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
