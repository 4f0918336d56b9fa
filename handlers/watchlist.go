package handlers

import (
	"net/http"

	"streamvault/models"
	"streamvault/services/watchlist"
)

// WatchlistHandler serves named watchlists and the up-next queue.
type WatchlistHandler struct {
	watchlist *watchlist.Service
}

func NewWatchlistHandler(watchlistSvc *watchlist.Service) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlistSvc}
}

func (h *WatchlistHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProfileID int64  `json:"profileId"`
		Name      string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ProfileID <= 0 {
		writeError(w, http.StatusBadRequest, "profileId is required")
		return
	}

	list, err := h.watchlist.CreateList(r.Context(), body.ProfileID, body.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (h *WatchlistHandler) Lists(w http.ResponseWriter, r *http.Request) {
	profileID, ok := queryID(w, r, "profileId")
	if !ok {
		return
	}
	lists, err := h.watchlist.Lists(r.Context(), profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if lists == nil {
		lists = []models.Watchlist{}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *WatchlistHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.watchlist.DeleteList(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type watchlistItemRequest struct {
	MediaType models.MediaType `json:"mediaType"`
	MediaID   int64            `json:"mediaId"`
}

func (h *WatchlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body watchlistItemRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if err := h.watchlist.AddItem(r.Context(), id, body.MediaType, body.MediaID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body watchlistItemRequest
	if !decodeBody(w, r, &body) {
		return
	}

	removed, err := h.watchlist.RemoveItem(r.Context(), id, body.MediaType, body.MediaID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "item not in watchlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WatchlistHandler) Items(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	items, err := h.watchlist.Items(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []models.WatchlistItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *WatchlistHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
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

	if err := h.watchlist.Enqueue(r.Context(), body.ProfileID, body.MediaType, body.MediaID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dequeue pops the head of the queue, 204 when the queue is empty.
func (h *WatchlistHandler) Dequeue(w http.ResponseWriter, r *http.Request) {
	profileID, ok := queryID(w, r, "profileId")
	if !ok {
		return
	}
	item, err := h.watchlist.Dequeue(r.Context(), profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *WatchlistHandler) Queue(w http.ResponseWriter, r *http.Request) {
	profileID, ok := queryID(w, r, "profileId")
	if !ok {
		return
	}
	items, err := h.watchlist.Queue(r.Context(), profileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []models.UpNextQueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}
