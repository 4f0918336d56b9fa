package handlers

import (
	"net/http"
	"time"

	"streamvault/models"
	"streamvault/services/epg"
)

// EPGHandler serves the programme guide.
type EPGHandler struct {
	epg *epg.Service
}

func NewEPGHandler(epgSvc *epg.Service) *EPGHandler {
	return &EPGHandler{epg: epgSvc}
}

// NowNext returns the current and following programme for a channel.
func (h *EPGHandler) NowNext(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	now, next, err := h.epg.NowNext(r.Context(), channelID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Now  *models.EPGEntry `json:"now,omitempty"`
		Next *models.EPGEntry `json:"next,omitempty"`
	}{Now: now, Next: next})
}

// Schedule returns a channel's programmes for a window, defaulting to
// the next 12 hours.
func (h *EPGHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	from := time.Now()
	to := from.Add(12 * time.Hour)
	if hours := queryInt(r, "hours", 0); hours > 0 && hours <= 7*24 {
		to = from.Add(time.Duration(hours) * time.Hour)
	}

	entries, err := h.epg.Schedule(r.Context(), channelID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []models.EPGEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Refresh re-fetches the guide from every active source.
func (h *EPGHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.epg.RefreshAll(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
