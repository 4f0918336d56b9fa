package handlers

import (
	"net/http"
	"time"

	"streamvault/models"
	"streamvault/services/playback"
)

// PlaybackHandler exposes the playback controller over HTTP. When the
// renderer is a client device, player is the RemotePlayer its clock
// reports feed.
type PlaybackHandler struct {
	controller *playback.Controller
	player     *playback.RemotePlayer
}

func NewPlaybackHandler(controller *playback.Controller, player *playback.RemotePlayer) *PlaybackHandler {
	return &PlaybackHandler{controller: controller, player: player}
}

type loadRequest struct {
	MediaType    models.MediaType `json:"mediaType"`
	MediaID      int64            `json:"mediaId"`
	ProfileID    int64            `json:"profileId"`
	VariantIndex int              `json:"variantIndex,omitempty"`
}

func (h *PlaybackHandler) Load(w http.ResponseWriter, r *http.Request) {
	var body loadRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.MediaID <= 0 {
		writeError(w, http.StatusBadRequest, "mediaId is required")
		return
	}

	if err := h.controller.Load(r.Context(), body.MediaType, body.MediaID, body.ProfileID, body.VariantIndex); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeState(w)
}

func (h *PlaybackHandler) State(w http.ResponseWriter, r *http.Request) {
	h.writeState(w)
}

func (h *PlaybackHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Pause(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeState(w)
}

func (h *PlaybackHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Resume(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeState(w)
}

func (h *PlaybackHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Stop(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeState(w)
}

// ReportRate lets the player report its measured byte rate; zero while
// playing means buffering, recovery flips back to playing.
func (h *PlaybackHandler) ReportRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rate float64 `json:"rate"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.controller.ReportRate(body.Rate)
	h.writeState(w)
}

// ReportStall asks the controller to fall over to the next variant.
func (h *PlaybackHandler) ReportStall(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.ReportStall(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeState(w)
}

// ReportEnded records the finish and auto-advances episodes.
func (h *PlaybackHandler) ReportEnded(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.ReportEnded(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeState(w)
}

// ReportClock records the client-reported playback position so progress
// persistence and pre-buffering work off the real clock.
func (h *PlaybackHandler) ReportClock(w http.ResponseWriter, r *http.Request) {
	if h.player == nil {
		writeError(w, http.StatusConflict, "no remote player configured")
		return
	}
	var body struct {
		PositionSeconds float64 `json:"positionSeconds"`
		DurationSeconds float64 `json:"durationSeconds"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.player.UpdateClock(
		time.Duration(body.PositionSeconds*float64(time.Second)),
		time.Duration(body.DurationSeconds*float64(time.Second)),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PlaybackHandler) writeState(w http.ResponseWriter) {
	state, reason := h.controller.State()
	resp := map[string]string{
		"state":  string(state),
		"reason": reason,
	}
	if h.player != nil {
		resp["streamUrl"] = h.player.StreamURL()
	}
	writeJSON(w, http.StatusOK, resp)
}
