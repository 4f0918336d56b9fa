package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"streamvault/internal/database"
	"streamvault/internal/secrets"
	"streamvault/models"
	"streamvault/services/ingest"
)

// SourcesHandler manages playlist sources and triggers imports.
type SourcesHandler struct {
	sources *database.SourceRepository
	secrets *secrets.Store
	ingest  *ingest.Service
}

func NewSourcesHandler(db *database.DB, store *secrets.Store, ingestSvc *ingest.Service) *SourcesHandler {
	return &SourcesHandler{
		sources: database.NewSourceRepository(db.Connection()),
		secrets: store,
		ingest:  ingestSvc,
	}
}

type createSourceRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	EPGURL   string `json:"epgUrl,omitempty"`
}

func (h *SourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createSourceRequest
	if !decodeBody(w, r, &body) {
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || body.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}

	sourceType, err := ingest.Detect(body.URL)
	if err != nil || sourceType == models.SourceTypeUnknown {
		writeError(w, http.StatusBadRequest, "invalid source url")
		return
	}

	src := &models.Source{
		Name:       body.Name,
		SourceType: sourceType,
		URL:        body.URL,
		Username:   body.Username,
		EPGURL:     body.EPGURL,
		IsActive:   true,
	}
	if err := h.sources.CreateSource(r.Context(), src); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The password never touches the database.
	if body.Password != "" {
		if err := h.secrets.Set(secrets.SourcePasswordKey(src.ID), body.Password); err != nil {
			log.Printf("[handlers] failed to store password for source %d: %v", src.ID, err)
			writeError(w, http.StatusInternalServerError, "failed to store source credentials")
			return
		}
	}

	writeJSON(w, http.StatusCreated, src)
}

func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	sources, err := h.sources.ListSources(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []models.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (h *SourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	src, err := h.sources.GetSource(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if src == nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (h *SourcesHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Active bool `json:"active"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.sources.SetActive(r.Context(), id, body.Active); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": body.Active})
}

func (h *SourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.sources.DeleteSource(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.secrets.Delete(secrets.SourcePasswordKey(id)); err != nil && !errors.Is(err, secrets.ErrNotFound) {
		log.Printf("[handlers] failed to delete password for source %d: %v", id, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import triggers a synchronous import of one source and returns the
// counts. Progress events stream on the bus while it runs.
func (h *SourcesHandler) Import(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.ingest.ImportSource(r.Context(), id)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, ingest.ErrInvalidURL), errors.Is(err, ingest.ErrUnsupportedPlaylist):
			status = http.StatusBadRequest
		case errors.Is(err, ingest.ErrParsingFailed):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, ingest.ErrSaveFailed):
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
