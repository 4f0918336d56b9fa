package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"streamvault/services/backup"
)

// BackupsHandler manages snapshot archives of the database and settings.
type BackupsHandler struct {
	backups *backup.Service
}

func NewBackupsHandler(backupSvc *backup.Service) *BackupsHandler {
	return &BackupsHandler{backups: backupSvc}
}

func (h *BackupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	info, err := h.backups.Create(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *BackupsHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

func (h *BackupsHandler) Download(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	reader, size, err := h.backups.Open(filename)
	if err != nil {
		writeError(w, backupErrStatus(err), err.Error())
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	io.Copy(w, reader)
}

func (h *BackupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	if err := h.backups.Delete(filename); err != nil {
		writeError(w, backupErrStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func backupErrStatus(err error) int {
	switch {
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	case strings.Contains(err.Error(), "invalid"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
