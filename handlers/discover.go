package handlers

import (
	"net/http"

	"streamvault/internal/database"
	"streamvault/models"
	"streamvault/services/metadata"
	"streamvault/services/subtitles"
)

// DiscoverHandler serves provider-backed discovery: trending, similar
// titles, trailers and subtitle search.
type DiscoverHandler struct {
	catalog   *database.CatalogRepository
	metadata  *metadata.Service
	subtitles *subtitles.Client
}

func NewDiscoverHandler(db *database.DB, metadataSvc *metadata.Service, subtitlesClient *subtitles.Client) *DiscoverHandler {
	return &DiscoverHandler{
		catalog:   database.NewCatalogRepository(db.Connection()),
		metadata:  metadataSvc,
		subtitles: subtitlesClient,
	}
}

func (h *DiscoverHandler) Trending(w http.ResponseWriter, r *http.Request) {
	titles, err := h.metadata.Trending(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if titles == nil {
		titles = []models.Title{}
	}
	writeJSON(w, http.StatusOK, titles)
}

// Similar returns provider suggestions for a catalog movie. The movie
// must have been enriched so its provider ID is known.
func (h *DiscoverHandler) Similar(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.enrichedMovie(w, r)
	if !ok {
		return
	}

	titles, err := h.metadata.Similar(r.Context(), movie.TMDBID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if titles == nil {
		titles = []models.Title{}
	}
	writeJSON(w, http.StatusOK, titles)
}

func (h *DiscoverHandler) Videos(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.enrichedMovie(w, r)
	if !ok {
		return
	}

	videos, err := h.metadata.Videos(r.Context(), movie.TMDBID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	writeJSON(w, http.StatusOK, videos)
}

// SearchSubtitles looks up subtitles for a movie by its IMDB ID.
func (h *DiscoverHandler) SearchSubtitles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	movie, err := h.catalog.GetMovieByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if movie == nil {
		writeError(w, http.StatusNotFound, "movie not found")
		return
	}
	if movie.IMDBID == "" {
		writeError(w, http.StatusConflict, "movie has no IMDB ID, enrich it first")
		return
	}

	language := r.URL.Query().Get("language")
	if language == "" {
		language = "en"
	}

	subs, err := h.subtitles.Search(r.Context(), movie.IMDBID, language)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if subs == nil {
		subs = []models.Subtitle{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// DownloadSubtitle fetches one subtitle file to local storage and
// returns its path.
func (h *DiscoverHandler) DownloadSubtitle(w http.ResponseWriter, r *http.Request) {
	var body models.Subtitle
	if !decodeBody(w, r, &body) {
		return
	}

	path, err := h.subtitles.Download(r.Context(), body)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (h *DiscoverHandler) enrichedMovie(w http.ResponseWriter, r *http.Request) (*models.Movie, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	movie, err := h.catalog.GetMovieByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if movie == nil {
		writeError(w, http.StatusNotFound, "movie not found")
		return nil, false
	}
	if movie.TMDBID == 0 {
		writeError(w, http.StatusConflict, "movie not enriched yet")
		return nil, false
	}
	return movie, true
}
