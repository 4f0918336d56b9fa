package handlers

import (
	"net/http"

	"streamvault/internal/database"
	"streamvault/models"
	"streamvault/services/kids"
	"streamvault/services/metadata"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// CatalogHandler serves the imported movie, series and channel catalog.
type CatalogHandler struct {
	catalog  *database.CatalogRepository
	channels *database.ChannelRepository
	profiles *database.ProfileRepository
	metadata *metadata.Service
	gate     *kids.Gate
}

func NewCatalogHandler(db *database.DB, metadataSvc *metadata.Service) *CatalogHandler {
	return &CatalogHandler{
		catalog:  database.NewCatalogRepository(db.Connection()),
		channels: database.NewChannelRepository(db.Connection()),
		profiles: database.NewProfileRepository(db.Connection()),
		metadata: metadataSvc,
	}
}

// SetKidsGate enables content filtering for kids profiles on the list and
// search endpoints.
func (h *CatalogHandler) SetKidsGate(gate *kids.Gate) {
	h.gate = gate
}

// kidsFiltered reports whether the request's profileId names a kids profile
// and filtering should apply.
func (h *CatalogHandler) kidsFiltered(r *http.Request) bool {
	if h.gate == nil {
		return false
	}
	profileID := int64(queryInt(r, "profileId", 0))
	if profileID == 0 {
		return false
	}
	profile, err := h.profiles.GetProfile(r.Context(), profileID)
	if err != nil {
		return false
	}
	return !h.gate.AllowsProfile(profile)
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset = queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *CatalogHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	movies, err := h.catalog.ListMovies(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.kidsFiltered(r) {
		movies = h.gate.FilterMovies(movies)
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	writeJSON(w, http.StatusOK, movies)
}

func (h *CatalogHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, movie)
}

// EnrichMovie runs provider enrichment for one movie and returns the
// updated row. Enrichment failures leave the movie as imported.
func (h *CatalogHandler) EnrichMovie(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if h.metadata == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata service not configured")
		return
	}

	h.metadata.EnrichMovie(r.Context(), id)

	movie, err := h.catalog.GetMovieByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if movie == nil {
		writeError(w, http.StatusNotFound, "movie not found")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (h *CatalogHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	series, err := h.catalog.ListSeries(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if series == nil {
		series = []models.Series{}
	}
	writeJSON(w, http.StatusOK, series)
}

// GetSeries returns one series with its seasons inlined.
func (h *CatalogHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	series, err := h.catalog.GetSeriesByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if series == nil {
		writeError(w, http.StatusNotFound, "series not found")
		return
	}

	seasons, err := h.catalog.ListSeasons(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if seasons == nil {
		seasons = []models.Season{}
	}

	writeJSON(w, http.StatusOK, struct {
		models.Series
		Seasons []models.Season `json:"seasons"`
	}{Series: *series, Seasons: seasons})
}

func (h *CatalogHandler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	seasonID, ok := pathID(w, r, "seasonId")
	if !ok {
		return
	}
	episodes, err := h.catalog.ListEpisodes(r.Context(), seasonID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}
	writeJSON(w, http.StatusOK, episodes)
}

func (h *CatalogHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.ListChannels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.kidsFiltered(r) {
		channels = h.gate.FilterChannels(channels)
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	writeJSON(w, http.StatusOK, channels)
}

// GetChannel returns one channel with its stream variants.
func (h *CatalogHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	channel, err := h.channels.GetChannelByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if channel == nil {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}

	variants, err := h.channels.VariantsForChannel(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if variants == nil {
		variants = []models.ChannelVariant{}
	}

	writeJSON(w, http.StatusOK, struct {
		models.Channel
		Variants []models.ChannelVariant `json:"variants"`
	}{Channel: *channel, Variants: variants})
}

// Search runs the full-text query across movies and series.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit := queryInt(r, "limit", 25)
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	results, err := h.catalog.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.kidsFiltered(r) {
		results = h.gate.FilterSearch(results)
	}
	if results == nil {
		results = []database.SearchResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
