package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamvault/models"
)

// CatalogRepository persists movies, series, seasons and episodes.
type CatalogRepository struct {
	q Queryer
}

func NewCatalogRepository(q Queryer) *CatalogRepository {
	return &CatalogRepository{q: q}
}

// ExistingMovieTitles returns the set of movie titles already in the catalog,
// used to deduplicate imports by exact title.
func (r *CatalogRepository) ExistingMovieTitles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT title FROM movies`)
	if err != nil {
		return nil, fmt.Errorf("query movie titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[string]struct{})
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles[title] = struct{}{}
	}
	return titles, rows.Err()
}

// InsertMovies batch-inserts movies. Missing stable IDs are assigned here
// and never changed afterwards.
func (r *CatalogRepository) InsertMovies(ctx context.Context, movies []models.Movie) error {
	// SQLite caps bound parameters per statement; insert in slices.
	const chunk = 150
	for start := 0; start < len(movies); start += chunk {
		end := start + chunk
		if end > len(movies) {
			end = len(movies)
		}
		if err := r.insertMovieChunk(ctx, movies[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *CatalogRepository) insertMovieChunk(ctx context.Context, movies []models.Movie) error {
	if len(movies) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO movies
		(stable_id, source_id, title, stream_url, poster_url, summary, release_date, release_year, imdb_id, tmdb_id, group_title, added_at)
		VALUES `)
	args := make([]any, 0, len(movies)*12)
	now := time.Now().UTC()
	for i, m := range movies {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		stableID := m.StableID
		if stableID == "" {
			stableID = uuid.NewString()
		}
		args = append(args, stableID, m.SourceID, m.Title, m.StreamURL, m.PosterURL, m.Summary,
			m.ReleaseDate, m.ReleaseYear, m.IMDBID, m.TMDBID, m.GroupTitle, now)
	}

	if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert movies: %w", err)
	}
	return nil
}

// GetMovieByID returns the movie or nil when absent.
func (r *CatalogRepository) GetMovieByID(ctx context.Context, id int64) (*models.Movie, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, stable_id, source_id, title, stream_url, poster_url, summary, release_date, release_year, imdb_id, tmdb_id, group_title, added_at
		FROM movies WHERE id = ?`, id)
	return scanMovie(row)
}

// GetMovieByTitle returns the movie with the exact title or nil when absent.
func (r *CatalogRepository) GetMovieByTitle(ctx context.Context, title string) (*models.Movie, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, stable_id, source_id, title, stream_url, poster_url, summary, release_date, release_year, imdb_id, tmdb_id, group_title, added_at
		FROM movies WHERE title = ? LIMIT 1`, title)
	return scanMovie(row)
}

// ListMovies returns movies ordered by title with pagination.
func (r *CatalogRepository) ListMovies(ctx context.Context, limit, offset int) ([]models.Movie, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, stable_id, source_id, title, stream_url, poster_url, summary, release_date, release_year, imdb_id, tmdb_id, group_title, added_at
		FROM movies ORDER BY title LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	var movies []models.Movie
	for rows.Next() {
		m, err := scanMovieRows(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

// UpdateMovieEnrichment stores metadata fields fetched from the movie
// database. The stable ID is deliberately untouched.
func (r *CatalogRepository) UpdateMovieEnrichment(ctx context.Context, id int64, posterURL, summary, imdbID string, tmdbID int64, year int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE movies SET poster_url = ?, summary = ?, imdb_id = ?, tmdb_id = ?, release_year = ?
		WHERE id = ?`, posterURL, summary, imdbID, tmdbID, year, id)
	if err != nil {
		return fmt.Errorf("update movie enrichment: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("movie %d not found", id)
	}
	return nil
}

// GetSeriesByTitle returns the series with the exact title or nil.
func (r *CatalogRepository) GetSeriesByTitle(ctx context.Context, title string) (*models.Series, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, stable_id, source_id, title, poster_url, summary, release_date, release_year, imdb_id, added_at
		FROM series WHERE title = ? LIMIT 1`, title)
	s := &models.Series{}
	err := row.Scan(&s.ID, &s.StableID, &s.SourceID, &s.Title, &s.PosterURL, &s.Summary,
		&s.ReleaseDate, &s.ReleaseYear, &s.IMDBID, &s.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return s, nil
}

// GetSeriesByID returns the series or nil when absent.
func (r *CatalogRepository) GetSeriesByID(ctx context.Context, id int64) (*models.Series, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, stable_id, source_id, title, poster_url, summary, release_date, release_year, imdb_id, added_at
		FROM series WHERE id = ?`, id)
	s := &models.Series{}
	err := row.Scan(&s.ID, &s.StableID, &s.SourceID, &s.Title, &s.PosterURL, &s.Summary,
		&s.ReleaseDate, &s.ReleaseYear, &s.IMDBID, &s.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return s, nil
}

// ListSeries returns series ordered by title, paged.
func (r *CatalogRepository) ListSeries(ctx context.Context, limit, offset int) ([]models.Series, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, stable_id, source_id, title, poster_url, summary, release_date, release_year, imdb_id, added_at
		FROM series ORDER BY title LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var series []models.Series
	for rows.Next() {
		var s models.Series
		if err := rows.Scan(&s.ID, &s.StableID, &s.SourceID, &s.Title, &s.PosterURL, &s.Summary,
			&s.ReleaseDate, &s.ReleaseYear, &s.IMDBID, &s.AddedAt); err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return series, rows.Err()
}

// ListSeasons returns a series' seasons ordered by number.
func (r *CatalogRepository) ListSeasons(ctx context.Context, seriesID int64) ([]models.Season, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, series_id, number FROM seasons WHERE series_id = ? ORDER BY number`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	var seasons []models.Season
	for rows.Next() {
		var s models.Season
		if err := rows.Scan(&s.ID, &s.SeriesID, &s.Number); err != nil {
			return nil, err
		}
		seasons = append(seasons, s)
	}
	return seasons, rows.Err()
}

// InsertSeries inserts one series and fills in its ID and stable ID.
func (r *CatalogRepository) InsertSeries(ctx context.Context, s *models.Series) error {
	if s.StableID == "" {
		s.StableID = uuid.NewString()
	}
	if s.AddedAt.IsZero() {
		s.AddedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO series (stable_id, source_id, title, poster_url, summary, release_date, release_year, imdb_id, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.StableID, s.SourceID, s.Title, s.PosterURL, s.Summary, s.ReleaseDate, s.ReleaseYear, s.IMDBID, s.AddedAt)
	if err != nil {
		return fmt.Errorf("insert series: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

// EnsureSeason returns the season's ID, creating the row when missing.
func (r *CatalogRepository) EnsureSeason(ctx context.Context, seriesID int64, number int) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM seasons WHERE series_id = ? AND number = ?`, seriesID, number).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("get season: %w", err)
	}

	res, err := r.q.ExecContext(ctx,
		`INSERT INTO seasons (series_id, number) VALUES (?, ?)`, seriesID, number)
	if err != nil {
		return 0, fmt.Errorf("insert season: %w", err)
	}
	return res.LastInsertId()
}

// InsertEpisode inserts one episode, skipping silently when the season
// already has this episode number.
func (r *CatalogRepository) InsertEpisode(ctx context.Context, e *models.Episode) error {
	if e.StableID == "" {
		e.StableID = uuid.NewString()
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO episodes (stable_id, season_id, episode_number, title, stream_url, summary, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (season_id, episode_number) DO NOTHING`,
		e.StableID, e.SeasonID, e.EpisodeNumber, e.Title, e.StreamURL, e.Summary, e.AddedAt)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	if affected > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
		e.ID = id
		return nil
	}
	// Conflict skip: resolve the ID of the row already there.
	row := r.q.QueryRowContext(ctx,
		`SELECT id FROM episodes WHERE season_id = ? AND episode_number = ?`,
		e.SeasonID, e.EpisodeNumber)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// GetEpisodeByID returns the episode or nil when absent.
func (r *CatalogRepository) GetEpisodeByID(ctx context.Context, id int64) (*models.Episode, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, stable_id, season_id, episode_number, title, stream_url, summary, added_at
		FROM episodes WHERE id = ?`, id)
	e := &models.Episode{}
	err := row.Scan(&e.ID, &e.StableID, &e.SeasonID, &e.EpisodeNumber, &e.Title, &e.StreamURL, &e.Summary, &e.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return e, nil
}

// NextEpisode returns the episode with the smallest episode number greater
// than the given episode's, within the same season. Returns nil at the end
// of the season; there is no cross-season advance.
func (r *CatalogRepository) NextEpisode(ctx context.Context, episodeID int64) (*models.Episode, error) {
	current, err := r.GetEpisodeByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("episode %d not found", episodeID)
	}

	row := r.q.QueryRowContext(ctx, `
		SELECT id, stable_id, season_id, episode_number, title, stream_url, summary, added_at
		FROM episodes
		WHERE season_id = ? AND episode_number > ?
		ORDER BY episode_number LIMIT 1`, current.SeasonID, current.EpisodeNumber)
	e := &models.Episode{}
	err = row.Scan(&e.ID, &e.StableID, &e.SeasonID, &e.EpisodeNumber, &e.Title, &e.StreamURL, &e.Summary, &e.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next episode: %w", err)
	}
	return e, nil
}

// ListEpisodes returns a season's episodes ordered by episode number.
func (r *CatalogRepository) ListEpisodes(ctx context.Context, seasonID int64) ([]models.Episode, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, stable_id, season_id, episode_number, title, stream_url, summary, added_at
		FROM episodes WHERE season_id = ? ORDER BY episode_number`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []models.Episode
	for rows.Next() {
		var e models.Episode
		if err := rows.Scan(&e.ID, &e.StableID, &e.SeasonID, &e.EpisodeNumber, &e.Title, &e.StreamURL, &e.Summary, &e.AddedAt); err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// SearchResult is one hit from the search index.
type SearchResult struct {
	MediaType models.MediaType `json:"mediaType"`
	MediaID   int64            `json:"mediaId"`
	Title     string           `json:"title"`
	Summary   string           `json:"summary,omitempty"`
}

// Search matches every query term against title and summary of movies and
// series. Matching is case-insensitive substring per term, so partial words
// work for as-you-type search.
func (r *CatalogRepository) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT media_type, media_id, title, summary FROM catalog_search WHERE `)
	args := make([]any, 0, 2*len(terms)+2)
	for i, term := range terms {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(`(title LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(term) + "%"
		args = append(args, pattern, pattern)
	}
	// Title hits rank above summary-only hits.
	sb.WriteString(` ORDER BY CASE WHEN title LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, title LIMIT ?`)
	args = append(args, "%"+escapeLike(terms[0])+"%", limit)

	rows, err := r.q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var res SearchResult
		if err := rows.Scan(&res.MediaType, &res.MediaID, &res.Title, &res.Summary); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

func scanMovie(row *sql.Row) (*models.Movie, error) {
	m := &models.Movie{}
	err := row.Scan(&m.ID, &m.StableID, &m.SourceID, &m.Title, &m.StreamURL, &m.PosterURL, &m.Summary,
		&m.ReleaseDate, &m.ReleaseYear, &m.IMDBID, &m.TMDBID, &m.GroupTitle, &m.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan movie: %w", err)
	}
	return m, nil
}

func scanMovieRows(rows *sql.Rows) (models.Movie, error) {
	var m models.Movie
	err := rows.Scan(&m.ID, &m.StableID, &m.SourceID, &m.Title, &m.StreamURL, &m.PosterURL, &m.Summary,
		&m.ReleaseDate, &m.ReleaseYear, &m.IMDBID, &m.TMDBID, &m.GroupTitle, &m.AddedAt)
	return m, err
}
