package kids

import (
	"streamvault/config"
	"streamvault/internal/database"
	"streamvault/models"
	"streamvault/utils/filter"
)

// Gate decides whether catalog items are visible to a kids profile. It
// matches the configured blocked terms against titles and group titles;
// anything that matches is hidden.
type Gate struct {
	blocked []filter.Term
}

func NewGate(cfg config.KidsSettings) *Gate {
	return &Gate{blocked: filter.Compile(cfg.BlockedTerms)}
}

// AllowsProfile reports whether the gate applies to the given profile. A
// nil profile means no profile context, so nothing is filtered.
func (g *Gate) AllowsProfile(p *models.Profile) bool {
	return p == nil || !p.IsKids
}

func (g *Gate) allows(fields ...string) bool {
	for _, f := range fields {
		if filter.MatchAny(f, g.blocked) {
			return false
		}
	}
	return true
}

// FilterMovies returns the movies visible to a kids profile.
func (g *Gate) FilterMovies(movies []models.Movie) []models.Movie {
	out := movies[:0]
	for _, m := range movies {
		if g.allows(m.Title, m.GroupTitle) {
			out = append(out, m)
		}
	}
	return out
}

// FilterChannels returns the channels visible to a kids profile.
func (g *Gate) FilterChannels(channels []models.Channel) []models.Channel {
	out := channels[:0]
	for _, c := range channels {
		if g.allows(c.Name, c.GroupTitle) {
			out = append(out, c)
		}
	}
	return out
}

// FilterSearch returns the search results visible to a kids profile.
func (g *Gate) FilterSearch(results []database.SearchResult) []database.SearchResult {
	out := results[:0]
	for _, r := range results {
		if g.allows(r.Title) {
			out = append(out, r)
		}
	}
	return out
}
