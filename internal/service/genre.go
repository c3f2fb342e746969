package service

import "strings"

// AllGenres is the filter sentinel that disables genre filtering.
const AllGenres = "all"

// Genre is a known genre tag and its display label.
type Genre struct {
	Value string `json:"value" doc:"Genre tag" example:"drama"`
	Label string `json:"label" doc:"Display label" example:"Drama"`
}

// Genres is the closed set of known genre tags, in display order.
var Genres = []Genre{
	{Value: "action", Label: "Ação"},
	{Value: "drama", Label: "Drama"},
	{Value: "romance", Label: "Romance"},
	{Value: "sciFi", Label: "Ficção"},
	{Value: "horror", Label: "Terror"},
	{Value: "comedy", Label: "Comédia"},
	{Value: "animation", Label: "Animação"},
	{Value: "documentary", Label: "Documentário"},
	{Value: "fantasy", Label: "Fantasia"},
	{Value: "musical", Label: "Musical"},
}

// GenreOptions returns the filter bar options: "all" followed by Genres.
func GenreOptions() []Genre {
	opts := make([]Genre, 0, len(Genres)+1)
	opts = append(opts, Genre{Value: AllGenres, Label: "Todos"})
	return append(opts, Genres...)
}

// ParseGenre maps a request value onto a known genre value, case-insensitive.
// Unknown or empty values select all genres.
func ParseGenre(s string) string {
	s = strings.TrimSpace(s)
	for _, g := range Genres {
		if strings.EqualFold(g.Value, s) {
			return g.Value
		}
	}
	return AllGenres
}

// GenreTokens splits a genre field into trimmed, lowercased, non-empty tags.
func GenreTokens(field string) []string {
	var tokens []string
	for _, part := range strings.Split(field, ",") {
		tok := strings.ToLower(strings.TrimSpace(part))
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// HasGenre reports whether the location's genre field contains selected as
// an exact tag.
func (l Location) HasGenre(selected string) bool {
	want := strings.ToLower(strings.TrimSpace(selected))
	if want == "" {
		return false
	}
	for _, tok := range GenreTokens(l.Genre) {
		if tok == want {
			return true
		}
	}
	return false
}

// FilterByGenre returns the locations tagged with selected. The "all"
// sentinel returns the input slice itself.
func FilterByGenre(locations []Location, selected string) []Location {
	if selected == AllGenres {
		return locations
	}
	out := make([]Location, 0, len(locations))
	for _, l := range locations {
		if l.HasGenre(selected) {
			out = append(out, l)
		}
	}
	return out
}

// GenreLabel returns the display label for a raw genre field: the first known
// genre contained in the field (substring, case-insensitive), else the raw
// string.
func GenreLabel(raw string) string {
	lower := strings.ToLower(raw)
	for _, g := range Genres {
		if strings.Contains(lower, strings.ToLower(g.Value)) {
			return g.Label
		}
	}
	return raw
}
