package api

import "github.com/joeblew999/plat-filmloc/internal/humastar"

// related lists links AutoLinks can not infer from the path structure.
var related = map[string][][2]string{
	"/api/v1/locations": {
		{"/api/v1/genres", "genres"},
		{"/api/v1/locations.geojson", "alternate"},
	},
	"/api/v1/locations/{slug}": {
		{"/api/v1/favorites", "favorites"},
	},
	"/api/v1/favorites": {
		{"/api/v1/locations", "locations"},
	},
	"/api/v1/info": {
		{"/health", "health"},
	},
}

// AddRelated registers the curated cross-resource links on l.
func AddRelated(l *humastar.Links) {
	for from, targets := range related {
		for _, t := range targets {
			l.Add(from, t[0], t[1])
		}
	}
}
