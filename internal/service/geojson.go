package service

import "github.com/paulmach/orb/geojson"

// FeatureCollection converts locations into GeoJSON point features with
// the record fields as properties. The feature ID is the slug.
func FeatureCollection(locs []Location) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range locs {
		f := geojson.NewFeature(l.Point())
		f.ID = l.Slug
		f.Properties["slug"] = l.Slug
		f.Properties["title"] = l.Title
		f.Properties["filmTitle"] = l.FilmTitle
		f.Properties["genre"] = l.Genre
		f.Properties["genreLabel"] = GenreLabel(l.Genre)
		f.Properties["url"] = l.Path()
		if ValidImageURL(l.Image) {
			f.Properties["image"] = l.Image
		}
		fc.Append(f)
	}
	return fc
}
