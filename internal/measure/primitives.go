package measure

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Primitives are the low-level measurements applied to lat/lon geometry.
type Primitives interface {
	// LineLength returns the great-circle length of ls in meters.
	LineLength(ls orb.LineString) float64
	// PolygonArea returns the spherical area of p in square meters.
	PolygonArea(p orb.Polygon) float64
	// Centroid returns the mean of every vertex in fc.
	Centroid(fc *geojson.FeatureCollection) orb.Point
}

// OrbPrimitives implements Primitives with paulmach/orb.
type OrbPrimitives struct{}

// LineLength sums haversine distances between consecutive points.
func (OrbPrimitives) LineLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += geo.DistanceHaversine(ls[i-1], ls[i])
	}
	return total
}

// PolygonArea returns the spherical area of the polygon.
func (OrbPrimitives) PolygonArea(p orb.Polygon) float64 {
	return geo.Area(p)
}

// Centroid averages all vertices of all features.
func (OrbPrimitives) Centroid(fc *geojson.FeatureCollection) orb.Point {
	var vertices orb.MultiPoint
	for _, f := range fc.Features {
		vertices = appendVertices(vertices, f.Geometry)
	}
	if len(vertices) == 0 {
		return orb.Point{}
	}
	c, _ := planar.CentroidArea(vertices)
	return c
}

func appendVertices(mp orb.MultiPoint, g orb.Geometry) orb.MultiPoint {
	switch geom := g.(type) {
	case orb.Point:
		return append(mp, geom)
	case orb.MultiPoint:
		return append(mp, geom...)
	case orb.LineString:
		return append(mp, geom...)
	case orb.Ring:
		return append(mp, geom...)
	case orb.MultiLineString:
		for _, ls := range geom {
			mp = append(mp, ls...)
		}
	case orb.Polygon:
		for _, ring := range geom {
			mp = append(mp, ring...)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			mp = appendVertices(mp, poly)
		}
	}
	return mp
}
