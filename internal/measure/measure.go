// Package measure computes distance, area and label positions of map geometries.
package measure

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/flynnplatt/common-mapping-client/internal/arc"
	"github.com/flynnplatt/common-mapping-client/internal/coords"
	"github.com/flynnplatt/common-mapping-client/internal/proj"
)

// Geometry kinds.
const (
	Circle     = "Circle"
	LineString = "LineString"
	Polygon    = "Polygon"
)

// Measurement types.
const (
	Distance = "Distance"
	Area     = "Area"
)

var (
	ErrUnsupportedGeometry    = errors.New("unsupported geometry type")
	ErrUnsupportedMeasurement = errors.New("unsupported measurement type")
	ErrNoCoordinates          = errors.New("geometry has no coordinates")
)

// Coordinate is a single vertex as drawn on the map.
type Coordinate struct {
	Lon float64 `json:"lon" doc:"Longitude or x in the geometry projection"`
	Lat float64 `json:"lat" doc:"Latitude or y in the geometry projection"`
}

// Geometry is a drawn shape in some projection.
type Geometry struct {
	Kind        string       `json:"type" enum:"Circle,LineString,Polygon" doc:"Geometry type"`
	Coordinates []Coordinate `json:"coordinates" doc:"Vertices in drawing order"`
	Proj        string       `json:"proj,omitempty" default:"EPSG:4326" doc:"Projection code of the coordinates"`
}

// Points returns the coordinates as [lon, lat] points.
func (g Geometry) Points() []orb.Point {
	pts := make([]orb.Point, len(g.Coordinates))
	for i, c := range g.Coordinates {
		pts[i] = orb.Point{c.Lon, c.Lat}
	}
	return pts
}

func (g Geometry) projection() string {
	if g.Proj == "" {
		return proj.LatLon
	}
	return g.Proj
}

// Reprojector transforms points between projection codes.
type Reprojector interface {
	Transform(p orb.Point, from, to string) (orb.Point, error)
}

// Measurer measures geometries on the sphere.
type Measurer struct {
	proj       Reprojector
	arcs       *arc.Generator
	primitives Primitives
}

// New creates a Measurer.
func New(reprojector Reprojector, arcs *arc.Generator, primitives Primitives) *Measurer {
	return &Measurer{proj: reprojector, arcs: arcs, primitives: primitives}
}

// Default returns a Measurer using the process projection registry,
// great-circle arcs and orb primitives.
func Default() *Measurer {
	return New(proj.Default(), arc.NewGenerator(nil), OrbPrimitives{})
}

// reproject maps every point from code into EPSG:4326.
func (m *Measurer) reproject(points []orb.Point, code string) (orb.LineString, error) {
	out := make(orb.LineString, len(points))
	for i, p := range points {
		q, err := m.proj.Transform(p, code, proj.LatLon)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// CalculatePolylineDistance returns the length of a polyline in meters.
// Failures are logged and reported as 0.
func (m *Measurer) CalculatePolylineDistance(points []orb.Point, code string) float64 {
	line, err := m.reproject(points, code)
	if err != nil {
		log.Warn().Err(err).Str("proj", code).Msg("Could not calculate polyline distance")
		return 0
	}
	return m.primitives.LineLength(line)
}

// CalculatePolygonArea returns the area of the ring formed by points in
// square meters. The ring is passed through as given.
func (m *Measurer) CalculatePolygonArea(points []orb.Point, code string) (float64, error) {
	ring, err := m.reproject(points, code)
	if err != nil {
		log.Warn().Err(err).Str("proj", code).Msg("Could not calculate polygon area")
		return 0, fmt.Errorf("polygon area: %w", err)
	}
	return m.primitives.PolygonArea(orb.Polygon{orb.Ring(ring)}), nil
}

// CalculatePolygonCenter returns the centroid of the ring formed by points.
func (m *Measurer) CalculatePolygonCenter(points []orb.Point, code string) (orb.Point, error) {
	ring, err := m.reproject(points, code)
	if err != nil {
		log.Warn().Err(err).Str("proj", code).Msg("Could not calculate polygon center")
		return orb.Point{}, fmt.Errorf("polygon center: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{orb.Ring(ring)}))
	return m.primitives.Centroid(fc), nil
}

// tessellate reprojects g to lat/lon and expands it into geodesic arcs.
func (m *Measurer) tessellate(g Geometry) ([]orb.Point, error) {
	line, err := m.reproject(g.Points(), g.projection())
	if err != nil {
		return nil, err
	}
	arcs, err := m.arcs.LineString(line)
	if err != nil {
		return nil, err
	}
	return arcs, nil
}

// MeasureGeometry returns the distance of a LineString or the area of a
// Polygon. Circles and mismatched measurement types are unsupported.
func (m *Measurer) MeasureGeometry(g Geometry, measurementType string) (float64, error) {
	if g.Kind == Circle {
		log.Warn().Str("type", g.Kind).Msg("Could not measure geometry, unsupported geometry type")
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.Kind)
	}

	switch measurementType {
	case Distance:
		if g.Kind != LineString {
			log.Warn().Str("type", g.Kind).Msg("Could not measure distance, unsupported geometry type")
			return 0, fmt.Errorf("%w: distance of %s", ErrUnsupportedGeometry, g.Kind)
		}
	case Area:
		if g.Kind != Polygon {
			log.Warn().Str("type", g.Kind).Msg("Could not measure area, unsupported geometry type")
			return 0, fmt.Errorf("%w: area of %s", ErrUnsupportedGeometry, g.Kind)
		}
	default:
		log.Warn().Str("measurement", measurementType).Msg("Could not measure geometry, unsupported measurement type")
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMeasurement, measurementType)
	}

	arcs, err := m.tessellate(g)
	if err != nil {
		log.Warn().Err(err).Str("type", g.Kind).Msg("Could not tessellate geometry")
		if measurementType == Distance {
			return 0, nil
		}
		return 0, fmt.Errorf("tessellate %s: %w", g.Kind, err)
	}

	if measurementType == Distance {
		return m.CalculatePolylineDistance(arcs, proj.LatLon), nil
	}
	return m.CalculatePolygonArea(arcs, proj.LatLon)
}

// LabelPosition returns where a measurement label should sit: the last
// vertex of a LineString or the centroid of a Polygon, constrained to
// [±180, ±90].
func (m *Measurer) LabelPosition(g Geometry) (orb.Point, error) {
	switch g.Kind {
	case LineString:
		if len(g.Coordinates) == 0 {
			log.Warn().Msg("Could not find label placement, no coordinates in geometry")
			return orb.Point{}, ErrNoCoordinates
		}
		last := g.Coordinates[len(g.Coordinates)-1]
		return coords.Constrain(orb.Point{last.Lon, last.Lat}, true), nil

	case Polygon:
		arcs, err := m.tessellate(g)
		if err != nil {
			log.Warn().Err(err).Msg("Could not find label placement")
			return orb.Point{}, fmt.Errorf("label position: %w", err)
		}
		if len(arcs) == 0 {
			log.Warn().Msg("Could not find label placement, no coordinates in geometry")
			return orb.Point{}, ErrNoCoordinates
		}
		center, err := m.CalculatePolygonCenter(arcs, proj.LatLon)
		if err != nil {
			return orb.Point{}, err
		}
		return coords.Constrain(center, true), nil

	default:
		log.Warn().Str("type", g.Kind).Msg("Could not find label placement, unsupported geometry type")
		return orb.Point{}, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.Kind)
	}
}
