package measure

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseGeometry reads a GeoJSON geometry or feature into a Geometry in the
// given projection. Only LineString and Polygon (outer ring) are accepted.
func ParseGeometry(data []byte, code string) (Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Geometry{}, fmt.Errorf("parsing geojson: %w", err)
	}

	var geom orb.Geometry
	if head.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Geometry{}, fmt.Errorf("parsing geojson feature: %w", err)
		}
		geom = f.Geometry
	} else {
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return Geometry{}, fmt.Errorf("parsing geojson geometry: %w", err)
		}
		geom = g.Geometry()
	}

	return FromOrb(geom, code)
}

// FromOrb converts an orb geometry into a Geometry.
func FromOrb(geom orb.Geometry, code string) (Geometry, error) {
	var (
		kind string
		pts  []orb.Point
	)
	switch g := geom.(type) {
	case orb.LineString:
		kind, pts = LineString, g
	case orb.Polygon:
		kind = Polygon
		if len(g) > 0 {
			pts = g[0]
		}
	default:
		if geom == nil {
			return Geometry{}, fmt.Errorf("%w: empty", ErrUnsupportedGeometry)
		}
		return Geometry{}, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, geom.GeoJSONType())
	}

	out := Geometry{Kind: kind, Proj: code, Coordinates: make([]Coordinate, len(pts))}
	for i, p := range pts {
		out.Coordinates[i] = Coordinate{Lon: p[0], Lat: p[1]}
	}
	return out, nil
}
