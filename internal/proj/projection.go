// Package proj keeps the registry of projections known to the map and
// reprojects coordinates between them.
package proj

import (
	"math"

	"github.com/paulmach/orb"
)

// Well-known projection codes.
const (
	LatLon       = "EPSG:4326"
	WebMercator  = "EPSG:3857"
	OGCCRS84     = "OGC:CRS84"
	earthRadius  = 6378137.0
	mercatorEdge = 20037508.342789244
)

// Units of a projection.
const (
	UnitsDegrees = "degrees"
	UnitsMeters  = "m"
)

// DegreeMetersPerUnit is the length of one degree on the authalic sphere.
const DegreeMetersPerUnit = 2 * math.Pi * 6370997 / 360

// TransformFunc converts a coordinate triple between two reference systems.
type TransformFunc func(a, b, c float64) (a2, b2, c2 float64)

// PointResolutionFunc returns the resolution at a point for a nominal resolution.
type PointResolutionFunc func(resolution float64, p orb.Point) float64

// Projection describes a registered projection.
type Projection struct {
	Code            string
	Units           string
	Extent          orb.Bound
	WorldExtent     orb.Bound
	Global          bool
	MetersPerUnit   float64
	AxisOrientation string

	pointResolution PointResolutionFunc
	toLonLat        TransformFunc
	fromLonLat      TransformFunc
}

// PointResolution returns the ground resolution at p for resolution.
func (p *Projection) PointResolution(resolution float64, at orb.Point) float64 {
	if p.pointResolution != nil {
		return p.pointResolution(resolution, at)
	}
	return resolution
}

// NorthEast reports whether coordinates in this projection are written
// northing first.
func (p *Projection) NorthEast() bool {
	return len(p.AxisOrientation) >= 2 && p.AxisOrientation[:2] == "ne"
}

// ExtentArray returns the extent as [minX, minY, maxX, maxY].
func (p *Projection) ExtentArray() [4]float64 {
	return [4]float64{p.Extent.Min[0], p.Extent.Min[1], p.Extent.Max[0], p.Extent.Max[1]}
}

// clone copies p under a new code. Transforms and the point resolution
// behavior are shared.
func (p *Projection) clone(code string) *Projection {
	c := *p
	c.Code = code
	return &c
}

func identity(a, b, c float64) (float64, float64, float64) { return a, b, c }

func latLonProjection(code string) *Projection {
	world := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	return &Projection{
		Code:            code,
		Units:           UnitsDegrees,
		Extent:          world,
		WorldExtent:     world,
		Global:          true,
		MetersPerUnit:   DegreeMetersPerUnit,
		AxisOrientation: "neu",
		toLonLat:        identity,
		fromLonLat:      identity,
	}
}

func webMercatorProjection(toLonLat, fromLonLat TransformFunc) *Projection {
	return &Projection{
		Code:            WebMercator,
		Units:           UnitsMeters,
		Extent:          orb.Bound{Min: orb.Point{-mercatorEdge, -mercatorEdge}, Max: orb.Point{mercatorEdge, mercatorEdge}},
		WorldExtent:     orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}},
		Global:          true,
		MetersPerUnit:   1,
		AxisOrientation: "enu",
		pointResolution: func(resolution float64, p orb.Point) float64 {
			return resolution / math.Cosh(p[1]/earthRadius)
		},
		toLonLat:   toLonLat,
		fromLonLat: fromLonLat,
	}
}
