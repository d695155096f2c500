// Package arc builds tessellated great-circle arcs for polylines.
package arc

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

var (
	// ErrAntipodal is returned when the endpoints are antipodal and the
	// great circle between them is undefined.
	ErrAntipodal = errors.New("antipodal points have no unique great circle")
	// ErrInvalidPoint is returned for non-finite endpoints.
	ErrInvalidPoint = errors.New("arc endpoint is not a finite coordinate")
)

// Arcer generates a great-circle arc between two points as one or more
// pieces. Pieces are split where the arc crosses the antimeridian.
type Arcer interface {
	Arc(start, end orb.Point, npoints int, offset float64) ([]orb.LineString, error)
}

// GreatCircle is the spherical interpolation Arcer.
type GreatCircle struct{}

// Arc interpolates npoints along the great circle from start to end.
//
// offset controls seam detection: consecutive points whose longitudes differ
// by more than 360-offset while sitting on opposite sides of the
// ±(180-offset) borders start a new piece. A seam point at ±180 is added to
// both pieces when the crossing can be interpolated.
func (GreatCircle) Arc(start, end orb.Point, npoints int, offset float64) ([]orb.LineString, error) {
	for _, v := range []float64{start[0], start[1], end[0], end[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrInvalidPoint
		}
	}
	if npoints < 2 {
		npoints = 2
	}

	g := newGreatCircle(start, end)
	if g.dist == math.Pi {
		return nil, ErrAntipodal
	}
	if math.IsNaN(g.dist) {
		return nil, ErrInvalidPoint
	}

	pass := make(orb.LineString, 0, npoints)
	if g.dist == 0 {
		pass = append(pass, start, end)
	} else {
		delta := 1.0 / float64(npoints-1)
		for i := 0; i < npoints; i++ {
			pass = append(pass, g.interpolate(delta*float64(i)))
		}
		// interpolation drifts by a few ulps at the endpoints
		pass[0] = snap(pass[0], start)
		pass[npoints-1] = snap(pass[npoints-1], end)
	}

	return splitAtSeam(pass, offset), nil
}

type greatCircle struct {
	lon1, lat1 float64
	lon2, lat2 float64
	dist       float64
}

func newGreatCircle(start, end orb.Point) greatCircle {
	g := greatCircle{
		lon1: deg2rad(start[0]), lat1: deg2rad(start[1]),
		lon2: deg2rad(end[0]), lat2: deg2rad(end[1]),
	}

	w := g.lon1 - g.lon2
	h := g.lat1 - g.lat2
	z := math.Pow(math.Sin(h/2), 2) + math.Cos(g.lat1)*math.Cos(g.lat2)*math.Pow(math.Sin(w/2), 2)
	g.dist = 2 * math.Asin(math.Sqrt(z))
	return g
}

// interpolate returns the point at fraction f of the way along the arc.
func (g greatCircle) interpolate(f float64) orb.Point {
	a := math.Sin((1-f)*g.dist) / math.Sin(g.dist)
	b := math.Sin(f*g.dist) / math.Sin(g.dist)

	x := a*math.Cos(g.lat1)*math.Cos(g.lon1) + b*math.Cos(g.lat2)*math.Cos(g.lon2)
	y := a*math.Cos(g.lat1)*math.Sin(g.lon1) + b*math.Cos(g.lat2)*math.Sin(g.lon2)
	z := a*math.Sin(g.lat1) + b*math.Sin(g.lat2)

	lat := rad2deg(math.Atan2(z, math.Sqrt(x*x+y*y)))
	lon := rad2deg(math.Atan2(y, x))
	return orb.Point{lon, lat}
}

func splitAtSeam(pass orb.LineString, offset float64) []orb.LineString {
	leftBorder := 180 - offset
	rightBorder := -180 + offset
	diffSpace := 360 - offset

	bigDiff := false
	maxSmallDiff := 0.0
	for j := 1; j < len(pass); j++ {
		prevX, x := pass[j-1][0], pass[j][0]
		diff := math.Abs(x - prevX)
		if diff > diffSpace &&
			((x > leftBorder && prevX < rightBorder) || (prevX > leftBorder && x < rightBorder)) {
			bigDiff = true
		} else if diff > maxSmallDiff {
			maxSmallDiff = diff
		}
	}

	if !bigDiff || maxSmallDiff >= offset {
		return []orb.LineString{pass.Clone()}
	}

	current := orb.LineString{}
	pieces := []orb.LineString{}
	for k := 0; k < len(pass); k++ {
		x0 := pass[k][0]
		if k == 0 || math.Abs(x0-pass[k-1][0]) <= diffSpace {
			current = append(current, pass[k])
			continue
		}

		x1, y1 := pass[k-1][0], pass[k-1][1]
		x2, y2 := pass[k][0], pass[k][1]
		if x1 < rightBorder && x2 > leftBorder {
			x1, x2 = x2, x1
			y1, y2 = y2, y1
		}
		if x1 > leftBorder && x2 < rightBorder {
			x2 += 360
		}

		if x1 <= 180 && x2 >= 180 && x1 < x2 {
			ratio := (180 - x1) / (x2 - x1)
			y := ratio*y2 + (1-ratio)*y1

			seam := -180.0
			if pass[k-1][0] > leftBorder {
				seam = 180
			}
			current = append(current, orb.Point{seam, y})
			pieces = append(pieces, current)
			current = orb.LineString{{-seam, y}}
		} else {
			pieces = append(pieces, current)
			current = orb.LineString{}
		}
		current = append(current, pass[k])
	}
	return append(pieces, current)
}

func snap(p, want orb.Point) orb.Point {
	if math.Abs(p[0]-want[0]) < 1e-9 && math.Abs(p[1]-want[1]) < 1e-9 {
		return want
	}
	return p
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
