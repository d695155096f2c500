// Package coords wraps and unwraps coordinates across the ±180° and ±90° seams.
package coords

import (
	"math"

	"github.com/paulmach/orb"
)

// ConstrainCoordinates constrains a [lon, lat] pair to [±180, ±90].
// It reports false when coords is not exactly two components.
func ConstrainCoordinates(coords []float64, constrainY bool) (orb.Point, bool) {
	if len(coords) != 2 {
		return orb.Point{}, false
	}
	return Constrain(orb.Point{coords[0], coords[1]}, constrainY), true
}

// Constrain wraps the longitude of p into [-180, 180]. When constrainY is
// true the latitude is clamped to [-90, 90], otherwise it is wrapped the same
// way as the longitude with a divisor of 90.
func Constrain(p orb.Point, constrainY bool) orb.Point {
	x := wrap(p[0], 180)

	var y float64
	if constrainY {
		if p[1] > 0 {
			y = math.Min(90, p[1])
		} else {
			y = math.Max(-90, p[1])
		}
	} else {
		y = wrap(p[1], 90)
	}
	return orb.Point{x, y}
}

// wrap folds v into [-limit, limit]. math.Mod keeps the sign of v.
func wrap(v, limit float64) float64 {
	if math.Abs(v) <= limit {
		return v
	}

	odd := int64(math.Floor(v/limit))%2 != 0
	rem := math.Mod(v, limit)
	if v < 0 {
		if odd {
			return rem
		}
		return limit - math.Abs(rem)
	}
	if odd {
		return -(limit - math.Abs(rem))
	}
	return rem
}

// DeconstrainArcCoordinates joins line segments that were split at the
// antimeridian back into one continuous line. The first segment is the
// reference frame: later segments starting on the other side of the seam
// from its last point are shifted by 360°. The first point of every appended
// segment is dropped since it repeats the previous segment's end.
func DeconstrainArcCoordinates(segments []orb.LineString) orb.LineString {
	if len(segments) == 0 {
		return nil
	}
	if len(segments) < 2 {
		return segments[0].Clone()
	}

	reference := segments[0]
	var refEnd orb.Point
	if len(reference) > 0 {
		refEnd = reference[len(reference)-1]
	}

	line := reference.Clone()
	for _, seg := range segments[1:] {
		if len(seg) == 0 {
			continue
		}

		shift := 0.0
		start := seg[0]
		if refEnd[0] <= 0 {
			if start[0] >= 0 {
				shift = -360
			}
		} else if start[0] <= 0 {
			shift = 360
		}

		for _, p := range seg[1:] {
			line = append(line, orb.Point{p[0] + shift, p[1]})
		}
	}
	return line
}

// ShiftLongitude returns a copy of ls with every longitude moved by delta degrees.
func ShiftLongitude(ls orb.LineString, delta float64) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = orb.Point{p[0] + delta, p[1]}
	}
	return out
}
