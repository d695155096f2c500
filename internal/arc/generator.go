package arc

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/flynnplatt/common-mapping-client/internal/coords"
)

const (
	// DefaultPoints is the number of points each source segment is tessellated into.
	DefaultPoints = 100
	// DefaultOffset puts the seam detection borders on the prime meridian,
	// which matches the ±180 frame produced by coords.Constrain.
	DefaultOffset = 180
)

// Generator tessellates polylines into continuous geodesic paths.
type Generator struct {
	arcer  Arcer
	points int
	offset float64
}

// NewGenerator creates a generator backed by arcer. A nil arcer uses GreatCircle.
func NewGenerator(arcer Arcer) *Generator {
	if arcer == nil {
		arcer = GreatCircle{}
	}
	return &Generator{arcer: arcer, points: DefaultPoints, offset: DefaultOffset}
}

// LineString returns the geodesic path through coords as a single line.
//
// Each consecutive pair becomes a great-circle arc; identical pairs are
// skipped. Arcs are shifted by multiples of 360° so that the path never
// jumps across the antimeridian, which means longitudes in the result may
// leave [-180, 180].
func (g *Generator) LineString(points []orb.Point) (orb.LineString, error) {
	var line orb.LineString
	for i := 0; i+1 < len(points); i++ {
		start, end := points[i], points[i+1]
		if start.Equal(end) {
			continue
		}

		pieces, err := g.arcer.Arc(start, end, g.points, g.offset)
		if err != nil {
			return nil, fmt.Errorf("arc %d from %v to %v: %w", i, start, end, err)
		}
		if len(pieces) == 0 || len(pieces[0]) == 0 {
			continue
		}

		if i >= 1 && len(line) > 0 && line[len(line)-1][0] != pieces[0][0][0] {
			pieces = shiftPieces(pieces, line[len(line)-1][0])
		}

		arcLine := pieces[0]
		if len(pieces) >= 2 {
			arcLine = coords.DeconstrainArcCoordinates(pieces)
		}

		if len(line) > 0 && line[len(line)-1].Equal(arcLine[0]) {
			arcLine = arcLine[1:]
		}
		line = append(line, arcLine...)
	}
	return line, nil
}

// shiftPieces moves arc pieces next to lastLon, the longitude where the
// accumulated line currently ends.
func shiftPieces(pieces []orb.LineString, lastLon float64) []orb.LineString {
	initialShift := 1.0
	if lastLon < 0 {
		initialShift = -1
	}

	out := make([]orb.LineString, len(pieces))
	for i, piece := range pieces {
		if len(piece) == 0 {
			out[i] = piece
			continue
		}

		var shift float64
		if piece[0][0] <= 0 {
			if initialShift > 0 {
				shift = initialShift
			}
		} else if initialShift <= 0 {
			shift = initialShift
		}
		out[i] = coords.ShiftLongitude(piece, 360*shift)
	}
	return out
}
