package wmts

import (
	"math"
	"strconv"
	"strings"
)

// ParseStringExtent parses exactly four numeric strings into
// [minX, minY, maxX, maxY].
func ParseStringExtent(parts []string) ([4]float64, bool) {
	var extent [4]float64
	if len(parts) != len(extent) {
		return extent, false
	}
	for i, s := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) {
			return [4]float64{}, false
		}
		extent[i] = v
	}
	return extent, true
}
