package wmts

import (
	"net/url"
	"strconv"
	"strings"
)

// Context2D is the request context of the 2D map, whose tile rows count
// up from the bottom and must be inverted.
const Context2D = "openlayers"

// TileRequest identifies one tile of a WMTS layer.
type TileRequest struct {
	LayerID          string         `json:"layerId"`
	URL              string         `json:"url" doc:"Base url or {TileMatrix}-style template"`
	TileMatrixSet    string         `json:"tileMatrixSet"`
	TileMatrixLabels map[int]string `json:"tileMatrixLabels,omitempty" doc:"Matrix identifier per zoom level"`
	Col              int            `json:"col"`
	Row              int            `json:"row"`
	Level            int            `json:"level"`
	Format           string         `json:"format"`
	Context          string         `json:"context,omitempty"`
}

// matrix returns the tile matrix identifier for the request level.
func (r TileRequest) matrix() string {
	if label, ok := r.TileMatrixLabels[r.Level]; ok {
		return label
	}
	return strconv.Itoa(r.Level)
}

// BuildTileURL returns the url of the requested tile. Templated urls have
// each placeholder substituted once; plain urls get a KVP GetTile query.
func BuildTileURL(r TileRequest) string {
	row := r.Row
	if r.Context == Context2D {
		row = -r.Row - 1
	}
	matrix := r.matrix()

	if strings.Contains(r.URL, "{") {
		u := strings.Replace(r.URL, "{TileMatrixSet}", r.TileMatrixSet, 1)
		u = strings.Replace(u, "{TileMatrix}", matrix, 1)
		u = strings.Replace(u, "{TileRow}", strconv.Itoa(row), 1)
		return strings.Replace(u, "{TileCol}", strconv.Itoa(r.Col), 1)
	}

	params := [][2]string{
		{"SERVICE", "WMTS"},
		{"REQUEST", "GetTile"},
		{"VERSION", "1.0.0"},
		{"LAYER", r.LayerID},
		{"STYLE", ""},
		{"TILEMATRIXSET", r.TileMatrixSet},
		{"TILEMATRIX", matrix},
		{"TILEROW", strconv.Itoa(row)},
		{"TILECOL", strconv.Itoa(r.Col)},
		{"FORMAT", encodeURIComponent(r.Format)},
	}

	var b strings.Builder
	b.WriteString(strings.Replace(r.URL, "?", "", 1))
	b.WriteByte('?')
	for i, kv := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(kv[1])
	}
	return b.String()
}

// uriUnreserved restores the characters a URI component may keep as is.
var uriUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriUnreserved.Replace(url.QueryEscape(s))
}
