package wmts

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"github.com/flynnplatt/common-mapping-client/internal/proj"
)

// Request encodings.
const (
	EncodingKVP  = "KVP"
	EncodingREST = "REST"
)

// metersPerPixel is the standardized rendering pixel size (0.28 mm).
const metersPerPixel = 0.28e-3

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrNoMatrixSet   = errors.New("no tile matrix set")
	ErrNoTileURL     = errors.New("no tile url")
)

// Query selects a layer from a capabilities document and optionally pins
// its matrix set, projection, format, style and request encoding.
type Query struct {
	Layer           string `json:"layer" doc:"Layer identifier"`
	MatrixSet       string `json:"matrixSet,omitempty" doc:"Tile matrix set identifier"`
	Projection      string `json:"projection,omitempty" doc:"Projection code used to pick a matrix set"`
	Format          string `json:"format,omitempty" doc:"Image format override"`
	Style           string `json:"style,omitempty" doc:"Style identifier or title"`
	RequestEncoding string `json:"requestEncoding,omitempty" enum:"KVP,REST," doc:"Request encoding override"`
}

// Grid is a tile grid derived from a tile matrix set. Slices are indexed
// by zoom level, highest scale denominator first.
type Grid struct {
	Extent      *[4]float64
	Origins     [][2]float64
	Resolutions []float64
	MatrixIDs   []string
	TileSizes   [][2]int
	Sizes       [][2]int
}

// SourceOptions is everything needed to build a WMTS tile source.
type SourceOptions struct {
	URLs            []string
	Layer           string
	MatrixSet       string
	Format          string
	Style           string
	RequestEncoding string
	Projection      *proj.Projection
	Dimensions      map[string]string
	WrapX           bool
	TileGrid        Grid
}

// Options is the flattened tile layer configuration handed to map clients.
type Options struct {
	URL             string     `json:"url" doc:"First tile url or template"`
	Layer           string     `json:"layer"`
	Format          string     `json:"format"`
	RequestEncoding string     `json:"requestEncoding" enum:"KVP,REST"`
	MatrixSet       string     `json:"matrixSet"`
	Projection      string     `json:"projection"`
	Extent          [4]float64 `json:"extents" doc:"Projection extent [minX, minY, maxX, maxY]"`
	TileGrid        TileGrid   `json:"tileGrid"`
}

type TileGrid struct {
	Origin      [2]float64 `json:"origin"`
	Resolutions []float64  `json:"resolutions"`
	MatrixIDs   []string   `json:"matrixIds"`
	MinZoom     int        `json:"minZoom"`
	MaxZoom     int        `json:"maxZoom"`
	TileSize    int        `json:"tileSize"`
}

var crsURN = regexp.MustCompile(`^urn:ogc:def:crs:(\w+):(.*:)?(\w+)$`)

// NormalizeCRS rewrites "urn:ogc:def:crs:AUTH:[version]:CODE" into "AUTH:CODE".
func NormalizeCRS(code string) string {
	return crsURN.ReplaceAllString(code, "$1:$3")
}

// resolveCRS finds a projection for a SupportedCRS value.
func resolveCRS(reg *proj.Registry, code string) (*proj.Projection, error) {
	if p, err := reg.Resolve(NormalizeCRS(code)); err == nil {
		return p, nil
	}
	return reg.Resolve(code)
}

// OptionsFromCapabilities derives tile source options for q.Layer using the
// process projection registry.
func OptionsFromCapabilities(caps *Capabilities, q Query) (*SourceOptions, error) {
	return optionsFromCapabilities(proj.Default(), caps, q)
}

func optionsFromCapabilities(reg *proj.Registry, caps *Capabilities, q Query) (*SourceOptions, error) {
	if caps == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidCapabilities)
	}
	layer, ok := caps.Contents.Layer(q.Layer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, q.Layer)
	}
	if len(layer.TileMatrixSetLinks) == 0 {
		return nil, fmt.Errorf("%w: layer %s", ErrNoMatrixSet, q.Layer)
	}

	link := layer.TileMatrixSetLinks[pickMatrixSetLink(reg, caps, layer, q)]
	matrixSet, ok := caps.Contents.TileMatrixSet(link.TileMatrixSet)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMatrixSet, link.TileMatrixSet)
	}

	opts := &SourceOptions{
		Layer:      q.Layer,
		MatrixSet:  matrixSet.Identifier,
		Style:      pickStyle(layer.Styles, q.Style),
		Dimensions: dimensions(layer.Dimensions),
	}
	if len(layer.Formats) > 0 {
		opts.Format = layer.Formats[0]
	}
	if q.Format != "" {
		opts.Format = q.Format
	}

	projection, err := resolveCRS(reg, matrixSet.SupportedCRS)
	if err != nil {
		return nil, fmt.Errorf("matrix set %s: %w", matrixSet.Identifier, err)
	}
	if q.Projection != "" {
		if configured, err := reg.Resolve(q.Projection); err == nil && reg.Equivalent(configured.Code, projection.Code) {
			projection = configured
		}
	}
	opts.Projection = projection

	var gridExtent *[4]float64
	if bb := layer.WGS84BoundingBox; bb != nil {
		gridExtent, opts.WrapX = layerExtent(reg, bb, projection)
	}

	grid, err := gridFromMatrixSet(reg, matrixSet, link.Limits)
	if err != nil {
		return nil, err
	}
	grid.Extent = gridExtent
	opts.TileGrid = grid

	opts.URLs, opts.RequestEncoding = tileURLs(caps, q.RequestEncoding)
	if len(opts.URLs) == 0 {
		opts.RequestEncoding = EncodingREST
		for _, r := range layer.ResourceURLs {
			if r.ResourceType == "tile" {
				opts.Format = r.Format
				opts.URLs = append(opts.URLs, r.Template)
			}
		}
	}
	return opts, nil
}

// pickMatrixSetLink returns the index of the link matching the query:
// by projection equivalence when a projection is given, otherwise by
// matrix set identifier. It falls back to the first link.
func pickMatrixSetLink(reg *proj.Registry, caps *Capabilities, layer *Layer, q Query) int {
	links := layer.TileMatrixSetLinks
	if len(links) == 1 {
		return 0
	}

	idx := slices.IndexFunc(links, func(l TileMatrixSetLink) bool {
		if q.Projection == "" {
			return l.TileMatrixSet == q.MatrixSet
		}
		set, ok := caps.Contents.TileMatrixSet(l.TileMatrixSet)
		if !ok {
			return false
		}
		p1, err1 := resolveCRS(reg, set.SupportedCRS)
		p2, err2 := reg.Resolve(q.Projection)
		if err1 == nil && err2 == nil {
			return reg.Equivalent(p1.Code, p2.Code)
		}
		return set.SupportedCRS == q.Projection
	})
	return max(idx, 0)
}

func pickStyle(styles []Style, want string) string {
	if len(styles) == 0 {
		return ""
	}
	idx := slices.IndexFunc(styles, func(s Style) bool {
		if want != "" {
			return s.Identifier == want || s.Title == want
		}
		return s.IsDefault
	})
	return styles[max(idx, 0)].Identifier
}

func dimensions(dims []Dimension) map[string]string {
	out := make(map[string]string, len(dims))
	for _, d := range dims {
		v := d.Default
		if v == "" && len(d.Values) > 0 {
			v = d.Values[0]
		}
		out[d.Identifier] = v
	}
	return out
}

// layerExtent reprojects the layer's WGS84 box into projection. The extent
// is dropped when it does not fit inside the projection extent.
func layerExtent(reg *proj.Registry, bb *BoundingBox, projection *proj.Projection) (*[4]float64, bool) {
	box, err := bb.Extent()
	if err != nil {
		return nil, false
	}
	wrapX := box[0] == -180 && box[2] == 180

	lower, err := reg.Transform(orb.Point{box[0], box[1]}, proj.LatLon, projection.Code)
	if err != nil {
		return nil, wrapX
	}
	upper, err := reg.Transform(orb.Point{box[2], box[3]}, proj.LatLon, projection.Code)
	if err != nil {
		return nil, wrapX
	}
	extent := orb.Bound{Min: lower, Max: lower}.Extend(upper)
	if !projection.Extent.Contains(extent.Min) || !projection.Extent.Contains(extent.Max) {
		return nil, wrapX
	}
	return &[4]float64{extent.Min[0], extent.Min[1], extent.Max[0], extent.Max[1]}, wrapX
}

// gridFromMatrixSet builds a tile grid from the matrices of set that are
// allowed by limits. An empty limits list allows every matrix.
func gridFromMatrixSet(reg *proj.Registry, set *TileMatrixSet, limits []TileMatrixLimits) (Grid, error) {
	projection, err := resolveCRS(reg, set.SupportedCRS)
	if err != nil {
		return Grid{}, fmt.Errorf("matrix set %s: %w", set.Identifier, err)
	}
	swapXY := projection.NorthEast()

	matrices := slices.Clone(set.TileMatrices)
	sort.SliceStable(matrices, func(i, j int) bool {
		return matrices[i].ScaleDenominator > matrices[j].ScaleDenominator
	})

	var g Grid
	for _, m := range matrices {
		if len(limits) > 0 && !slices.ContainsFunc(limits, func(l TileMatrixLimits) bool {
			return matrixMatches(set.Identifier, m.Identifier, l.TileMatrix)
		}) {
			continue
		}

		corner, err := m.Corner()
		if err != nil {
			return Grid{}, fmt.Errorf("tile matrix %s: %w", m.Identifier, err)
		}
		if swapXY {
			corner[0], corner[1] = corner[1], corner[0]
		}

		g.MatrixIDs = append(g.MatrixIDs, m.Identifier)
		g.Resolutions = append(g.Resolutions, m.ScaleDenominator*metersPerPixel/projection.MetersPerUnit)
		g.Origins = append(g.Origins, corner)
		g.TileSizes = append(g.TileSizes, [2]int{m.TileWidth, m.TileHeight})
		g.Sizes = append(g.Sizes, [2]int{m.MatrixWidth, -m.MatrixHeight})
	}
	if len(g.MatrixIDs) == 0 {
		return Grid{}, fmt.Errorf("%w: %s has no usable tile matrices", ErrNoMatrixSet, set.Identifier)
	}
	return g, nil
}

// matrixMatches compares a matrix identifier with a limits entry. Limits
// may prefix unqualified identifiers with the matrix set identifier.
func matrixMatches(setID, matrixID, limitID string) bool {
	if matrixID == limitID {
		return true
	}
	return !strings.Contains(matrixID, ":") && setID+":"+matrixID == limitID
}

// tileURLs collects GetTile endpoints from the operations metadata. The
// encoding is taken from the first GetEncoding constraint unless one was
// requested.
func tileURLs(caps *Capabilities, encoding string) ([]string, string) {
	op, ok := caps.OperationsMetadata.Operation("GetTile")
	if !ok {
		return nil, encoding
	}

	var urls []string
	for _, get := range op.Get {
		c, ok := get.Constraint("GetEncoding")
		if !ok {
			if get.Href != "" {
				encoding = EncodingKVP
				urls = append(urls, get.Href)
			}
			continue
		}
		if encoding == "" && len(c.AllowedValues) > 0 {
			encoding = c.AllowedValues[0]
		}
		if encoding != EncodingKVP {
			break
		}
		if slices.Contains(c.AllowedValues, EncodingKVP) {
			urls = append(urls, get.Href)
		}
	}
	return urls, encoding
}

// GetWmtsOptions prepares the registry with def and derives flattened tile
// layer options for q. The tile grid origin is the top left corner of the
// projection extent.
func GetWmtsOptions(reg *proj.Registry, def proj.DefaultProjection, caps *Capabilities, q Query) (*Options, error) {
	if _, err := reg.Prep(def); err != nil {
		log.Warn().Err(err).Str("proj", def.Code).Msg("Could not prepare projection for WMTS options")
		return nil, fmt.Errorf("prepare projection: %w", err)
	}

	src, err := optionsFromCapabilities(reg, caps, q)
	if err != nil {
		log.Warn().Err(err).Str("layer", q.Layer).Msg("Could not read WMTS options from capabilities")
		return nil, err
	}
	if len(src.URLs) == 0 {
		log.Warn().Str("layer", q.Layer).Msg("Could not read WMTS options, no tile url")
		return nil, fmt.Errorf("%w: layer %s", ErrNoTileURL, q.Layer)
	}

	projection := src.Projection
	extent := projection.ExtentArray()

	return &Options{
		URL:             src.URLs[0],
		Layer:           q.Layer,
		Format:          src.Format,
		RequestEncoding: src.RequestEncoding,
		MatrixSet:       src.MatrixSet,
		Projection:      projection.Code,
		Extent:          extent,
		TileGrid: TileGrid{
			Origin:      [2]float64{extent[0], extent[3]},
			Resolutions: src.TileGrid.Resolutions,
			MatrixIDs:   src.TileGrid.MatrixIDs,
			MinZoom:     0,
			MaxZoom:     len(src.TileGrid.Resolutions) - 1,
			TileSize:    src.TileGrid.TileSizes[0][0],
		},
	}, nil
}
