package wmts

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/flynnplatt/common-mapping-client/internal/proj"
)

const mercatorEdge = 20037508.342789244

func preppedRegistry(t *testing.T) *proj.Registry {
	t.Helper()
	reg := proj.NewRegistry()
	if _, err := reg.Prep(proj.DefaultProjection{Code: proj.LatLon}); err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestNormalizeCRS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"urn:ogc:def:crs:OGC:1.3:CRS84", "OGC:CRS84"},
		{"urn:ogc:def:crs:EPSG::3857", "EPSG:3857"},
		{"urn:ogc:def:crs:EPSG:6.18:3:3857", "EPSG:3857"},
		{"EPSG:4326", "EPSG:4326"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCRS(tt.in); got != tt.want {
			t.Errorf("NormalizeCRS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptionsFromCapabilities_KVP(t *testing.T) {
	reg := preppedRegistry(t)
	caps := loadFixture(t, "kvp.xml")

	opts, err := optionsFromCapabilities(reg, caps, Query{Layer: "TrueColor", Projection: proj.LatLon})
	if err != nil {
		t.Fatal(err)
	}

	if opts.MatrixSet != "250m" {
		t.Errorf("matrix set = %q", opts.MatrixSet)
	}
	if opts.Projection.Code != proj.LatLon {
		t.Errorf("projection = %q", opts.Projection.Code)
	}
	if opts.Format != "image/jpeg" || opts.Style != "default" {
		t.Errorf("format = %q, style = %q", opts.Format, opts.Style)
	}
	if opts.RequestEncoding != EncodingKVP {
		t.Errorf("encoding = %q", opts.RequestEncoding)
	}
	wantURLs := []string{
		"https://imagery.example.com/wmts/epsg4326/wmts.cgi?",
		"https://mirror.example.com/wmts/epsg4326/wmts.cgi?",
	}
	if !slices.Equal(opts.URLs, wantURLs) {
		t.Errorf("urls = %v", opts.URLs)
	}
	if opts.Dimensions["Time"] != "2016-03-02" {
		t.Errorf("dimensions = %v", opts.Dimensions)
	}
	if !opts.WrapX {
		t.Error("global layer should wrap")
	}
	if opts.TileGrid.Extent == nil || *opts.TileGrid.Extent != [4]float64{-180, -90, 180, 90} {
		t.Errorf("grid extent = %v", opts.TileGrid.Extent)
	}

	grid := opts.TileGrid
	if !slices.Equal(grid.MatrixIDs, []string{"0", "1", "2"}) {
		t.Errorf("matrix ids = %v", grid.MatrixIDs)
	}
	want0 := 279541132.0143589 * 0.28e-3 / proj.DegreeMetersPerUnit
	if math.Abs(grid.Resolutions[0]-want0) > 1e-12 {
		t.Errorf("resolution 0 = %v, want %v", grid.Resolutions[0], want0)
	}
	for i := 1; i < len(grid.Resolutions); i++ {
		if grid.Resolutions[i] >= grid.Resolutions[i-1] {
			t.Errorf("resolutions not descending: %v", grid.Resolutions)
		}
	}
	if grid.Origins[0] != [2]float64{-180, 90} {
		t.Errorf("origin = %v", grid.Origins[0])
	}
	if grid.TileSizes[0] != [2]int{512, 512} || grid.Sizes[2] != [2]int{8, -4} {
		t.Errorf("tile size = %v, size = %v", grid.TileSizes[0], grid.Sizes[2])
	}
}

func TestOptionsFromCapabilities_MatrixSetSelection(t *testing.T) {
	reg := preppedRegistry(t)
	caps := loadFixture(t, "kvp.xml")

	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"by equivalent projection", Query{Layer: "TrueColor", Projection: proj.OGCCRS84}, "250m"},
		{"by mercator projection", Query{Layer: "TrueColor", Projection: proj.WebMercator}, "GoogleMapsCompatible"},
		{"by identifier", Query{Layer: "TrueColor", MatrixSet: "GoogleMapsCompatible"}, "GoogleMapsCompatible"},
		{"unknown identifier falls back", Query{Layer: "TrueColor", MatrixSet: "nope"}, "250m"},
		{"single link", Query{Layer: "Coastlines", MatrixSet: "ignored"}, "EPSG4326_NE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := optionsFromCapabilities(reg, caps, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if opts.MatrixSet != tt.want {
				t.Errorf("matrix set = %q, want %q", opts.MatrixSet, tt.want)
			}
		})
	}
}

func TestOptionsFromCapabilities_Overrides(t *testing.T) {
	reg := preppedRegistry(t)
	caps := loadFixture(t, "kvp.xml")

	opts, err := optionsFromCapabilities(reg, caps, Query{Layer: "TrueColor", Style: "Alternate", Format: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Style != "alt" || opts.Format != "image/png" {
		t.Errorf("style = %q, format = %q", opts.Style, opts.Format)
	}

	opts, err = optionsFromCapabilities(reg, caps, Query{Layer: "TrueColor", RequestEncoding: EncodingREST})
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.URLs) != 0 || opts.RequestEncoding != EncodingREST {
		t.Errorf("REST request against a KVP-only service: urls = %v, encoding = %q", opts.URLs, opts.RequestEncoding)
	}
}

func TestOptionsFromCapabilities_NorthEastAxis(t *testing.T) {
	reg := preppedRegistry(t)
	caps := loadFixture(t, "kvp.xml")

	opts, err := optionsFromCapabilities(reg, caps, Query{Layer: "Coastlines"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Projection.Code != proj.LatLon {
		t.Errorf("projection = %q", opts.Projection.Code)
	}
	if opts.TileGrid.Origins[0] != [2]float64{-180, 90} {
		t.Errorf("origin = %v, want swapped [-180 90]", opts.TileGrid.Origins[0])
	}
	if opts.TileGrid.Extent != nil || opts.WrapX {
		t.Error("layer without a WGS84 box has no grid extent")
	}
}

func TestOptionsFromCapabilities_REST(t *testing.T) {
	reg := preppedRegistry(t)
	caps := loadFixture(t, "rest.xml")

	opts, err := optionsFromCapabilities(reg, caps, Query{Layer: "streets"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.RequestEncoding != EncodingREST {
		t.Errorf("encoding = %q", opts.RequestEncoding)
	}
	want := "https://tiles.example.com/streets/{TileMatrixSet}/{TileMatrix}/{TileRow}/{TileCol}.png"
	if len(opts.URLs) != 1 || opts.URLs[0] != want {
		t.Errorf("urls = %v", opts.URLs)
	}
	if opts.Format != "image/png" {
		t.Errorf("format = %q", opts.Format)
	}
	if opts.Projection.Code != proj.WebMercator {
		t.Errorf("projection = %q", opts.Projection.Code)
	}

	grid := opts.TileGrid
	if !slices.Equal(grid.MatrixIDs, []string{"0", "1"}) {
		t.Errorf("limits should keep matrices 0 and 1, got %v", grid.MatrixIDs)
	}
	if math.Abs(grid.Resolutions[0]-156543.03392804097) > 1e-6 {
		t.Errorf("resolution 0 = %v", grid.Resolutions[0])
	}
	if math.Abs(grid.Origins[0][0]+mercatorEdge) > 1e-3 || math.Abs(grid.Origins[0][1]-mercatorEdge) > 1e-3 {
		t.Errorf("origin = %v", grid.Origins[0])
	}
}

func TestOptionsFromCapabilities_Errors(t *testing.T) {
	caps := loadFixture(t, "kvp.xml")

	if _, err := optionsFromCapabilities(preppedRegistry(t), caps, Query{Layer: "missing"}); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound, got %v", err)
	}
	if _, err := optionsFromCapabilities(preppedRegistry(t), nil, Query{Layer: "TrueColor"}); !errors.Is(err, ErrInvalidCapabilities) {
		t.Errorf("expected ErrInvalidCapabilities, got %v", err)
	}

	// CRS84 is unknown until the registry is prepared.
	if _, err := optionsFromCapabilities(proj.NewRegistry(), caps, Query{Layer: "TrueColor"}); !errors.Is(err, proj.ErrUnknownProjection) {
		t.Errorf("expected ErrUnknownProjection, got %v", err)
	}
}

func TestMatrixMatches(t *testing.T) {
	tests := []struct {
		set, matrix, limit string
		want               bool
	}{
		{"GoogleMapsCompatible", "3", "3", true},
		{"GoogleMapsCompatible", "3", "GoogleMapsCompatible:3", true},
		{"GoogleMapsCompatible", "3", "Other:3", false},
		{"EPSG:3857", "EPSG:3857:3", "EPSG:3857:3", true},
		{"EPSG:3857", "EPSG:3857:3", "EPSG:3857:EPSG:3857:3", false},
	}
	for _, tt := range tests {
		if got := matrixMatches(tt.set, tt.matrix, tt.limit); got != tt.want {
			t.Errorf("matrixMatches(%q, %q, %q) = %v", tt.set, tt.matrix, tt.limit, got)
		}
	}
}

func TestGetWmtsOptions(t *testing.T) {
	reg := proj.NewRegistry()
	caps := loadFixture(t, "kvp.xml")
	def := proj.DefaultProjection{Code: proj.LatLon, Extent: [4]float64{-180, -90, 180, 90}}

	opts, err := GetWmtsOptions(reg, def, caps, Query{Layer: "TrueColor", Projection: proj.LatLon})
	if err != nil {
		t.Fatal(err)
	}

	if opts.URL != "https://imagery.example.com/wmts/epsg4326/wmts.cgi?" {
		t.Errorf("url = %q", opts.URL)
	}
	if opts.Layer != "TrueColor" || opts.Format != "image/jpeg" || opts.MatrixSet != "250m" {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Projection != proj.LatLon || opts.RequestEncoding != EncodingKVP {
		t.Errorf("projection = %q, encoding = %q", opts.Projection, opts.RequestEncoding)
	}
	if opts.Extent != def.Extent {
		t.Errorf("extent = %v", opts.Extent)
	}

	grid := opts.TileGrid
	if grid.Origin != [2]float64{-180, 90} {
		t.Errorf("origin = %v", grid.Origin)
	}
	if grid.MinZoom != 0 || grid.MaxZoom != 2 || grid.TileSize != 512 {
		t.Errorf("zoom = %d..%d, tile size = %d", grid.MinZoom, grid.MaxZoom, grid.TileSize)
	}
	if len(grid.Resolutions) != 3 || !slices.Equal(grid.MatrixIDs, []string{"0", "1", "2"}) {
		t.Errorf("grid = %+v", grid)
	}
}

func TestGetWmtsOptions_ExtentOverride(t *testing.T) {
	reg := proj.NewRegistry()
	caps := loadFixture(t, "rest.xml")
	def := proj.DefaultProjection{Code: proj.WebMercator, Extent: [4]float64{-2e7, -1e7, 2e7, 1e7}}

	opts, err := GetWmtsOptions(reg, def, caps, Query{Layer: "streets"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Extent != def.Extent {
		t.Errorf("extent = %v, want %v", opts.Extent, def.Extent)
	}
	if opts.TileGrid.Origin != [2]float64{-2e7, 1e7} {
		t.Errorf("origin = %v", opts.TileGrid.Origin)
	}
	if opts.TileGrid.MaxZoom != 1 || opts.TileGrid.TileSize != 256 {
		t.Errorf("grid = %+v", opts.TileGrid)
	}
}

func TestGetWmtsOptions_Errors(t *testing.T) {
	caps := loadFixture(t, "kvp.xml")
	def := proj.DefaultProjection{Code: proj.LatLon}

	if _, err := GetWmtsOptions(proj.NewRegistry(), def, caps, Query{Layer: "missing"}); !errors.Is(err, ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound, got %v", err)
	}
	if _, err := GetWmtsOptions(proj.NewRegistry(), proj.DefaultProjection{Code: "bogus"}, caps, Query{Layer: "TrueColor"}); !errors.Is(err, proj.ErrUnknownProjection) {
		t.Errorf("expected ErrUnknownProjection, got %v", err)
	}

	bare, err := ParseCapabilities([]byte(`<Capabilities version="1.0.0"><Contents>
		<Layer><Identifier>x</Identifier><TileMatrixSetLink><TileMatrixSet>s</TileMatrixSet></TileMatrixSetLink></Layer>
		<TileMatrixSet><Identifier>s</Identifier><SupportedCRS>EPSG:3857</SupportedCRS>
		<TileMatrix><Identifier>0</Identifier><ScaleDenominator>1</ScaleDenominator><TopLeftCorner>0 0</TopLeftCorner><TileWidth>256</TileWidth><TileHeight>256</TileHeight></TileMatrix>
		</TileMatrixSet></Contents></Capabilities>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GetWmtsOptions(proj.NewRegistry(), def, bare, Query{Layer: "x"}); !errors.Is(err, ErrNoTileURL) {
		t.Errorf("expected ErrNoTileURL, got %v", err)
	}
}
