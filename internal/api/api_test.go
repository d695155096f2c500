package api

import (
	"encoding/json"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/flynnplatt/common-mapping-client/internal/arc"
	"github.com/flynnplatt/common-mapping-client/internal/measure"
	"github.com/flynnplatt/common-mapping-client/internal/proj"
	"github.com/flynnplatt/common-mapping-client/internal/service"
	"github.com/flynnplatt/common-mapping-client/internal/units"
)

const oneDegree = 6378137 * math.Pi / 180

func newServices(t *testing.T) *Services {
	t.Helper()
	dataDir := t.TempDir()
	capsDir := filepath.Join(dataDir, "capabilities")
	if err := os.MkdirAll(capsDir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join("..", "service", "testdata", "imagery.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(capsDir, "imagery.xml"), data, 0644); err != nil {
		t.Fatal(err)
	}

	reg := proj.NewRegistry()
	def := proj.DefaultProjection{Code: proj.LatLon}
	if _, err := reg.Prep(def); err != nil {
		t.Fatal(err)
	}
	arcs := arc.NewGenerator(nil)
	caps := service.NewCapabilitiesService(dataDir)
	return &Services{
		Layer:        service.NewLayerService(dataDir, caps, reg, def),
		Capabilities: caps,
		Measurer:     measure.New(reg, arcs, measure.OrbPrimitives{}),
		Arcs:         arcs,
		Units:        units.Default(),
	}
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func TestHealth(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("code=%d, want 200", resp.Code)
	}
	var body HealthBody
	decode(t, resp.Body.Bytes(), &body)
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestGetInfo(t *testing.T) {
	_, api := humatest.New(t)
	NewInfoHandler(".data", proj.LatLon).RegisterRoutes(api)

	resp := api.Get("/api/v1/info")
	var body InfoBody
	decode(t, resp.Body.Bytes(), &body)
	if body.Name != "common-mapping-client" {
		t.Fatalf("name=%q, want common-mapping-client", body.Name)
	}
	if body.Projection != proj.LatLon {
		t.Fatalf("projection=%q, want %s", body.Projection, proj.LatLon)
	}
}

func TestConstrain(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	tests := []struct {
		name string
		body map[string]any
		want [2]float64
	}{
		{"default clamps latitude", map[string]any{"coordinates": []float64{200, 100}}, [2]float64{-160, 90}},
		{"wrap latitude", map[string]any{"coordinates": []float64{200, 100}, "constrainY": false}, [2]float64{-160, -80}},
		{"in range", map[string]any{"coordinates": []float64{10, 20}}, [2]float64{10, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Post("/api/v1/coords/constrain", tt.body)
			if resp.Code != http.StatusOK {
				t.Fatalf("code=%d: %s", resp.Code, resp.Body)
			}
			var body PointBody
			decode(t, resp.Body.Bytes(), &body)
			if body.Coordinates[0] != tt.want[0] || body.Coordinates[1] != tt.want[1] {
				t.Errorf("coordinates=%v, want %v", body.Coordinates, tt.want)
			}
		})
	}

	resp := api.Post("/api/v1/coords/constrain", map[string]any{"coordinates": []float64{1, 2, 3}})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("arity: code=%d, want 400", resp.Code)
	}
}

func TestGeodesicArcs(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	resp := api.Post("/api/v1/coords/arcs", map[string]any{
		"coordinates": [][2]float64{{170, 0}, {-170, 0}},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("code=%d: %s", resp.Code, resp.Body)
	}
	var body ArcsBody
	decode(t, resp.Body.Bytes(), &body)
	if len(body.Coordinates) < 2 {
		t.Fatalf("len=%d, want a tessellated path", len(body.Coordinates))
	}
	for i := 1; i < len(body.Coordinates); i++ {
		if d := math.Abs(body.Coordinates[i][0] - body.Coordinates[i-1][0]); d > 180 {
			t.Fatalf("jump of %v between %v and %v", d, body.Coordinates[i-1], body.Coordinates[i])
		}
	}
}

func TestMeasure(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	resp := api.Post("/api/v1/measure", map[string]any{
		"geometry": map[string]any{
			"type":        "LineString",
			"coordinates": []map[string]float64{{"lon": 0, "lat": 0}, {"lon": 1, "lat": 0}},
		},
		"measurementType": "Distance",
		"units":           "metric",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("code=%d: %s", resp.Code, resp.Body)
	}
	var body MeasureBody
	decode(t, resp.Body.Bytes(), &body)
	if math.Abs(body.Value-oneDegree) > 1 {
		t.Errorf("value=%v, want %v", body.Value, oneDegree)
	}
	if body.Converted == nil || math.Abs(*body.Converted-oneDegree) > 1 {
		t.Errorf("converted=%v, want %v", body.Converted, oneDegree)
	}
	if body.Formatted != "111.32 km" {
		t.Errorf("formatted=%q, want 111.32 km", body.Formatted)
	}
}

func TestMeasure_Errors(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	tests := []struct {
		name string
		body map[string]any
	}{
		{"circle", map[string]any{
			"geometry":        map[string]any{"type": "Circle", "coordinates": []map[string]float64{{"lon": 0, "lat": 0}}},
			"measurementType": "Distance",
		}},
		{"area of line", map[string]any{
			"geometry":        map[string]any{"type": "LineString", "coordinates": []map[string]float64{{"lon": 0, "lat": 0}}},
			"measurementType": "Area",
		}},
		{"unknown units", map[string]any{
			"geometry": map[string]any{"type": "LineString", "coordinates": []map[string]float64{
				{"lon": 0, "lat": 0}, {"lon": 1, "lat": 0},
			}},
			"measurementType": "Distance",
			"units":           "cubits",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Post("/api/v1/measure", tt.body)
			if resp.Code != http.StatusBadRequest {
				t.Errorf("code=%d, want 400: %s", resp.Code, resp.Body)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	resp := api.Post("/api/v1/measure/label", map[string]any{
		"geometry": map[string]any{
			"type":        "LineString",
			"coordinates": []map[string]float64{{"lon": 0, "lat": 0}, {"lon": 200, "lat": 100}},
		},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("code=%d: %s", resp.Code, resp.Body)
	}
	var body PointBody
	decode(t, resp.Body.Bytes(), &body)
	if body.Coordinates[0] != -160 || body.Coordinates[1] != 90 {
		t.Errorf("label=%v, want [-160 90]", body.Coordinates)
	}
}

func TestFormat(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	resp := api.Post("/api/v1/measure/format", map[string]any{
		"value": 1500, "measurementType": "Distance", "units": "metric",
	})
	var body FormatBody
	decode(t, resp.Body.Bytes(), &body)
	if body.Formatted != "1.50 km" {
		t.Errorf("formatted=%q, want 1.50 km", body.Formatted)
	}

	resp = api.Post("/api/v1/measure/format", map[string]any{
		"value": 1500, "measurementType": "Volume", "units": "metric",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("code=%d, want 400", resp.Code)
	}
}

func TestUnits(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	var entries []units.Entry
	decode(t, api.Get("/api/v1/units").Body.Bytes(), &entries)
	if len(entries) != len(units.DefaultEntries()) {
		t.Fatalf("len=%d, want %d", len(entries), len(units.DefaultEntries()))
	}

	resp := api.Post("/api/v1/units/convert", map[string]any{
		"value": 3.048, "measurementType": "Distance", "units": units.Imperial,
	})
	var body ConvertBody
	decode(t, resp.Body.Bytes(), &body)
	if math.Abs(body.Value-10) > 1e-9 {
		t.Errorf("value=%v, want 10", body.Value)
	}

	resp = api.Post("/api/v1/units/convert", map[string]any{
		"value": 1, "measurementType": "Distance", "units": "cubits",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("code=%d, want 400", resp.Code)
	}
}

func TestLayerRoutes(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	resp := api.Post("/api/v1/layers", map[string]any{
		"name":         "True Color",
		"capabilities": "imagery.xml",
		"layer":        "TrueColor",
		"projection":   proj.LatLon,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("create: code=%d: %s", resp.Code, resp.Body)
	}
	var created CreatedLayerBody
	decode(t, resp.Body.Bytes(), &created)
	if created.ID != "true_color" {
		t.Fatalf("id=%q, want true_color", created.ID)
	}

	resp = api.Post("/api/v1/layers", map[string]any{
		"name": "True Color", "capabilities": "imagery.xml", "layer": "TrueColor",
	})
	if resp.Code != http.StatusConflict {
		t.Errorf("duplicate: code=%d, want 409", resp.Code)
	}

	resp = api.Post("/api/v1/layers", map[string]any{
		"name": "Missing", "capabilities": "imagery.xml", "layer": "Nope",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("unknown layer: code=%d, want 400", resp.Code)
	}

	resp = api.Get("/api/v1/layers/true_color/tile-url?level=1&row=0&col=1")
	if resp.Code != http.StatusOK {
		t.Fatalf("tile-url: code=%d: %s", resp.Code, resp.Body)
	}
	var tile TileURLBody
	decode(t, resp.Body.Bytes(), &tile)
	want := "https://imagery.example.com/wmts/epsg4326/wmts.cgi?SERVICE=WMTS&REQUEST=GetTile&VERSION=1.0.0" +
		"&LAYER=TrueColor&STYLE=&TILEMATRIXSET=250m&TILEMATRIX=1&TILEROW=0&TILECOL=1&FORMAT=image%2Fjpeg"
	if tile.URL != want {
		t.Errorf("url=%s\nwant %s", tile.URL, want)
	}

	if resp := api.Get("/api/v1/layers/true_color/tile-url?level=99"); resp.Code != http.StatusBadRequest {
		t.Errorf("level range: code=%d, want 400", resp.Code)
	}
	if resp := api.Get("/api/v1/layers/true_color/options"); resp.Code != http.StatusOK {
		t.Errorf("options: code=%d: %s", resp.Code, resp.Body)
	}
	if resp := api.Delete("/api/v1/layers/true_color"); resp.Code != http.StatusOK {
		t.Errorf("delete: code=%d", resp.Code)
	}
	if resp := api.Get("/api/v1/layers/true_color"); resp.Code != http.StatusNotFound {
		t.Errorf("after delete: code=%d, want 404", resp.Code)
	}
}

func TestGetCapabilities(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, newServices(t))

	var files []service.CapabilitiesFile
	decode(t, api.Get("/api/v1/capabilities").Body.Bytes(), &files)
	if len(files) != 1 || files[0].Name != "imagery.xml" {
		t.Fatalf("files=%+v", files)
	}
	if files[0].Title != "Earth Imagery" {
		t.Errorf("title=%q, want Earth Imagery", files[0].Title)
	}
}

func TestMeasurementTypesAgree(t *testing.T) {
	if units.Distance != measure.Distance || units.Area != measure.Area {
		t.Fatalf("units %q/%q, measure %q/%q", units.Distance, units.Area, measure.Distance, measure.Area)
	}
}
