package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// Version is reported by /api/v1/info and the CLI.
const Version = "0.1.0"

type InfoHandler struct {
	dataDir    string
	projection string
}

func NewInfoHandler(dataDir, projection string) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, projection: projection}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	DataDir    string   `json:"data_dir" doc:"Data directory path"`
	Projection string   `json:"projection" doc:"Default map projection" example:"EPSG:4326"`
	Features   []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "common-mapping-client",
		Version:    Version,
		DataDir:    h.dataDir,
		Projection: h.projection,
		Features:   []string{"geodesic", "measure", "units", "wmts"},
	}}, nil
}
