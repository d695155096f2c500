// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/flynnplatt/common-mapping-client/internal/arc"
	"github.com/flynnplatt/common-mapping-client/internal/measure"
	"github.com/flynnplatt/common-mapping-client/internal/service"
	"github.com/flynnplatt/common-mapping-client/internal/units"
	"github.com/flynnplatt/common-mapping-client/internal/wmts"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Layer        *service.LayerService
	Capabilities *service.CapabilitiesService
	Measurer     *measure.Measurer
	Arcs         *arc.Generator
	Units        *units.Table
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"modis_true_color"`
}

type LayerOutput struct {
	Body service.LayerConfig
}

type LayersOutput struct {
	Body map[string]service.LayerConfig
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type CreatedLayerBody struct {
	ID      string              `json:"id" doc:"Generated layer ID"`
	Layer   service.LayerConfig `json:"layer" doc:"Created layer configuration"`
	Message string              `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type TileURLBody struct {
	URL string `json:"url" doc:"Tile url"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every API route.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLayers registers layer CRUD and tile addressing routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Post(api, "/api/v1/layers", h.CreateLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}", h.GetLayer, huma.OperationTags("layers"))
	huma.Put(api, "/api/v1/layers/{id}", h.PutLayer, huma.OperationTags("layers"))
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/options", h.GetLayerOptions, huma.OperationTags("layers"))
	huma.Get(api, "/api/v1/layers/{id}/tile-url", h.GetTileURL, huma.OperationTags("layers"))
}

// RegisterCapabilities registers capabilities document routes.
func (h *APIHandler) RegisterCapabilities(api huma.API) {
	huma.Get(api, "/api/v1/capabilities", h.GetCapabilities, huma.OperationTags("capabilities"))
}

// layerError maps service errors onto HTTP problems.
func layerError(err error) error {
	switch {
	case errors.Is(err, service.ErrLayerNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrLayerExists):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrInvalidLayer), errors.Is(err, service.ErrLevelRange):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*LayersOutput, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return &LayersOutput{Body: map[string]service.LayerConfig{}}, nil
	}
	return &LayersOutput{Body: h.svc.Layer.List()}, nil
}

func (h *APIHandler) CreateLayer(ctx context.Context, input *struct{ Body service.LayerConfig }) (*struct{ Body CreatedLayerBody }, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return nil, huma.Error503ServiceUnavailable("layer service not available")
	}
	created, err := h.svc.Layer.Create(input.Body)
	if err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body CreatedLayerBody }{Body: CreatedLayerBody{
		ID: created.ID, Layer: created, Message: "Layer created",
	}}, nil
}

func (h *APIHandler) GetLayer(ctx context.Context, input *IDInput) (*LayerOutput, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return nil, huma.Error503ServiceUnavailable("layer service not available")
	}
	layer, ok := h.svc.Layer.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	return &LayerOutput{Body: layer}, nil
}

func (h *APIHandler) PutLayer(ctx context.Context, input *struct {
	IDInput
	Body service.LayerConfig
}) (*LayerOutput, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return nil, huma.Error503ServiceUnavailable("layer service not available")
	}
	updated, err := h.svc.Layer.Update(input.ID, input.Body)
	if err != nil {
		return nil, layerError(err)
	}
	return &LayerOutput{Body: updated}, nil
}

func (h *APIHandler) DeleteLayer(ctx context.Context, input *IDInput) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return nil, huma.Error503ServiceUnavailable("layer service not available")
	}
	if err := h.svc.Layer.Delete(input.ID); err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer deleted"}}, nil
}

func (h *APIHandler) GetLayerOptions(ctx context.Context, input *IDInput) (*struct{ Body *wmts.Options }, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return nil, huma.Error503ServiceUnavailable("layer service not available")
	}
	opts, err := h.svc.Layer.Options(input.ID)
	if err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body *wmts.Options }{Body: opts}, nil
}

func (h *APIHandler) GetTileURL(ctx context.Context, input *struct {
	IDInput
	service.Tile
}) (*struct{ Body TileURLBody }, error) {
	if h.svc == nil || h.svc.Layer == nil {
		return nil, huma.Error503ServiceUnavailable("layer service not available")
	}
	u, err := h.svc.Layer.TileURL(input.ID, input.Tile)
	if err != nil {
		return nil, layerError(err)
	}
	return &struct{ Body TileURLBody }{Body: TileURLBody{URL: u}}, nil
}

func (h *APIHandler) GetCapabilities(ctx context.Context, input *struct{}) (*struct{ Body []service.CapabilitiesFile }, error) {
	if h.svc == nil || h.svc.Capabilities == nil {
		return &struct{ Body []service.CapabilitiesFile }{Body: []service.CapabilitiesFile{}}, nil
	}
	files, err := h.svc.Capabilities.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("listing capabilities documents", err)
	}
	return &struct{ Body []service.CapabilitiesFile }{Body: files}, nil
}
