package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/flynnplatt/common-mapping-client/internal/service"
)

// RegisterEvents registers the layer change stream.
func (h *APIHandler) RegisterEvents(api huma.API) {
	if h.svc == nil || h.svc.Layer == nil {
		return
	}
	sse.Register(api, huma.Operation{
		OperationID: "layer-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/layers/events",
		Summary:     "Stream layer changes",
		Tags:        []string{"layers"},
	}, map[string]any{
		"layer": service.LayerEvent{},
	}, h.LayerEvents)
}

func (h *APIHandler) LayerEvents(ctx context.Context, input *struct{}, send sse.Sender) {
	bus := h.svc.Layer.Events()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}
