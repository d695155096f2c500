package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/flynnplatt/common-mapping-client/internal/arc"
	"github.com/flynnplatt/common-mapping-client/internal/coords"
	"github.com/flynnplatt/common-mapping-client/internal/measure"
	"github.com/flynnplatt/common-mapping-client/internal/proj"
	"github.com/flynnplatt/common-mapping-client/internal/units"
)

type ConstrainInput struct {
	Body struct {
		Coordinates []float64 `json:"coordinates" doc:"[lon, lat] pair" example:"[200, 100]"`
		ConstrainY  *bool     `json:"constrainY,omitempty" doc:"Clamp latitude instead of wrapping it (default true)"`
	}
}

type PointBody struct {
	Coordinates orb.Point `json:"coordinates" doc:"[lon, lat] pair"`
}

type ArcsInput struct {
	Body struct {
		Coordinates []orb.Point `json:"coordinates" minItems:"2" doc:"Polyline vertices as [lon, lat] pairs"`
	}
}

type ArcsBody struct {
	Coordinates []orb.Point `json:"coordinates" doc:"Continuous geodesic path; longitudes may leave [-180, 180]"`
}

type MeasureInput struct {
	Body struct {
		Geometry        measure.Geometry `json:"geometry"`
		MeasurementType string           `json:"measurementType" enum:"Distance,Area" doc:"What to measure"`
		Units           string           `json:"units,omitempty" doc:"Unit system for the converted and formatted value" example:"metric"`
	}
}

type MeasureBody struct {
	Value     float64  `json:"value" doc:"Meters or square meters"`
	Converted *float64 `json:"converted,omitempty" doc:"Value in the requested units"`
	Formatted string   `json:"formatted,omitempty" doc:"Display string in the requested units"`
}

type LabelInput struct {
	Body struct {
		Geometry measure.Geometry `json:"geometry"`
	}
}

type ConvertInput struct {
	Body struct {
		Value           float64 `json:"value" doc:"Meters or square meters"`
		MeasurementType string  `json:"measurementType" enum:"Distance,Area"`
		Units           string  `json:"units" doc:"Unit system" example:"imperial"`
	}
}

type ConvertBody struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

type FormatInput struct {
	Body struct {
		Value           float64 `json:"value" doc:"Value already converted into the unit system"`
		MeasurementType string  `json:"measurementType"`
		Units           string  `json:"units" example:"metric"`
	}
}

type FormatBody struct {
	Formatted string `json:"formatted" example:"1.50 km"`
}

// RegisterCoords registers coordinate normalization routes.
func (h *APIHandler) RegisterCoords(api huma.API) {
	huma.Post(api, "/api/v1/coords/constrain", h.Constrain, huma.OperationTags("coords"))
	huma.Post(api, "/api/v1/coords/arcs", h.GeodesicArcs, huma.OperationTags("coords"))
}

// RegisterMeasure registers measurement routes.
func (h *APIHandler) RegisterMeasure(api huma.API) {
	huma.Post(api, "/api/v1/measure", h.Measure, huma.OperationTags("measure"))
	huma.Post(api, "/api/v1/measure/label", h.Label, huma.OperationTags("measure"))
	huma.Post(api, "/api/v1/measure/format", h.Format, huma.OperationTags("measure"))
}

// RegisterUnits registers unit table routes.
func (h *APIHandler) RegisterUnits(api huma.API) {
	huma.Get(api, "/api/v1/units", h.GetUnits, huma.OperationTags("units"))
	huma.Post(api, "/api/v1/units/convert", h.Convert, huma.OperationTags("units"))
}

func (h *APIHandler) measurer() *measure.Measurer {
	if h.svc != nil && h.svc.Measurer != nil {
		return h.svc.Measurer
	}
	return measure.Default()
}

func (h *APIHandler) arcs() *arc.Generator {
	if h.svc != nil && h.svc.Arcs != nil {
		return h.svc.Arcs
	}
	return arc.NewGenerator(nil)
}

func (h *APIHandler) units() *units.Table {
	if h.svc != nil && h.svc.Units != nil {
		return h.svc.Units
	}
	return units.Default()
}

// measureError maps measurement errors onto HTTP problems.
func measureError(err error) error {
	switch {
	case errors.Is(err, measure.ErrUnsupportedGeometry),
		errors.Is(err, measure.ErrUnsupportedMeasurement),
		errors.Is(err, measure.ErrNoCoordinates),
		errors.Is(err, proj.ErrUnknownProjection),
		errors.Is(err, units.ErrUnknownUnits),
		errors.Is(err, units.ErrUnsupportedMeasurement),
		errors.Is(err, units.ErrNotFinite):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error422UnprocessableEntity(err.Error())
	}
}

func (h *APIHandler) Constrain(ctx context.Context, input *ConstrainInput) (*struct{ Body PointBody }, error) {
	constrainY := input.Body.ConstrainY == nil || *input.Body.ConstrainY
	p, ok := coords.ConstrainCoordinates(input.Body.Coordinates, constrainY)
	if !ok {
		return nil, huma.Error400BadRequest("coordinates must be a [lon, lat] pair")
	}
	return &struct{ Body PointBody }{Body: PointBody{Coordinates: p}}, nil
}

func (h *APIHandler) GeodesicArcs(ctx context.Context, input *ArcsInput) (*struct{ Body ArcsBody }, error) {
	line, err := h.arcs().LineString(input.Body.Coordinates)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	return &struct{ Body ArcsBody }{Body: ArcsBody{Coordinates: line}}, nil
}

func (h *APIHandler) Measure(ctx context.Context, input *MeasureInput) (*struct{ Body MeasureBody }, error) {
	in := input.Body
	v, err := h.measurer().MeasureGeometry(in.Geometry, in.MeasurementType)
	if err != nil {
		return nil, measureError(err)
	}

	out := MeasureBody{Value: v}
	if in.Units != "" {
		var converted float64
		if in.MeasurementType == measure.Area {
			converted, err = h.units().ConvertArea(v, in.Units)
		} else {
			converted, err = h.units().ConvertDistance(v, in.Units)
		}
		if err != nil {
			return nil, measureError(err)
		}
		out.Converted = &converted
		// Configured custom units convert but have no display label.
		if s, err := units.FormatMeasurement(converted, in.MeasurementType, in.Units); err == nil {
			out.Formatted = s
		}
	}
	return &struct{ Body MeasureBody }{Body: out}, nil
}

func (h *APIHandler) Label(ctx context.Context, input *LabelInput) (*struct{ Body PointBody }, error) {
	p, err := h.measurer().LabelPosition(input.Body.Geometry)
	if err != nil {
		return nil, measureError(err)
	}
	return &struct{ Body PointBody }{Body: PointBody{Coordinates: p}}, nil
}

func (h *APIHandler) Format(ctx context.Context, input *FormatInput) (*struct{ Body FormatBody }, error) {
	s, err := units.FormatMeasurement(input.Body.Value, input.Body.MeasurementType, input.Body.Units)
	if err != nil {
		return nil, measureError(err)
	}
	return &struct{ Body FormatBody }{Body: FormatBody{Formatted: s}}, nil
}

func (h *APIHandler) GetUnits(ctx context.Context, input *struct{}) (*struct{ Body []units.Entry }, error) {
	return &struct{ Body []units.Entry }{Body: h.units().Entries()}, nil
}

func (h *APIHandler) Convert(ctx context.Context, input *ConvertInput) (*struct{ Body ConvertBody }, error) {
	in := input.Body
	var (
		v   float64
		err error
	)
	if in.MeasurementType == measure.Area {
		v, err = h.units().ConvertArea(in.Value, in.Units)
	} else {
		v, err = h.units().ConvertDistance(in.Value, in.Units)
	}
	if err != nil {
		return nil, measureError(err)
	}
	return &struct{ Body ConvertBody }{Body: ConvertBody{Value: v, Units: in.Units}}, nil
}
