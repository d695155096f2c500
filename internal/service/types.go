// Package service contains the stateful parts of the map server: the
// registry of WMTS layers and the capabilities documents they refer to.
package service

import "github.com/flynnplatt/common-mapping-client/internal/wmts"

// LayerConfig is a WMTS map layer. Huma reads the tags for OpenAPI and
// request validation.
type LayerConfig struct {
	ID               string         `json:"id,omitempty" doc:"Unique layer identifier" example:"modis_true_color"`
	Name             string         `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"MODIS True Color"`
	Capabilities     string         `json:"capabilities" required:"true" doc:"Capabilities document in the data directory" example:"gibs.xml"`
	Layer            string         `json:"layer" required:"true" minLength:"1" doc:"Layer identifier in the capabilities document" example:"MODIS_Terra_CorrectedReflectance_TrueColor"`
	MatrixSet        string         `json:"matrixSet,omitempty" doc:"Tile matrix set identifier" example:"250m"`
	Projection       string         `json:"projection,omitempty" doc:"Projection used to pick a matrix set" example:"EPSG:4326"`
	Format           string         `json:"format,omitempty" doc:"Image format override" example:"image/jpeg"`
	Style            string         `json:"style,omitempty" doc:"Style identifier or title"`
	TileMatrixLabels map[int]string `json:"tileMatrixLabels,omitempty" doc:"Matrix identifier per zoom level; defaults to the matrix set identifiers"`
	DefaultVisible   bool           `json:"defaultVisible,omitempty" default:"true" doc:"Whether layer is visible by default"`
	Opacity          float64        `json:"opacity,omitempty" minimum:"0" maximum:"1" default:"1" doc:"Layer opacity (0-1)"`
}

// Query returns the capabilities query selecting this layer.
func (l LayerConfig) Query() wmts.Query {
	return wmts.Query{
		Layer:      l.Layer,
		MatrixSet:  l.MatrixSet,
		Projection: l.Projection,
		Format:     l.Format,
		Style:      l.Style,
	}
}

// CapabilitiesFile describes a capabilities document on disk.
type CapabilitiesFile struct {
	Name   string   `json:"name" doc:"File name" example:"gibs.xml"`
	Size   string   `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	Title  string   `json:"title,omitempty" doc:"Service title"`
	Layers []string `json:"layers" doc:"Layer identifiers offered by the service"`
	Error  string   `json:"error,omitempty" doc:"Why the document could not be read"`
}
