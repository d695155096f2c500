// Package wmts reads WMTS capabilities documents and addresses tiles.
package wmts

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrInvalidCapabilities = errors.New("invalid capabilities document")

// Capabilities is a WMTS 1.0.0 GetCapabilities response. Only the parts
// needed to configure a tile source are decoded.
type Capabilities struct {
	XMLName               xml.Name              `xml:"Capabilities"`
	Version               string                `xml:"version,attr"`
	ServiceIdentification ServiceIdentification `xml:"ServiceIdentification"`
	OperationsMetadata    *OperationsMetadata   `xml:"OperationsMetadata"`
	Contents              Contents              `xml:"Contents"`
}

type ServiceIdentification struct {
	Title       string `xml:"Title"`
	ServiceType string `xml:"ServiceType"`
}

type OperationsMetadata struct {
	Operations []Operation `xml:"Operation"`
}

// Operation returns the named operation.
func (m *OperationsMetadata) Operation(name string) (Operation, bool) {
	if m == nil {
		return Operation{}, false
	}
	for _, op := range m.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

type Operation struct {
	Name string `xml:"name,attr"`
	Get  []Link `xml:"DCP>HTTP>Get"`
}

// Link is an HTTP endpoint with optional constraints.
type Link struct {
	Href        string       `xml:"href,attr"`
	Constraints []Constraint `xml:"Constraint"`
}

// Constraint returns the named constraint.
func (l Link) Constraint(name string) (Constraint, bool) {
	for _, c := range l.Constraints {
		if c.Name == name {
			return c, true
		}
	}
	return Constraint{}, false
}

type Constraint struct {
	Name          string   `xml:"name,attr"`
	AllowedValues []string `xml:"AllowedValues>Value"`
}

type Contents struct {
	Layers         []Layer         `xml:"Layer"`
	TileMatrixSets []TileMatrixSet `xml:"TileMatrixSet"`
}

// Layer returns the layer with the given identifier.
func (c *Contents) Layer(id string) (*Layer, bool) {
	for i := range c.Layers {
		if c.Layers[i].Identifier == id {
			return &c.Layers[i], true
		}
	}
	return nil, false
}

// TileMatrixSet returns the matrix set with the given identifier.
func (c *Contents) TileMatrixSet(id string) (*TileMatrixSet, bool) {
	for i := range c.TileMatrixSets {
		if c.TileMatrixSets[i].Identifier == id {
			return &c.TileMatrixSets[i], true
		}
	}
	return nil, false
}

type Layer struct {
	Identifier         string              `xml:"Identifier"`
	Title              string              `xml:"Title"`
	WGS84BoundingBox   *BoundingBox        `xml:"WGS84BoundingBox"`
	Styles             []Style             `xml:"Style"`
	Formats            []string            `xml:"Format"`
	Dimensions         []Dimension         `xml:"Dimension"`
	TileMatrixSetLinks []TileMatrixSetLink `xml:"TileMatrixSetLink"`
	ResourceURLs       []ResourceURL       `xml:"ResourceURL"`
}

type Style struct {
	IsDefault  bool   `xml:"isDefault,attr"`
	Identifier string `xml:"Identifier"`
	Title      string `xml:"Title"`
}

type Dimension struct {
	Identifier string   `xml:"Identifier"`
	Default    string   `xml:"Default"`
	Values     []string `xml:"Value"`
}

type TileMatrixSetLink struct {
	TileMatrixSet string             `xml:"TileMatrixSet"`
	Limits        []TileMatrixLimits `xml:"TileMatrixSetLimits>TileMatrixLimits"`
}

type TileMatrixLimits struct {
	TileMatrix string `xml:"TileMatrix"`
	MinTileRow int    `xml:"MinTileRow"`
	MaxTileRow int    `xml:"MaxTileRow"`
	MinTileCol int    `xml:"MinTileCol"`
	MaxTileCol int    `xml:"MaxTileCol"`
}

type ResourceURL struct {
	Format       string `xml:"format,attr"`
	ResourceType string `xml:"resourceType,attr"`
	Template     string `xml:"template,attr"`
}

type BoundingBox struct {
	CRS         string `xml:"crs,attr"`
	LowerCorner string `xml:"LowerCorner"`
	UpperCorner string `xml:"UpperCorner"`
}

// Extent returns the box as [minX, minY, maxX, maxY].
func (b *BoundingBox) Extent() ([4]float64, error) {
	lower, err := parsePair(b.LowerCorner)
	if err != nil {
		return [4]float64{}, fmt.Errorf("lower corner: %w", err)
	}
	upper, err := parsePair(b.UpperCorner)
	if err != nil {
		return [4]float64{}, fmt.Errorf("upper corner: %w", err)
	}
	return [4]float64{lower[0], lower[1], upper[0], upper[1]}, nil
}

type TileMatrixSet struct {
	Identifier        string       `xml:"Identifier"`
	SupportedCRS      string       `xml:"SupportedCRS"`
	WellKnownScaleSet string       `xml:"WellKnownScaleSet"`
	TileMatrices      []TileMatrix `xml:"TileMatrix"`
}

type TileMatrix struct {
	Identifier       string  `xml:"Identifier"`
	ScaleDenominator float64 `xml:"ScaleDenominator"`
	TopLeftCorner    string  `xml:"TopLeftCorner"`
	TileWidth        int     `xml:"TileWidth"`
	TileHeight       int     `xml:"TileHeight"`
	MatrixWidth      int     `xml:"MatrixWidth"`
	MatrixHeight     int     `xml:"MatrixHeight"`
}

// Corner returns TopLeftCorner as written in the document.
func (m TileMatrix) Corner() ([2]float64, error) {
	return parsePair(m.TopLeftCorner)
}

func parsePair(s string) ([2]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return [2]float64{}, fmt.Errorf("%w: %q is not a coordinate pair", ErrInvalidCapabilities, s)
	}
	var out [2]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return [2]float64{}, fmt.Errorf("%w: %q: %v", ErrInvalidCapabilities, s, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParseCapabilities decodes a WMTS capabilities XML document.
func ParseCapabilities(data []byte) (*Capabilities, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		log.Warn().Msg("Could not parse capabilities, empty document")
		return nil, fmt.Errorf("%w: empty document", ErrInvalidCapabilities)
	}

	var caps Capabilities
	if err := xml.Unmarshal(data, &caps); err != nil {
		log.Warn().Err(err).Msg("Could not parse capabilities")
		return nil, fmt.Errorf("%w: %v", ErrInvalidCapabilities, err)
	}
	return &caps, nil
}
