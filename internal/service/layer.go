package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/flynnplatt/common-mapping-client/internal/proj"
	"github.com/flynnplatt/common-mapping-client/internal/wmts"
)

var (
	ErrLayerNotFound = errors.New("layer not found")
	ErrLayerExists   = errors.New("layer already exists")
	ErrInvalidLayer  = errors.New("invalid layer")
	ErrLevelRange    = errors.New("zoom level out of range")
)

// Tile addresses one tile of a layer.
type Tile struct {
	Level   int    `query:"level" minimum:"0" doc:"Zoom level"`
	Row     int    `query:"row" doc:"Tile row"`
	Col     int    `query:"col" doc:"Tile column"`
	Context string `query:"context" doc:"Requesting map library; openlayers rows are inverted"`
}

// LayerService manages WMTS layer configurations and caches the tile
// options derived from their capabilities documents.
type LayerService struct {
	dataDir string
	caps    *CapabilitiesService
	reg     *proj.Registry
	def     proj.DefaultProjection

	mu      sync.RWMutex
	layers  map[string]LayerConfig
	options map[string]*wmts.Options
	events  *EventBus
}

// NewLayerService creates a layer service persisting to <dataDir>/layers.json.
func NewLayerService(dataDir string, caps *CapabilitiesService, reg *proj.Registry, def proj.DefaultProjection) *LayerService {
	s := &LayerService{
		dataDir: dataDir,
		caps:    caps,
		reg:     reg,
		def:     def,
		layers:  make(map[string]LayerConfig),
		options: make(map[string]*wmts.Options),
		events:  NewEventBus(),
	}
	s.loadFromDisk()
	return s
}

// Events returns the bus on which layer changes are published.
func (s *LayerService) Events() *EventBus {
	return s.events
}

// List returns all layer configurations.
func (s *LayerService) List() map[string]LayerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]LayerConfig, len(s.layers))
	for k, v := range s.layers {
		result[k] = v
	}
	return result
}

// Get returns a layer by ID.
func (s *LayerService) Get(id string) (LayerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.layers[id]
	return layer, ok
}

// Create adds a layer after checking that its capabilities document
// yields tile options.
func (s *LayerService) Create(layer LayerConfig) (LayerConfig, error) {
	if layer.ID == "" {
		layer.ID = generateID(layer.Name)
	}
	if layer.ID == "" {
		return LayerConfig{}, fmt.Errorf("%w: name %q gives an empty id", ErrInvalidLayer, layer.Name)
	}

	opts, err := s.resolve(layer)
	if err != nil {
		return LayerConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.layers[layer.ID]; exists {
		return LayerConfig{}, fmt.Errorf("%w: %q", ErrLayerExists, layer.ID)
	}

	s.layers[layer.ID] = layer
	if err := s.saveToDisk(); err != nil {
		delete(s.layers, layer.ID)
		return LayerConfig{}, err
	}
	s.options[layer.ID] = opts
	s.events.Publish(LayerEvent{Action: ActionCreated, ID: layer.ID})
	return layer, nil
}

// Update replaces a layer configuration by ID.
func (s *LayerService) Update(id string, layer LayerConfig) (LayerConfig, error) {
	layer.ID = id
	opts, err := s.resolve(layer)
	if err != nil {
		return LayerConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.layers[id]
	if !exists {
		return LayerConfig{}, fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}

	s.layers[id] = layer
	if err := s.saveToDisk(); err != nil {
		s.layers[id] = prev
		return LayerConfig{}, err
	}
	s.options[id] = opts
	s.events.Publish(LayerEvent{Action: ActionUpdated, ID: id})
	return layer, nil
}

// Delete removes a layer by ID.
func (s *LayerService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.layers[id]
	if !exists {
		return fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}

	delete(s.layers, id)
	if err := s.saveToDisk(); err != nil {
		s.layers[id] = prev
		return err
	}
	delete(s.options, id)
	s.events.Publish(LayerEvent{Action: ActionDeleted, ID: id})
	return nil
}

// Options returns the tile options of a layer, reading its capabilities
// document on first use.
func (s *LayerService) Options(id string) (*wmts.Options, error) {
	s.mu.RLock()
	layer, ok := s.layers[id]
	opts, cached := s.options[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	if cached {
		return opts, nil
	}

	opts, err := s.resolve(layer)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, still := s.layers[id]; still {
		s.options[id] = opts
	}
	s.mu.Unlock()
	return opts, nil
}

// TileURL returns the url of one tile of a layer.
func (s *LayerService) TileURL(id string, t Tile) (string, error) {
	layer, ok := s.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	opts, err := s.Options(id)
	if err != nil {
		return "", err
	}
	if t.Level < opts.TileGrid.MinZoom || t.Level > opts.TileGrid.MaxZoom {
		return "", fmt.Errorf("%w: %d not in [%d, %d]", ErrLevelRange, t.Level, opts.TileGrid.MinZoom, opts.TileGrid.MaxZoom)
	}

	labels := layer.TileMatrixLabels
	if len(labels) == 0 {
		labels = make(map[int]string, len(opts.TileGrid.MatrixIDs))
		for level, matrixID := range opts.TileGrid.MatrixIDs {
			labels[level] = matrixID
		}
	}

	return wmts.BuildTileURL(wmts.TileRequest{
		LayerID:          opts.Layer,
		URL:              opts.URL,
		TileMatrixSet:    opts.MatrixSet,
		TileMatrixLabels: labels,
		Col:              t.Col,
		Row:              t.Row,
		Level:            t.Level,
		Format:           opts.Format,
		Context:          t.Context,
	}), nil
}

// resolve derives tile options for layer from its capabilities document.
func (s *LayerService) resolve(layer LayerConfig) (*wmts.Options, error) {
	caps, err := s.caps.Load(layer.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayer, err)
	}
	opts, err := wmts.GetWmtsOptions(s.reg, s.def, caps, layer.Query())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLayer, err)
	}
	return opts, nil
}

// configFile returns the path to the layers config file.
func (s *LayerService) configFile() string {
	return filepath.Join(s.dataDir, "layers.json")
}

// loadFromDisk loads layer configurations from disk.
func (s *LayerService) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // not written yet
	}

	var layers map[string]LayerConfig
	if err := json.Unmarshal(data, &layers); err != nil {
		log.Warn().Err(err).Str("file", s.configFile()).Msg("Ignoring unreadable layers file")
		return
	}
	s.layers = layers
}

// saveToDisk persists layer configurations to disk.
func (s *LayerService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.layers, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
