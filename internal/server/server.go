// Package server wires the map services into an HTTP server.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/flynnplatt/common-mapping-client/internal/api"
	"github.com/flynnplatt/common-mapping-client/internal/arc"
	"github.com/flynnplatt/common-mapping-client/internal/config"
	"github.com/flynnplatt/common-mapping-client/internal/measure"
	"github.com/flynnplatt/common-mapping-client/internal/proj"
	"github.com/flynnplatt/common-mapping-client/internal/service"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port string
	App  *config.Config
	// Registry defaults to the process-wide projection registry.
	Registry *proj.Registry
}

// Server is the map utility HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	services *api.Services
}

// New creates a server from cfg, registering the configured default
// projection before any route can use it.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("server config: missing application config")
	}
	if cfg.Registry == nil {
		cfg.Registry = proj.Default()
	}

	def := cfg.App.DefaultProjection
	if _, err := cfg.Registry.Prep(def); err != nil {
		return nil, fmt.Errorf("preparing projection %s: %w", def.Code, err)
	}
	table, err := cfg.App.UnitsTable()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("common-mapping-client API", api.Version)
	humaConfig.Info.Description = "Map utilities: coordinate normalization, geodesic measurement, unit formatting and WMTS tile addressing."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	arcs := arc.NewGenerator(nil)
	caps := service.NewCapabilitiesService(cfg.App.DataDir)
	services := &api.Services{
		Layer:        service.NewLayerService(cfg.App.DataDir, caps, cfg.Registry, def),
		Capabilities: caps,
		Measurer:     measure.New(cfg.Registry, arcs, measure.OrbPrimitives{}),
		Arcs:         arcs,
		Units:        table,
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		handler:  RequestLogger(mux),
		humaAPI:  humaAPI,
		services: services,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services returns the services behind the API handlers.
func (s *Server) Services() *api.Services {
	return s.services
}

func (s *Server) routes() {
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.App.DataDir, s.config.App.DefaultProjection.Code).RegisterRoutes(s.humaAPI)

	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "common-mapping-client",
		"status":  "running",
	})
}
