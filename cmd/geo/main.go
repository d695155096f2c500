package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flynnplatt/common-mapping-client/internal/api"
	"github.com/flynnplatt/common-mapping-client/internal/config"
	"github.com/flynnplatt/common-mapping-client/internal/coords"
	"github.com/flynnplatt/common-mapping-client/internal/logger"
	"github.com/flynnplatt/common-mapping-client/internal/measure"
	"github.com/flynnplatt/common-mapping-client/internal/proj"
	"github.com/flynnplatt/common-mapping-client/internal/server"
	"github.com/flynnplatt/common-mapping-client/internal/units"
	"github.com/flynnplatt/common-mapping-client/internal/wmts"
)

// Options defines all CLI flags and env vars for the geo server.
// Flags: --host, --port, --data-dir, --config
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CONFIG
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir string `doc:"Directory for capabilities documents and layers (overrides config)"`
	Config  string `doc:"Path to config.yaml" short:"c"`
}

// loadConfig reads the application config and sets up logging. It exits
// the process on invalid configuration.
func loadConfig(opts *Options) *config.Config {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg
}

func newServer(opts *Options) *server.Server {
	srv, err := server.New(server.Config{
		Host: opts.Host,
		Port: strconv.Itoa(opts.Port),
		App:  loadConfig(opts),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create server")
	}
	return srv
}

// prepDefault registers the configured default projection on the
// process-wide registry.
func prepDefault(cfg *config.Config) {
	if _, err := proj.Default().Prep(cfg.DefaultProjection); err != nil {
		log.Fatal().Err(err).Str("projection", cfg.DefaultProjection.Code).Msg("Could not prepare projection")
	}
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			log.Info().
				Str("server", baseURL).
				Str("docs", baseURL+"/docs").
				Str("openapi", baseURL+"/openapi.json").
				Msg("common-mapping-client API server starting")

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatal().Err(err).Msg("Server error")
			}
		})
	})

	cli.Root().Use = "geo"
	cli.Root().Short = "Map utilities for geodesic measurement and WMTS tile addressing"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// measure subcommand: distance or area of a GeoJSON geometry
	measureCmd := &cobra.Command{
		Use:   "measure [file.geojson]",
		Short: "Measure a GeoJSON LineString or Polygon (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := loadConfig(opts)
			prepDefault(cfg)

			code, _ := cmd.Flags().GetString("proj")
			system, _ := cmd.Flags().GetString("units")
			measurementType, _ := cmd.Flags().GetString("type")

			data, err := readInput(args)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading geometry: %v\n", err)
				os.Exit(1)
			}
			geom, err := measure.ParseGeometry(data, code)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing geometry: %v\n", err)
				os.Exit(1)
			}
			if measurementType == "" {
				measurementType = measure.Distance
				if geom.Kind == measure.Polygon {
					measurementType = measure.Area
				}
			}

			m := measure.Default()
			value, err := m.MeasureGeometry(geom, measurementType)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error measuring geometry: %v\n", err)
				os.Exit(1)
			}

			table, err := cfg.UnitsTable()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading units: %v\n", err)
				os.Exit(1)
			}
			convert := table.ConvertDistance
			if measurementType == measure.Area {
				convert = table.ConvertArea
			}
			converted, err := convert(value, system)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error converting: %v\n", err)
				os.Exit(1)
			}
			if s, err := units.FormatMeasurement(converted, measurementType, system); err == nil {
				fmt.Println(s)
				return
			}
			fmt.Println(units.FormatNumber(converted, units.DefaultFormat))
		}),
	}
	measureCmd.Flags().String("proj", proj.LatLon, "Projection code of the coordinates")
	measureCmd.Flags().StringP("units", "u", units.Metric, "Unit system of the result")
	measureCmd.Flags().StringP("type", "t", "", "Distance or Area (default from the geometry type)")
	cli.Root().AddCommand(measureCmd)

	// tile-url subcommand: resolve a tile url from a capabilities document
	tileURLCmd := &cobra.Command{
		Use:   "tile-url <capabilities.xml>",
		Short: "Print the url of one tile of a WMTS layer",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := loadConfig(opts)
			def := cfg.DefaultProjection

			if s, _ := cmd.Flags().GetString("extent"); s != "" {
				extent, ok := wmts.ParseStringExtent(strings.Split(s, ","))
				if !ok {
					fmt.Fprintf(os.Stderr, "Invalid extent %q, want minX,minY,maxX,maxY\n", s)
					os.Exit(1)
				}
				def.Extent = extent
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading capabilities: %v\n", err)
				os.Exit(1)
			}
			caps, err := wmts.ParseCapabilities(data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing capabilities: %v\n", err)
				os.Exit(1)
			}

			layer, _ := cmd.Flags().GetString("layer")
			matrixSet, _ := cmd.Flags().GetString("matrix-set")
			format, _ := cmd.Flags().GetString("format")
			options, err := wmts.GetWmtsOptions(proj.Default(), def, caps, wmts.Query{
				Layer:      layer,
				MatrixSet:  matrixSet,
				Projection: def.Code,
				Format:     format,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error resolving layer: %v\n", err)
				os.Exit(1)
			}

			level, _ := cmd.Flags().GetInt("level")
			row, _ := cmd.Flags().GetInt("row")
			col, _ := cmd.Flags().GetInt("col")
			context2D, _ := cmd.Flags().GetString("context")

			labels := make(map[int]string, len(options.TileGrid.MatrixIDs))
			for i, id := range options.TileGrid.MatrixIDs {
				labels[i] = id
			}
			fmt.Println(wmts.BuildTileURL(wmts.TileRequest{
				LayerID:          options.Layer,
				URL:              options.URL,
				TileMatrixSet:    options.MatrixSet,
				TileMatrixLabels: labels,
				Col:              col,
				Row:              row,
				Level:            level,
				Format:           options.Format,
				Context:          context2D,
			}))
		}),
	}
	tileURLCmd.Flags().StringP("layer", "l", "", "Layer identifier")
	tileURLCmd.Flags().String("matrix-set", "", "Tile matrix set identifier")
	tileURLCmd.Flags().String("format", "", "Image format override")
	tileURLCmd.Flags().String("extent", "", "Projection extent override as minX,minY,maxX,maxY")
	tileURLCmd.Flags().Int("level", 0, "Zoom level")
	tileURLCmd.Flags().Int("row", 0, "Tile row")
	tileURLCmd.Flags().Int("col", 0, "Tile column")
	tileURLCmd.Flags().String("context", "", "Requesting map library (openlayers inverts rows)")
	tileURLCmd.MarkFlagRequired("layer")
	cli.Root().AddCommand(tileURLCmd)

	// constrain subcommand: wrap a coordinate into [±180, ±90]
	constrainCmd := &cobra.Command{
		Use:   "constrain <lon> <lat>",
		Short: "Wrap a coordinate into [±180, ±90]",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			pair := make([]float64, 0, 2)
			for _, a := range args {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Invalid coordinate %q: %v\n", a, err)
					os.Exit(1)
				}
				pair = append(pair, v)
			}
			wrapY, _ := cmd.Flags().GetBool("wrap-y")
			p, _ := coords.ConstrainCoordinates(pair, !wrapY)
			fmt.Printf("%s %s\n",
				strconv.FormatFloat(p[0], 'f', -1, 64),
				strconv.FormatFloat(p[1], 'f', -1, 64))
		},
	}
	constrainCmd.Flags().Bool("wrap-y", false, "Wrap latitude instead of clamping it")
	cli.Root().AddCommand(constrainCmd)

	cli.Run()
}
