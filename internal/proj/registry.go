package proj

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

var (
	// ErrUnknownProjection is returned for codes that are not registered.
	ErrUnknownProjection = errors.New("unknown projection")
	// ErrTransform is returned when a transform produces no finite coordinate.
	ErrTransform = errors.New("coordinate transform failed")
)

// DefaultProjection is the application's map projection and its extent override.
type DefaultProjection struct {
	Code   string     `mapstructure:"code" json:"code"`
	Extent [4]float64 `mapstructure:"extent" json:"extent"`
}

// Registry holds projections by code. It is safe for concurrent use and
// every registration is idempotent.
type Registry struct {
	mu          sync.RWMutex
	projections map[string]*Projection
	groups      map[string]string
}

// NewRegistry creates a registry seeded with EPSG:4326 and EPSG:3857.
func NewRegistry() *Registry {
	r := &Registry{
		projections: make(map[string]*Projection),
		groups:      make(map[string]string),
	}

	epsg := wgs84.EPSG()
	mercator := epsg.Code(3857)
	lonLat := wgs84.WGS84().LonLat()

	r.add(latLonProjection(LatLon))
	r.add(webMercatorProjection(
		TransformFunc(wgs84.Transform(mercator, lonLat)),
		TransformFunc(wgs84.Transform(lonLat, mercator)),
	))
	return r
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// Default returns the process-wide registry.
func Default() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Get returns the projection registered under code.
func (r *Registry) Get(code string) (*Projection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projections[code]
	return p, ok
}

// Add registers p, replacing any projection with the same code.
func (r *Registry) Add(p *Projection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(p)
}

func (r *Registry) add(p *Projection) {
	r.projections[p.Code] = p
	if _, ok := r.groups[p.Code]; !ok {
		r.groups[p.Code] = p.Code
	}
}

// AddEPSG registers an EPSG code from the wgs84 repository under "EPSG:<code>".
func (r *Registry) AddEPSG(code int) (*Projection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addEPSG(code)
}

func (r *Registry) addEPSG(code int) (*Projection, error) {
	name := "EPSG:" + strconv.Itoa(code)
	if p, ok := r.projections[name]; ok {
		return p, nil
	}

	to, from, geographic, err := epsgTransforms(code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var p *Projection
	if geographic {
		p = latLonProjection(name)
		p.Global = false
	} else {
		p = &Projection{
			Code:            name,
			Units:           UnitsMeters,
			Extent:          orb.Bound{Min: orb.Point{-mercatorEdge, -mercatorEdge}, Max: orb.Point{mercatorEdge, mercatorEdge}},
			WorldExtent:     orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}},
			MetersPerUnit:   1,
			AxisOrientation: "enu",
		}
	}
	p.toLonLat, p.fromLonLat = to, from
	r.add(p)
	return p, nil
}

// epsgTransforms builds the transforms for an EPSG code and probes them once.
// geographic reports whether the code is a lon/lat system in degrees.
func epsgTransforms(code int) (to, from TransformFunc, geographic bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrUnknownProjection, rec)
		}
	}()

	crs := wgs84.EPSG().Code(code)
	_, geographic = crs.(wgs84.GeographicReferenceSystem)
	lonLat := wgs84.WGS84().LonLat()
	to = TransformFunc(wgs84.Transform(crs, lonLat))
	from = TransformFunc(wgs84.Transform(lonLat, crs))

	x, y, _ := from(0, 0, 0)
	if !finite(x, y) {
		return nil, nil, false, ErrUnknownProjection
	}
	return to, from, geographic, nil
}

// Resolve returns the projection registered under code, registering
// EPSG codes from the wgs84 repository on first use.
func (r *Registry) Resolve(code string) (*Projection, error) {
	if p, ok := r.Get(code); ok {
		return p, nil
	}
	n, err := epsgNumber(code)
	if err != nil {
		return nil, err
	}
	return r.AddEPSG(n)
}

// AddEquivalent marks codes as interchangeable. All codes must be registered.
func (r *Registry) AddEquivalent(codes ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addEquivalent(codes...)
}

func (r *Registry) addEquivalent(codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	for _, c := range codes {
		if _, ok := r.projections[c]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProjection, c)
		}
	}

	target := r.groups[codes[0]]
	for _, c := range codes[1:] {
		old := r.groups[c]
		for code, group := range r.groups {
			if group == old {
				r.groups[code] = target
			}
		}
	}
	return nil
}

// Equivalent reports whether a and b name the same projection.
func (r *Registry) Equivalent(a, b string) bool {
	if a == b {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ga, okA := r.groups[a]
	gb, okB := r.groups[b]
	return okA && okB && ga == gb
}

// SetExtent overrides the extent of a registered projection.
func (r *Registry) SetExtent(code string, extent orb.Bound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setExtent(code, extent)
}

func (r *Registry) setExtent(code string, extent orb.Bound) error {
	p, ok := r.projections[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProjection, code)
	}
	c := p.clone(code)
	c.Extent = extent
	r.projections[code] = c
	return nil
}

// Prep registers the default projection, adds OGC:CRS84 as an alias of
// EPSG:4326 and applies the configured extent override. Capabilities
// documents often name CRS84, which would otherwise be unknown.
func (r *Registry) Prep(def DefaultProjection) (*Projection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Code == "" {
		def.Code = LatLon
	}
	if _, ok := r.projections[def.Code]; !ok {
		code, err := epsgNumber(def.Code)
		if err != nil {
			return nil, err
		}
		if _, err := r.addEPSG(code); err != nil {
			return nil, err
		}
	}

	if _, ok := r.projections[OGCCRS84]; !ok {
		crs := r.projections[LatLon].clone(OGCCRS84)
		crs.AxisOrientation = "enu"
		r.add(crs)
	}
	if err := r.addEquivalent(OGCCRS84, LatLon); err != nil {
		return nil, err
	}

	if def.Extent != [4]float64{} {
		extent := orb.Bound{
			Min: orb.Point{def.Extent[0], def.Extent[1]},
			Max: orb.Point{def.Extent[2], def.Extent[3]},
		}
		if err := r.setExtent(def.Code, extent); err != nil {
			return nil, err
		}
	}
	return r.projections[def.Code], nil
}

// Transform reprojects p from one registered code to another.
func (r *Registry) Transform(p orb.Point, from, to string) (orb.Point, error) {
	src, ok := r.Get(from)
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: %s", ErrUnknownProjection, from)
	}
	dst, ok := r.Get(to)
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: %s", ErrUnknownProjection, to)
	}
	if from == to || (src.Units == UnitsDegrees && dst.Units == UnitsDegrees) {
		return p, nil
	}

	lon, lat, _ := src.toLonLat(p[0], p[1], 0)
	x, y, _ := dst.fromLonLat(lon, lat, 0)
	if !finite(x, y) {
		return orb.Point{}, fmt.Errorf("%w: %v from %s to %s", ErrTransform, p, from, to)
	}
	return orb.Point{x, y}, nil
}

// epsgNumber parses "EPSG:3857" (or "urn:ogc:def:crs:EPSG::3857") into 3857.
func epsgNumber(code string) (int, error) {
	i := strings.LastIndex(code, ":")
	if i < 0 || !strings.Contains(strings.ToUpper(code), "EPSG") {
		return 0, fmt.Errorf("%w: %s", ErrUnknownProjection, code)
	}
	n, err := strconv.Atoi(code[i+1:])
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownProjection, code)
	}
	return n, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
