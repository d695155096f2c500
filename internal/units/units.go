// Package units converts and formats distance and area measurements.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Unit system identifiers.
const (
	Metric    = "metric"
	Imperial  = "imperial"
	Nautical  = "nautical"
	Schoolbus = "schoolbus"
)

var (
	ErrUnknownUnits   = errors.New("unknown units")
	ErrUnknownQtyType = errors.New("unknown quantity type")
	ErrInvalidEntry   = errors.New("invalid units entry")
)

// metersPer is the length of one unit of each quantity type in meters.
var metersPer = map[string]float64{
	"m":       1,
	"meter":   1,
	"km":      1000,
	"cm":      0.01,
	"mm":      0.001,
	"um":      1e-6,
	"ft":      0.3048,
	"foot":    0.3048,
	"us-ft":   1200.0 / 3937.0,
	"in":      0.0254,
	"yd":      0.9144,
	"mi":      1609.344,
	"mile":    1609.344,
	"nmi":     1852,
	"fathom":  1.8288,
	"furlong": 201.168,
}

// Entry is one selectable unit system.
type Entry struct {
	Value    string  `mapstructure:"value" json:"value" yaml:"value" doc:"Identifier (metric, imperial, nautical, schoolbus)"`
	Label    string  `mapstructure:"label" json:"label" yaml:"label" doc:"Display name"`
	Abbrev   string  `mapstructure:"abbrev" json:"abbrev" yaml:"abbrev" doc:"Short unit label"`
	QtyType  string  `mapstructure:"qty_type" json:"qtyType" yaml:"qty_type" doc:"Base quantity conversions go through"`
	ToMeters float64 `mapstructure:"to_meters" json:"toMeters,omitempty" yaml:"to_meters,omitempty" doc:"Length of one unit in meters for units without a quantity type"`
}

// custom reports whether e converts by its own length instead of a quantity.
func (e Entry) custom() bool {
	return e.Value == Schoolbus || e.QtyType == ""
}

// DefaultEntries returns the built-in unit systems.
func DefaultEntries() []Entry {
	return []Entry{
		{Value: Metric, Label: "Metric", Abbrev: "m", QtyType: "m"},
		{Value: Imperial, Label: "Imperial", Abbrev: "ft", QtyType: "ft"},
		{Value: Nautical, Label: "Nautical", Abbrev: "nmi", QtyType: "nmi"},
		{Value: Schoolbus, Label: "School Bus", Abbrev: "school buses", QtyType: "m", ToMeters: 13.716},
	}
}

// Table is a read-only set of unit systems keyed by Value.
type Table struct {
	entries []Entry
	byValue map[string]Entry
}

// NewTable validates entries and builds a table. Order is preserved.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries: make([]Entry, 0, len(entries)),
		byValue: make(map[string]Entry, len(entries)),
	}
	for i, e := range entries {
		e.Value = strings.TrimSpace(e.Value)
		if e.Value == "" {
			return nil, fmt.Errorf("%w: entry %d has no value", ErrInvalidEntry, i)
		}
		if _, dup := t.byValue[e.Value]; dup {
			return nil, fmt.Errorf("%w: duplicate value %q", ErrInvalidEntry, e.Value)
		}
		if e.custom() {
			if e.ToMeters <= 0 {
				return nil, fmt.Errorf("%w: %q needs a positive to_meters", ErrInvalidEntry, e.Value)
			}
		} else if _, ok := metersPer[e.QtyType]; !ok {
			return nil, fmt.Errorf("%w: %q for %q", ErrUnknownQtyType, e.QtyType, e.Value)
		}
		t.entries = append(t.entries, e)
		t.byValue[e.Value] = e
	}
	return t, nil
}

// Default returns a table of the built-in unit systems.
func Default() *Table {
	t, err := NewTable(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return t
}

// Entries returns a copy of the table in configured order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup returns the entry for value.
func (t *Table) Lookup(value string) (Entry, bool) {
	e, ok := t.byValue[value]
	return e, ok
}

// ConvertDistance converts meters into the units identified by unitID.
func (t *Table) ConvertDistance(meters float64, unitID string) (float64, error) {
	e, ok := t.byValue[unitID]
	if !ok {
		log.Warn().Str("units", unitID).Msg("Could not convert distance, unknown units")
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnits, unitID)
	}
	if e.custom() {
		return meters / e.ToMeters, nil
	}
	return meters / metersPer[e.QtyType], nil
}

// ConvertArea converts square meters into the square of the units
// identified by unitID.
func (t *Table) ConvertArea(squareMeters float64, unitID string) (float64, error) {
	e, ok := t.byValue[unitID]
	if !ok {
		log.Warn().Str("units", unitID).Msg("Could not convert area, unknown units")
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnits, unitID)
	}
	per := metersPer[e.QtyType]
	if e.custom() {
		per = e.ToMeters
	}
	return squareMeters / (per * per), nil
}
