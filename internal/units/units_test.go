package units

import (
	"errors"
	"math"
	"testing"
)

func TestConvertDistance(t *testing.T) {
	table := Default()

	tests := []struct {
		unit string
		in   float64
		want float64
	}{
		{Metric, 1234.5, 1234.5},
		{Imperial, 1, 1 / 0.3048},
		{Imperial, 1609.344, 5280},
		{Nautical, 1852, 1},
		{Schoolbus, 13.716, 1},
		{Schoolbus, 137.16, 10},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got, err := table.ConvertDistance(tt.in, tt.unit)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertDistance(%v, %s) = %v, want %v", tt.in, tt.unit, got, tt.want)
			}
		})
	}
}

func TestConvertArea(t *testing.T) {
	table := Default()

	tests := []struct {
		unit string
		in   float64
		want float64
	}{
		{Metric, 2500, 2500},
		{Imperial, 0.09290304, 1},
		{Nautical, 1852 * 1852, 1},
		{Schoolbus, 13.716 * 13.716 * 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got, err := table.ConvertArea(tt.in, tt.unit)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertArea(%v, %s) = %v, want %v", tt.in, tt.unit, got, tt.want)
			}
		})
	}
}

func TestConvert_UnknownUnits(t *testing.T) {
	table := Default()
	if _, err := table.ConvertDistance(1, "furlongs"); !errors.Is(err, ErrUnknownUnits) {
		t.Errorf("distance: expected ErrUnknownUnits, got %v", err)
	}
	if _, err := table.ConvertArea(1, "furlongs"); !errors.Is(err, ErrUnknownUnits) {
		t.Errorf("area: expected ErrUnknownUnits, got %v", err)
	}
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr error
	}{
		{"defaults", DefaultEntries(), nil},
		{"custom length", []Entry{{Value: "rod", ToMeters: 5.0292}}, nil},
		{"qty alias", []Entry{{Value: "surveyor", QtyType: "us-ft"}}, nil},
		{"missing value", []Entry{{QtyType: "m"}}, ErrInvalidEntry},
		{"duplicate", []Entry{{Value: "a", QtyType: "m"}, {Value: "a", QtyType: "ft"}}, ErrInvalidEntry},
		{"schoolbus without length", []Entry{{Value: Schoolbus, QtyType: "m"}}, ErrInvalidEntry},
		{"unknown qty", []Entry{{Value: "x", QtyType: "parsec"}}, ErrUnknownQtyType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.entries)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTable_CustomEntry(t *testing.T) {
	table, err := NewTable([]Entry{{Value: "rod", Label: "Rods", ToMeters: 5.0292}})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := table.ConvertDistance(50.292, "rod")
	if math.Abs(got-10) > 1e-9 {
		t.Errorf("got %v, want 10", got)
	}

	entries := table.Entries()
	entries[0].Label = "changed"
	if e, _ := table.Lookup("rod"); e.Label != "Rods" {
		t.Error("Entries must return a copy")
	}
}
