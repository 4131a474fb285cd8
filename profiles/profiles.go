package profiles

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
)

const HoursPerYear = 8760

// Profile is an hour-indexed series of non-negative values - e.g. solar output
// per kWp, grid availability, or sector demand. Profiles are read-only once
// loaded; the simulator never mutates them.
type Profile struct {
	values []float64
}

// New constructs a Profile from the given hourly values.
func New(values []float64) Profile {
	return Profile{values: values}
}

// Constant returns a Profile of the given length with every hour set to value.
// Used mostly by tests and synthetic scenarios.
func Constant(value float64, hours int) Profile {
	values := make([]float64, hours)
	for i := range values {
		values[i] = value
	}
	return Profile{values: values}
}

// Len returns the number of hours covered by the profile.
func (p Profile) Len() int {
	return len(p.values)
}

// Value returns the profile value at the given hour index.
func (p Profile) Value(hour int) float64 {
	return p.values[hour]
}

// Slice returns a copy of the values in [start, end).
func (p Profile) Slice(start, end int) []float64 {
	out := make([]float64, end-start)
	copy(out, p.values[start:end])
	return out
}

// Add returns a new profile that is the hour-wise sum of p and other. The
// shorter length wins.
func (p Profile) Add(other Profile) Profile {
	n := len(p.values)
	if len(other.values) < n {
		n = len(other.values)
	}
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = p.values[i] + other.values[i]
	}
	return Profile{values: values}
}

// Sector identifies a demand sector within the community.
type Sector string

const (
	SectorDomestic   Sector = "domestic"
	SectorCommercial Sector = "commercial"
	SectorPublic     Sector = "public"
)

// Set bundles the resource profiles that one simulation consumes. All profiles
// must cover at least the simulated year range.
type Set struct {
	Solar            Profile            // kWh generated per kWp installed, per hour
	GridAvailability Profile            // 1 when the national grid is available, 0 otherwise
	Load             map[Sector]Profile // kWh demanded per hour, by sector
	Kerosene         Profile            // baseline kerosene usage per hour
	Water            Profile            // litres of clean water demanded per hour; may be empty
}

// TotalLoad returns the hour-wise sum of the demand of the given sectors.
func (s *Set) TotalLoad(sectors []Sector) (Profile, error) {
	if len(sectors) == 0 {
		return Profile{}, fmt.Errorf("no demand sectors selected")
	}
	total, ok := s.Load[sectors[0]]
	if !ok {
		return Profile{}, fmt.Errorf("no load profile for sector %q", sectors[0])
	}
	for _, sector := range sectors[1:] {
		p, ok := s.Load[sector]
		if !ok {
			return Profile{}, fmt.Errorf("no load profile for sector %q", sector)
		}
		total = total.Add(p)
	}
	return total, nil
}

// Validate checks that every profile covers at least `years` full years of
// hourly rows. Water is only checked when present.
func (s *Set) Validate(years int) error {
	required := years * HoursPerYear
	check := func(name string, p Profile) error {
		if p.Len() < required {
			return fmt.Errorf("%s profile has %d rows, need at least %d for %d years", name, p.Len(), required, years)
		}
		return nil
	}
	if err := check("solar", s.Solar); err != nil {
		return err
	}
	if err := check("grid availability", s.GridAvailability); err != nil {
		return err
	}
	for sector, p := range s.Load {
		if err := check(fmt.Sprintf("%s load", sector), p); err != nil {
			return err
		}
	}
	if err := check("kerosene", s.Kerosene); err != nil {
		return err
	}
	if s.Water.Len() > 0 {
		if err := check("water demand", s.Water); err != nil {
			return err
		}
	}
	return nil
}

// ReadCSV loads a single-column hourly profile from CSV data. The column is
// selected by name.
func ReadCSV(r io.Reader, column string) (Profile, error) {
	df := dataframe.ReadCSV(r)
	if df.Error() != nil {
		return Profile{}, fmt.Errorf("read profile csv: %w", df.Error())
	}
	found := false
	for _, name := range df.Names() {
		if name == column {
			found = true
			break
		}
	}
	if !found {
		return Profile{}, fmt.Errorf("profile csv has no column %q (have %v)", column, df.Names())
	}
	col := df.Col(column)
	if col.Err != nil {
		return Profile{}, fmt.Errorf("read profile column %q: %w", column, col.Err)
	}
	return Profile{values: col.Float()}, nil
}

// ReadCSVFile loads a single-column hourly profile from a CSV file on disk.
func ReadCSVFile(path, column string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("open profile file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, column)
}
