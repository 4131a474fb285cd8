package simulation

import "fmt"

const hoursPerYear = 8760

// Period is the year range covered by one simulation. Hours are indexed into
// the multi-year resource profiles at an offset of StartYear * 8760.
type Period struct {
	StartYear int
	EndYear   int
}

// Validate checks the period is well formed.
func (p Period) Validate() error {
	if p.StartYear < 0 {
		return fmt.Errorf("start year must be non-negative: %d", p.StartYear)
	}
	if p.EndYear <= p.StartYear {
		return fmt.Errorf("end year %d must be after start year %d", p.EndYear, p.StartYear)
	}
	return nil
}

// Hours returns the number of hours simulated over the period.
func (p Period) Hours() int {
	return (p.EndYear - p.StartYear) * hoursPerYear
}

// Offset returns the first profile row covered by the period.
func (p Period) Offset() int {
	return p.StartYear * hoursPerYear
}

// Sizing is one candidate set of component capacities. It is constructed by
// the search engine per trial, consumed once by the simulator, and never
// mutated.
type Sizing struct {
	PVSize      float64 // kWp
	StorageSize float64 // kWh
	Tanks       int     // clean-water tank count
}

func (s Sizing) String() string {
	return fmt.Sprintf("pv=%.1fkWp storage=%.1fkWh tanks=%d", s.PVSize, s.StorageSize, s.Tanks)
}
