package config

import "fmt"

// Range describes the candidate values of one sizing dimension: every value
// from Min to Max in steps of Step is a candidate.
type Range struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// Validate checks the range is well formed.
func (r Range) Validate(name string) error {
	if r.Step <= 0 {
		return fmt.Errorf("%s step must be positive: %f", name, r.Step)
	}
	if r.Max < r.Min {
		return fmt.Errorf("%s max %f below min %f", name, r.Max, r.Min)
	}
	if r.Min < 0 {
		return fmt.Errorf("%s min must be non-negative: %f", name, r.Min)
	}
	return nil
}

// Threshold pairs a criterion name with its bound value. The bound direction
// (maximum or minimum) is a property of the criterion itself.
type Threshold struct {
	Criterion string  `yaml:"criterion"`
	Value     float64 `yaml:"value"`
}

// Optimisation holds the search-engine parameters from the input file.
type Optimisation struct {
	IterationLength int `yaml:"iterationLength"` // years per deployment period
	Iterations      int `yaml:"iterations"`      // number of sequential periods

	PVSize      Range `yaml:"pvSize"`      // kWp
	StorageSize Range `yaml:"storageSize"` // kWh
	Tanks       Range `yaml:"tanks"`       // integer count; values are floored

	// MaxBoundProbes caps the upper-bound probing loop; when exhausted the run
	// fails with an infeasible-search error rather than looping forever.
	MaxBoundProbes int `yaml:"maxBoundProbes"`

	Thresholds []Threshold `yaml:"thresholds"`
	Objectives []string    `yaml:"objectives"`
}

// Validate checks the optimisation parameters for consistency.
func (o Optimisation) Validate() error {
	if o.IterationLength <= 0 {
		return fmt.Errorf("iteration length must be positive: %d", o.IterationLength)
	}
	if o.Iterations <= 0 {
		return fmt.Errorf("iteration count must be positive: %d", o.Iterations)
	}
	if err := o.PVSize.Validate("pv size"); err != nil {
		return err
	}
	if err := o.StorageSize.Validate("storage size"); err != nil {
		return err
	}
	if err := o.Tanks.Validate("tanks"); err != nil {
		return err
	}
	if len(o.Thresholds) == 0 {
		return fmt.Errorf("at least one threshold criterion is required")
	}
	if len(o.Objectives) == 0 {
		return fmt.Errorf("at least one optimisation objective is required")
	}
	return nil
}
