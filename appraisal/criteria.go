package appraisal

import "fmt"

// Criterion is an enumerated appraisal metric. A criterion can be used both as
// a threshold constraint and, independently, as an optimisation objective.
type Criterion string

const (
	CriterionBlackoutFraction     Criterion = "blackoutFraction"
	CriterionLCUE                 Criterion = "lcue"
	CriterionEmissionsIntensity   Criterion = "emissionsIntensity"
	CriterionCumulativeCost       Criterion = "cumulativeCost"
	CriterionCumulativeGHGs       Criterion = "cumulativeGhgs"
	CriterionCumulativeSystemCost Criterion = "cumulativeSystemCost"
	CriterionUnmetEnergyFraction  Criterion = "unmetEnergyFraction"
	CriterionKeroseneDisplacement Criterion = "keroseneDisplacement"
)

// ThresholdMode says which side of a threshold value is acceptable.
type ThresholdMode int

const (
	// ThresholdMaximum means the criterion value must not exceed the threshold.
	ThresholdMaximum ThresholdMode = iota
	// ThresholdMinimum means the criterion value must not fall below it.
	ThresholdMinimum
)

// OptimisationMode says which extremum is preferred when the criterion is used
// as an objective.
type OptimisationMode int

const (
	Minimise OptimisationMode = iota
	Maximise
)

// ParseCriterion resolves a criterion name from an input file.
func ParseCriterion(name string) (Criterion, error) {
	switch Criterion(name) {
	case CriterionBlackoutFraction, CriterionLCUE, CriterionEmissionsIntensity,
		CriterionCumulativeCost, CriterionCumulativeGHGs, CriterionCumulativeSystemCost,
		CriterionUnmetEnergyFraction, CriterionKeroseneDisplacement:
		return Criterion(name), nil
	}
	return "", fmt.Errorf("unknown criterion %q", name)
}

// ThresholdMode returns the bound direction when the criterion is used as a
// constraint. Kerosene displacement is a benefit, so it is bounded from below;
// everything else is a cost or failure measure bounded from above.
func (c Criterion) ThresholdMode() ThresholdMode {
	if c == CriterionKeroseneDisplacement {
		return ThresholdMinimum
	}
	return ThresholdMaximum
}

// OptimisationMode returns the preferred extremum when the criterion is used
// as an objective.
func (c Criterion) OptimisationMode() OptimisationMode {
	if c == CriterionKeroseneDisplacement {
		return Maximise
	}
	return Minimise
}

// Satisfies reports whether the given criterion value meets a threshold.
func (c Criterion) Satisfies(value, threshold float64) bool {
	if c.ThresholdMode() == ThresholdMaximum {
		return value <= threshold
	}
	return value >= threshold
}
