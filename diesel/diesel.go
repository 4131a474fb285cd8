// Package diesel implements the backup generator dispatch policy: a single
// percentile cut over the unmet-energy distribution, rather than a rolling or
// predictive dispatch. It trades exact reliability targeting for simplicity
// and makes no attempt to model startup or shutdown cycling.
package diesel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FindThreshold returns the unmet-energy level above which the generator
// switches on, such that the blackout fraction after backup lands near the
// target. When the target is already met, the threshold is placed above the
// maximum unmet energy so the generator never fires.
func FindThreshold(unmet, blackout []float64, backupThreshold float64) float64 {
	if len(unmet) == 0 {
		return 0
	}

	blackoutFraction := stat.Mean(blackout, nil)
	if blackoutFraction <= backupThreshold {
		max := 0.0
		for _, v := range unmet {
			if v > max {
				max = v
			}
		}
		return max + 1
	}

	// Pick the energy level at the percentile corresponding to the blackout
	// hours we are allowed to leave unserved.
	p := 1 - (blackoutFraction - backupThreshold)
	if p < 0 {
		p = 0
	}
	sorted := make([]float64, len(unmet))
	copy(sorted, unmet)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Dispatch returns the per-hour generator energy and on/off series. Hours with
// unmet energy at or above the threshold are served in full.
func Dispatch(unmet []float64, threshold float64) (energy, on []float64) {
	energy = make([]float64, len(unmet))
	on = make([]float64, len(unmet))
	for t, v := range unmet {
		if v > 0 && v >= threshold {
			energy[t] = v
			on[t] = 1
		}
	}
	return energy, on
}

// Capacity derives the generator capacity from the dispatched energy series:
// the maximum hourly output rounded up to the given increment.
func Capacity(energy []float64, increment float64) float64 {
	max := 0.0
	for _, v := range energy {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return 0
	}
	if increment <= 0 {
		return max
	}
	return math.Ceil(max/increment) * increment
}
