package optimisation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cepro/minigridsim/appraisal"
	"github.com/cepro/minigridsim/simulation"
)

// candidateResult pairs a sizing with its appraisal.
type candidateResult struct {
	sizing    simulation.Sizing
	appraisal appraisal.SystemAppraisal
}

// sweep explores the space in descending order, innermost dimension varying
// fastest, and returns every sufficient candidate. The descent of an axis
// stops at the first insufficient candidate (monotonicity assumption: smaller
// systems are less likely to be sufficient). The sweep is an explicit
// iterative product over the open dimensions, not a recursion.
func (e *Engine) sweep(ctx context.Context, sp space, period simulation.Period, previous *appraisal.SystemAppraisal) ([]candidateResult, error) {
	outer := []dimension{sp.pv, sp.storage}
	inner := sp.tanks

	idx := make([]int, len(outer))
	var sufficient []candidateResult

	for {
		// Build the innermost "line": all tank candidates at the current
		// pv/storage indices.
		line := make([]simulation.Sizing, len(inner.candidates))
		for j, tanks := range inner.candidates {
			line[j] = sp.sizing(outer[0].candidates[idx[0]], outer[1].candidates[idx[1]], tanks)
		}

		results, err := e.evaluateLine(ctx, line, period, previous)
		if err != nil {
			return nil, err
		}

		lineFirstSufficient := false
		for j, result := range results {
			if !e.sufficient(result.appraisal) {
				// Early exit: smaller tank counts under the same pv/storage
				// cannot be sufficient either.
				break
			}
			if j == 0 {
				lineFirstSufficient = true
			}
			sufficient = append(sufficient, result)
		}

		if lineFirstSufficient {
			// Continue descending: advance the innermost outer dimension,
			// carrying into the outer ones as each is exhausted.
			level := len(outer) - 1
			for level >= 0 {
				idx[level]++
				if idx[level] < len(outer[level].candidates) {
					break
				}
				idx[level] = 0
				level--
			}
			if level < 0 {
				return sufficient, nil
			}
			continue
		}

		// The largest inner candidate failed: descending any dimension below
		// the deepest already-descended level is futile. Prune by carrying one
		// level above the deepest non-zero index.
		prune := -1
		for level := len(outer) - 1; level >= 0; level-- {
			if idx[level] > 0 {
				prune = level
				break
			}
		}
		if prune == -1 {
			// Even the largest remaining system failed; nothing smaller can
			// succeed.
			return sufficient, nil
		}
		idx[prune] = 0
		if prune == 0 {
			return sufficient, nil
		}
		idx[prune-1]++
		if idx[prune-1] >= len(outer[prune-1].candidates) {
			return sufficient, nil
		}
	}
}

// evaluateLine simulates and appraises a line of candidates. With parallelism
// enabled the whole line is evaluated concurrently before the early-exit cut
// is applied by the caller; results are identical either way, some work may be
// wasted. Serially, evaluation stops early itself when a candidate fails.
func (e *Engine) evaluateLine(ctx context.Context, line []simulation.Sizing, period simulation.Period, previous *appraisal.SystemAppraisal) ([]candidateResult, error) {
	results := make([]candidateResult, len(line))

	if e.parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)
		for j := range line {
			j := j
			g.Go(func() error {
				app, err := e.simulateAndAppraise(gctx, line[j], period, previous)
				if err != nil {
					return err
				}
				results[j] = candidateResult{sizing: line[j], appraisal: app}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return results, nil
	}

	for j := range line {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		app, err := e.simulateAndAppraise(ctx, line[j], period, previous)
		if err != nil {
			return nil, err
		}
		results[j] = candidateResult{sizing: line[j], appraisal: app}
		if !e.sufficient(app) {
			// The caller stops consuming at the first insufficient result, so
			// the rest of the line never needs simulating.
			return results[:j+1], nil
		}
	}
	return results, nil
}

// simulateAndAppraise runs one candidate through the simulator and appraiser.
func (e *Engine) simulateAndAppraise(ctx context.Context, sizing simulation.Sizing, period simulation.Period, previous *appraisal.SystemAppraisal) (appraisal.SystemAppraisal, error) {
	out, details, err := e.sim.Run(ctx, sizing, period)
	if err != nil {
		return appraisal.SystemAppraisal{}, fmt.Errorf("simulate %s: %w", sizing, err)
	}
	app, err := e.appraiser.Appraise(out, details, previous)
	if err != nil {
		return appraisal.SystemAppraisal{}, fmt.Errorf("appraise %s: %w", sizing, err)
	}
	e.simulations.Add(1)
	e.logger.Debug(
		"Appraised candidate system",
		"sizing", sizing.String(),
		"blackout_fraction", app.Criteria[appraisal.CriterionBlackoutFraction],
		"lcue", app.Criteria[appraisal.CriterionLCUE],
	)
	return app, nil
}

// sufficient reports whether the appraisal meets every threshold criterion.
func (e *Engine) sufficient(app appraisal.SystemAppraisal) bool {
	for _, threshold := range e.params.Thresholds {
		value, ok := app.Criteria[threshold.Criterion]
		if !ok {
			return false
		}
		if !threshold.Criterion.Satisfies(value, threshold.Value) {
			return false
		}
	}
	return true
}
