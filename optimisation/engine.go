// Package optimisation drives the sizing-space search: many simulations per
// deployment period, appraised and filtered against threshold criteria, with
// dynamic expansion of the explored bounds when the optimum sits at an edge.
package optimisation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cepro/minigridsim/appraisal"
	"github.com/cepro/minigridsim/config"
	"github.com/cepro/minigridsim/simulation"
)

// ErrInfeasible is returned when no system within the probed bounds meets the
// threshold criteria. An unbounded probe could raise the bounds forever; the
// cap turns that into an explicit failure.
var ErrInfeasible = errors.New("no sufficient system found within the probed sizing bounds")

const defaultMaxBoundProbes = 20

// maxEdgeExpansions caps the edge-expansion loop as a safety net; in practice
// the optimum interiorises after a handful of expansions.
const maxEdgeExpansions = 25

// ThresholdCriterion is a resolved threshold constraint.
type ThresholdCriterion struct {
	Criterion appraisal.Criterion
	Value     float64
}

// Params are the resolved search-engine parameters.
type Params struct {
	IterationLength int
	Iterations      int

	PVSize      config.Range
	StorageSize config.Range
	Tanks       config.Range

	MaxBoundProbes int

	Thresholds []ThresholdCriterion
	Objectives []appraisal.Criterion
}

// ParamsFromConfig resolves the criterion names in the input file.
func ParamsFromConfig(o config.Optimisation) (Params, error) {
	p := Params{
		IterationLength: o.IterationLength,
		Iterations:      o.Iterations,
		PVSize:          o.PVSize,
		StorageSize:     o.StorageSize,
		Tanks:           o.Tanks,
		MaxBoundProbes:  o.MaxBoundProbes,
	}
	if p.MaxBoundProbes <= 0 {
		p.MaxBoundProbes = defaultMaxBoundProbes
	}
	for _, t := range o.Thresholds {
		criterion, err := appraisal.ParseCriterion(t.Criterion)
		if err != nil {
			return Params{}, fmt.Errorf("resolve threshold: %w", err)
		}
		p.Thresholds = append(p.Thresholds, ThresholdCriterion{Criterion: criterion, Value: t.Value})
	}
	for _, name := range o.Objectives {
		criterion, err := appraisal.ParseCriterion(name)
		if err != nil {
			return Params{}, fmt.Errorf("resolve objective: %w", err)
		}
		p.Objectives = append(p.Objectives, criterion)
	}
	return p, nil
}

// IterationResult is the outcome of one deployment period.
type IterationResult struct {
	Period simulation.Period

	// Optima holds the best sufficient appraisal per objective criterion.
	Optima map[appraisal.Criterion]appraisal.SystemAppraisal

	// Selected is the optimum of the primary (first) objective; it seeds the
	// next iteration as the previous system.
	Selected appraisal.SystemAppraisal

	Simulations int
}

// Result is the outcome of a full optimisation run.
type Result struct {
	ID          uuid.UUID
	Iterations  []IterationResult
	Simulations int
	Duration    time.Duration
}

// Engine performs the sizing search. One simulation at a time by default; see
// SetParallelism.
type Engine struct {
	sim       *simulation.Simulator
	appraiser *appraisal.Appraiser
	params    Params

	parallelism int
	simulations atomic.Int64

	logger *slog.Logger
}

// New constructs an Engine.
func New(sim *simulation.Simulator, appraiser *appraisal.Appraiser, params Params) *Engine {
	return &Engine{
		sim:         sim,
		appraiser:   appraiser,
		params:      params,
		parallelism: 1,
		logger:      slog.Default(),
	}
}

// SetParallelism allows up to n candidate simulations to run concurrently
// within a sweep line. Candidates are independent, so results are identical to
// the serial sweep; some early-exit work may be wasted.
func (e *Engine) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	e.parallelism = n
}

// Run performs the full multi-iteration search. The first unrecoverable error
// from any iteration aborts the whole run; no partial lifetime results are
// returned.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	e.simulations.Store(0)

	sp := newSpace(e.params.PVSize, e.params.StorageSize, e.params.Tanks)
	var previous *appraisal.SystemAppraisal
	var iterations []IterationResult

	for it := 0; it < e.params.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		period := simulation.Period{
			StartYear: it * e.params.IterationLength,
			EndYear:   (it + 1) * e.params.IterationLength,
		}
		e.logger.Info(
			"Starting optimisation iteration",
			"iteration", it,
			"start_year", period.StartYear,
			"end_year", period.EndYear,
		)
		simsBefore := int(e.simulations.Load())

		result, err := e.runIteration(ctx, sp, period, previous)
		if err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", it, err)
		}
		result.Simulations = int(e.simulations.Load()) - simsBefore
		iterations = append(iterations, result)

		selected := result.Selected
		previous = &selected
		// The next period's bounds start from the selected system's final
		// (degradation-adjusted) sizes: installed capacity cannot shrink.
		sp = rebase(finalSizingOf(selected), e.params.originalConfig())
	}

	return Result{
		ID:          uuid.New(),
		Iterations:  iterations,
		Simulations: int(e.simulations.Load()),
		Duration:    time.Since(started),
	}, nil
}

// runIteration walks the search states for one deployment period: probe the
// upper bound, sweep the grid, expand edges, select the optimum.
func (e *Engine) runIteration(ctx context.Context, sp space, period simulation.Period, previous *appraisal.SystemAppraisal) (IterationResult, error) {
	sp, err := e.probeUpperBound(ctx, sp, period, previous)
	if err != nil {
		return IterationResult{}, err
	}

	sufficient, err := e.sweep(ctx, sp, period, previous)
	if err != nil {
		return IterationResult{}, err
	}
	if len(sufficient) == 0 {
		return IterationResult{}, ErrInfeasible
	}

	optima := make(map[appraisal.Criterion]appraisal.SystemAppraisal, len(e.params.Objectives))
	for _, objective := range e.params.Objectives {
		sufficient, sp, err = e.expandEdges(ctx, sufficient, sp, period, previous, objective)
		if err != nil {
			return IterationResult{}, err
		}
		optima[objective] = selectOptimum(sufficient, objective)
	}

	selected := optima[e.params.Objectives[0]]
	e.logger.Info(
		"Selected optimum system",
		"sizing", sizingOf(selected).String(),
		"objective", string(e.params.Objectives[0]),
		"value", selected.Criteria[e.params.Objectives[0]],
	)
	return IterationResult{Period: period, Optima: optima, Selected: selected}, nil
}

// probeUpperBound simulates the largest configured system and, while it is
// insufficient, raises every bound by one step. The probe gives up after
// MaxBoundProbes attempts with ErrInfeasible rather than looping forever.
func (e *Engine) probeUpperBound(ctx context.Context, sp space, period simulation.Period, previous *appraisal.SystemAppraisal) (space, error) {
	for probe := 0; probe <= e.params.MaxBoundProbes; probe++ {
		if err := ctx.Err(); err != nil {
			return space{}, err
		}
		sizing := sp.maxSizing()
		app, err := e.simulateAndAppraise(ctx, sizing, period, previous)
		if err != nil {
			return space{}, err
		}
		if e.sufficient(app) {
			if probe > 0 {
				e.logger.Info("Upper bound raised to find a sufficient system", "probes", probe, "sizing", sizing.String())
			}
			return sp, nil
		}
		sp = sp.expandAllMax()
	}
	return space{}, fmt.Errorf("after %d upper-bound probes: %w", e.params.MaxBoundProbes, ErrInfeasible)
}

// expandEdges re-checks the optimum for the given objective against the
// explored bounds: while a winning sizing sits at a dimension's maximum, an
// even larger system might be superior, so that dimension is re-swept one step
// higher (the "single line" simulation) and the results merged.
func (e *Engine) expandEdges(
	ctx context.Context,
	sufficient []candidateResult,
	sp space,
	period simulation.Period,
	previous *appraisal.SystemAppraisal,
	objective appraisal.Criterion,
) ([]candidateResult, space, error) {
	for round := 0; round < maxEdgeExpansions; round++ {
		optimum := selectOptimum(sufficient, objective)
		atPV, atStorage, atTanks := sp.atMax(sizingOf(optimum))

		var edge string
		switch {
		case atPV:
			edge = "pv"
		case atStorage:
			edge = "storage"
		case atTanks:
			edge = "tanks"
		default:
			return sufficient, sp, nil
		}

		e.logger.Info(
			"Optimum sits at explored bound, expanding",
			"dimension", edge,
			"sizing", sizingOf(optimum).String(),
		)
		line, err := e.sweep(ctx, sp.expandDimension(edge), period, previous)
		if err != nil {
			return nil, space{}, err
		}
		sufficient = append(sufficient, line...)
		sp = sp.mergeMax(edge)
	}
	e.logger.Warn("Edge expansion did not interiorise the optimum, keeping best found", "rounds", maxEdgeExpansions)
	return sufficient, sp, nil
}

// selectOptimum picks the extremum of the sufficient set for the criterion.
// The sort is stable, so ties fall to the candidate encountered first in
// descending-size sweep order.
func selectOptimum(sufficient []candidateResult, criterion appraisal.Criterion) appraisal.SystemAppraisal {
	ranked := make([]candidateResult, len(sufficient))
	copy(ranked, sufficient)
	mode := criterion.OptimisationMode()
	sort.SliceStable(ranked, func(i, j int) bool {
		vi := ranked[i].appraisal.Criteria[criterion]
		vj := ranked[j].appraisal.Criteria[criterion]
		if mode == appraisal.Maximise {
			return vi > vj
		}
		return vi < vj
	})
	return ranked[0].appraisal
}

// sizingOf recovers the sizing a system appraisal was simulated at.
func sizingOf(app appraisal.SystemAppraisal) simulation.Sizing {
	return simulation.Sizing{
		PVSize:      app.System.InitialPVSize,
		StorageSize: app.System.InitialStorageSize,
		Tanks:       app.System.Tanks,
	}
}

// finalSizingOf returns the degradation-adjusted sizes at the end of the
// appraised period.
func finalSizingOf(app appraisal.SystemAppraisal) simulation.Sizing {
	return simulation.Sizing{
		PVSize:      app.System.FinalPVSize,
		StorageSize: app.System.FinalStorageSize,
		Tanks:       app.System.Tanks,
	}
}

// originalConfig reconstructs the configured ranges for re-basing.
func (p Params) originalConfig() config.Optimisation {
	return config.Optimisation{
		PVSize:      p.PVSize,
		StorageSize: p.StorageSize,
		Tanks:       p.Tanks,
	}
}
