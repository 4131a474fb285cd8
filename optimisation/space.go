package optimisation

import (
	"math"

	"github.com/cepro/minigridsim/config"
	"github.com/cepro/minigridsim/simulation"
)

// dimension is one free axis of the sizing space, with its candidate values in
// descending order. The sweep explores larger systems first so that the
// monotonicity early-exit can prune the tail of each axis.
type dimension struct {
	name       string
	candidates []float64 // descending
	step       float64
}

// max returns the largest candidate of the dimension.
func (d dimension) max() float64 {
	return d.candidates[0]
}

// space is the explored sizing region: one dimension per free sizing axis, in
// sweep order with the innermost (fastest varying) axis last.
type space struct {
	pv      dimension
	storage dimension
	tanks   dimension
}

// candidatesDesc enumerates a range from Max down to Min inclusive.
func candidatesDesc(r config.Range) []float64 {
	var values []float64
	// Tolerate float drift so Min itself is always included.
	for v := r.Max; v > r.Min-r.Step/2; v -= r.Step {
		value := v
		if value < r.Min {
			value = r.Min
		}
		values = append(values, value)
	}
	return values
}

func newSpace(pv, storage, tanks config.Range) space {
	return space{
		pv:      dimension{name: "pv", candidates: candidatesDesc(pv), step: pv.Step},
		storage: dimension{name: "storage", candidates: candidatesDesc(storage), step: storage.Step},
		tanks:   dimension{name: "tanks", candidates: candidatesDesc(tanks), step: tanks.Step},
	}
}

// maxSizing returns the largest system in the space.
func (s space) maxSizing() simulation.Sizing {
	return s.sizing(s.pv.max(), s.storage.max(), s.tanks.max())
}

func (s space) sizing(pv, storage, tanks float64) simulation.Sizing {
	return simulation.Sizing{
		PVSize:      pv,
		StorageSize: storage,
		Tanks:       int(math.Round(tanks)),
	}
}

// expandAllMax grows every dimension's maximum by one step, keeping the rest
// of the candidates. Used by the upper-bound probe.
func (s space) expandAllMax() space {
	grow := func(d dimension) dimension {
		d.candidates = append([]float64{d.max() + d.step}, d.candidates...)
		return d
	}
	return space{pv: grow(s.pv), storage: grow(s.storage), tanks: grow(s.tanks)}
}

// atMax reports which dimensions of the given sizing sit at the explored
// maximum.
func (s space) atMax(sizing simulation.Sizing) (pv, storage, tanks bool) {
	const eps = 1e-9
	pv = math.Abs(sizing.PVSize-s.pv.max()) < eps
	storage = math.Abs(sizing.StorageSize-s.storage.max()) < eps
	tanks = math.Abs(float64(sizing.Tanks)-s.tanks.max()) < eps
	return pv, storage, tanks
}

// expandDimension returns a copy of the space with the named dimension fixed
// one step above its explored maximum and the other dimensions unchanged -
// the "single line" slice that the edge-expansion phase re-sweeps.
func (s space) expandDimension(name string) space {
	fixed := func(d dimension) dimension {
		return dimension{name: d.name, candidates: []float64{d.max() + d.step}, step: d.step}
	}
	out := s
	switch name {
	case "pv":
		out.pv = fixed(s.pv)
	case "storage":
		out.storage = fixed(s.storage)
	case "tanks":
		out.tanks = fixed(s.tanks)
	}
	return out
}

// mergeMax widens the explored maximum of the named dimension by one step, so
// that subsequent edge checks compare against the expanded region.
func (s space) mergeMax(name string) space {
	grow := func(d dimension) dimension {
		d.candidates = append([]float64{d.max() + d.step}, d.candidates...)
		return d
	}
	out := s
	switch name {
	case "pv":
		out.pv = grow(s.pv)
	case "storage":
		out.storage = grow(s.storage)
	case "tanks":
		out.tanks = grow(s.tanks)
	}
	return out
}

// rebase centres a fresh space on the system selected in the previous
// iteration: the minimum of each axis is the installed size (capacity cannot
// be uninstalled) and the maximum is that plus the originally configured span.
func rebase(selected simulation.Sizing, cfg config.Optimisation) space {
	reb := func(r config.Range, installed float64) config.Range {
		span := r.Max - r.Min
		return config.Range{Min: installed, Max: installed + span, Step: r.Step}
	}
	return newSpace(
		reb(cfg.PVSize, selected.PVSize),
		reb(cfg.StorageSize, selected.StorageSize),
		reb(cfg.Tanks, float64(selected.Tanks)),
	)
}
