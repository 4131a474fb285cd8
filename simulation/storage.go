package simulation

import (
	"github.com/cepro/minigridsim/components"
)

// batteryState tracks the battery charge level and cumulative throughput over
// one simulation. The usable bounds shrink as throughput accumulates, so the
// bounds at any hour depend on the full charge/discharge history before it.
type batteryState struct {
	spec     components.Battery
	capacity float64 // installed kWh

	level         float64 // kWh currently stored
	throughput    float64 // cumulative kWh discharged from the cells
	maxThroughput float64
}

func newBatteryState(spec components.Battery, capacity float64) *batteryState {
	return &batteryState{
		spec:          spec,
		capacity:      capacity,
		level:         capacity * spec.MaxCharge,
		maxThroughput: spec.MaxThroughput(capacity),
	}
}

// health returns the remaining capacity fraction, floored at the end-of-life
// value so extra throughput beyond the rated life does not degrade further.
func (b *batteryState) health() float64 {
	if b.maxThroughput <= 0 {
		return 1
	}
	h := 1 - b.spec.LifetimeLoss*(b.throughput/b.maxThroughput)
	if floor := 1 - b.spec.LifetimeLoss; h < floor {
		h = floor
	}
	return h
}

// bounds returns the current minimum and maximum storage levels, shrunk by the
// degradation fraction accumulated so far.
func (b *batteryState) bounds() (min, max float64) {
	h := b.health()
	return b.capacity * b.spec.MinCharge * h, b.capacity * b.spec.MaxCharge * h
}

// step advances the battery by one hour given the net flow at the bus
// (positive = surplus available to charge, negative = demand to discharge
// into). It returns the energy supplied to the bus, the surplus that could not
// be absorbed, and the demand that could not be served, all in bus-side kWh.
func (b *batteryState) step(netFlow float64) (supplied, dumped, deficit float64) {
	minBound, maxBound := b.bounds()

	// Leakage decays the previous hour's stored level before any flow.
	b.level *= 1 - b.spec.Leakage

	if netFlow >= 0 {
		accepted := netFlow
		if cap := b.spec.ChargeRate * b.capacity; accepted > cap {
			accepted = cap
		}
		stored := accepted * b.spec.ConversionIn
		if space := maxBound - b.level; stored > space {
			if space < 0 {
				space = 0
			}
			stored = space
		}
		b.level += stored
		dumped = netFlow
		if b.spec.ConversionIn > 0 {
			dumped = netFlow - stored/b.spec.ConversionIn
		}
		return 0, dumped, 0
	}

	request := -netFlow
	gross := request / b.spec.ConversionOut
	if cap := b.spec.DischargeRate * b.capacity; gross > cap {
		gross = cap
	}
	if available := b.level - minBound; gross > available {
		if available < 0 {
			available = 0
		}
		gross = available
	}
	b.level -= gross
	b.throughput += gross
	supplied = gross * b.spec.ConversionOut
	deficit = request - supplied

	// The discharge may have shrunk the bounds below the remaining level.
	if _, maxBound = b.bounds(); b.level > maxBound {
		dumped += b.level - maxBound
		b.level = maxBound
	}
	return supplied, dumped, deficit
}

// SurplusDeficit is the vectorised zero-storage shortcut: with no battery,
// every positive net flow is dumped and every negative one is a deficit. It
// must agree with running the hourly recurrence at zero capacity.
func SurplusDeficit(netFlow []float64) (dumped, deficit []float64) {
	dumped = make([]float64, len(netFlow))
	deficit = make([]float64, len(netFlow))
	for i, flow := range netFlow {
		if flow >= 0 {
			dumped[i] = flow
		} else {
			deficit[i] = -flow
		}
	}
	return dumped, deficit
}

// tankState tracks the clean-water storage level across a bank of identical
// tanks, mirroring the battery recurrence in litres.
type tankState struct {
	spec  components.CleanWaterTank
	tanks int
	mass  float64 // installed litres

	level         float64
	throughput    float64
	maxThroughput float64
}

func newTankState(spec components.CleanWaterTank, tanks int) *tankState {
	mass := spec.Mass * float64(tanks)
	return &tankState{
		spec:          spec,
		tanks:         tanks,
		mass:          mass,
		level:         mass * spec.MinCharge,
		maxThroughput: spec.MaxThroughput(tanks),
	}
}

func (t *tankState) health() float64 {
	if t.maxThroughput <= 0 {
		return 1
	}
	h := 1 - t.spec.LifetimeLoss*(t.throughput/t.maxThroughput)
	if floor := 1 - t.spec.LifetimeLoss; h < floor {
		h = floor
	}
	return h
}

func (t *tankState) bounds() (min, max float64) {
	h := t.health()
	return t.mass * t.spec.MinCharge * h, t.mass * t.spec.MaxCharge * h
}

// leak decays the previous hour's level.
func (t *tankState) leak() {
	t.level *= 1 - t.spec.Leakage
}

// space returns the litres that can still be stored this hour.
func (t *tankState) space() float64 {
	_, maxBound := t.bounds()
	space := maxBound - t.level
	if space < 0 {
		return 0
	}
	return space
}

// fill stores the given litres, which must not exceed space().
func (t *tankState) fill(litres float64) {
	t.level += litres
}

// draw removes up to the requested litres, bounded by the minimum level, and
// returns the amount actually supplied.
func (t *tankState) draw(litres float64) float64 {
	minBound, _ := t.bounds()
	available := t.level - minBound
	if available < 0 {
		available = 0
	}
	if litres > available {
		litres = available
	}
	t.level -= litres
	t.throughput += litres
	return litres
}
