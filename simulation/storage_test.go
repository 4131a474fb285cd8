package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/minigridsim/components"
)

func lossyBattery() components.Battery {
	return components.Battery{
		CycleLifetime: 100,
		MaxCharge:     0.9,
		MinCharge:     0.1,
		ChargeRate:    0.3,
		DischargeRate: 0.3,
		ConversionIn:  0.9,
		ConversionOut: 0.9,
	}
}

func TestBatteryStepDischargeAndCharge(t *testing.T) {
	b := newBatteryState(lossyBattery(), 10)
	require.Equal(t, 9.0, b.level)

	// Discharge 2 kWh at the bus: 2/0.9 kWh leaves the cells.
	supplied, dumped, deficit := b.step(-2)
	assert.InDelta(t, 2.0, supplied, 1e-9)
	assert.Equal(t, 0.0, dumped)
	assert.Equal(t, 0.0, deficit)
	assert.InDelta(t, 9-2/0.9, b.level, 1e-9)

	// Charge with a 10 kWh surplus: the charge rate caps intake at 3 kWh, the
	// remaining headroom caps it further, and the rest is dumped.
	space := 9 - b.level
	supplied, dumped, deficit = b.step(10)
	assert.Equal(t, 0.0, supplied)
	assert.Equal(t, 0.0, deficit)
	assert.InDelta(t, 10-space/0.9, dumped, 1e-6)
	assert.InDelta(t, 9.0, b.level, 1e-9)

	// A demand far beyond the discharge rate is rate-limited; the shortfall is
	// reported as deficit.
	supplied, dumped, deficit = b.step(-100)
	assert.InDelta(t, 3*0.9, supplied, 1e-9)
	assert.Equal(t, 0.0, dumped)
	assert.InDelta(t, 100-3*0.9, deficit, 1e-9)
	assert.InDelta(t, 6.0, b.level, 1e-9)
}

func TestBatteryStepLeakage(t *testing.T) {
	spec := lossyBattery()
	spec.Leakage = 0.01
	b := newBatteryState(spec, 10)

	// With no flow the stored level still decays.
	supplied, dumped, deficit := b.step(0)
	assert.Equal(t, 0.0, supplied)
	assert.Equal(t, 0.0, dumped)
	assert.Equal(t, 0.0, deficit)
	assert.InDelta(t, 9*0.99, b.level, 1e-9)
}

func TestBatteryDegradationShrinksBounds(t *testing.T) {
	spec := lossyBattery()
	spec.CycleLifetime = 2 // 20 kWh of lifetime throughput at 10 kWh installed
	spec.LifetimeLoss = 0.2
	b := newBatteryState(spec, 10)

	previousHealth := b.health()
	assert.Equal(t, 1.0, previousHealth)

	for i := 0; i < 50; i++ {
		b.step(-3)
		b.step(3)

		h := b.health()
		assert.LessOrEqual(t, h, previousHealth)
		assert.GreaterOrEqual(t, h, 1-spec.LifetimeLoss)
		previousHealth = h

		minBound, maxBound := b.bounds()
		assert.InDelta(t, 10*spec.MinCharge*h, minBound, 1e-9)
		assert.InDelta(t, 10*spec.MaxCharge*h, maxBound, 1e-9)
		assert.LessOrEqual(t, b.level, maxBound+1e-9)
	}

	// Enough cycling to exhaust the rated throughput: health floors at the
	// end-of-life value instead of degrading further.
	assert.InDelta(t, 1-spec.LifetimeLoss, b.health(), 1e-9)
}

func TestZeroCapacityStepMatchesSurplusDeficit(t *testing.T) {
	b := newBatteryState(lossyBattery(), 0)
	flows := []float64{3, -2, 0, 5.5, -0.1, -7, 1.25}

	dumpedVec, deficitVec := SurplusDeficit(flows)
	for i, flow := range flows {
		supplied, dumped, deficit := b.step(flow)
		assert.Equal(t, 0.0, supplied, "flow %d", i)
		assert.InDelta(t, dumpedVec[i], dumped, 1e-12, "flow %d", i)
		assert.InDelta(t, deficitVec[i], deficit, 1e-12, "flow %d", i)
		assert.Equal(t, 0.0, b.level, "flow %d", i)
	}
}

func TestTankStateFillDraw(t *testing.T) {
	spec := components.CleanWaterTank{
		Mass:          1000,
		Leakage:       0.01,
		MaxCharge:     0.95,
		MinCharge:     0.05,
		CycleLifetime: 100,
	}
	tank := newTankState(spec, 2)
	require.Equal(t, 100.0, tank.level)

	tank.leak()
	assert.InDelta(t, 99.0, tank.level, 1e-9)
	assert.InDelta(t, 2000*0.95-99, tank.space(), 1e-9)

	tank.fill(500)
	assert.InDelta(t, 599.0, tank.level, 1e-9)

	// Draw is limited by the minimum level.
	supplied := tank.draw(700)
	assert.InDelta(t, 499.0, supplied, 1e-9)
	assert.InDelta(t, 100.0, tank.level, 1e-9)

	assert.Equal(t, 0.0, tank.draw(10))
}
