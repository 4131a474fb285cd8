package components

import (
	"fmt"
	"math"
)

// Battery holds the static parameters of the storage technology, normalised per
// kWh of installed capacity. The capacity itself is part of the sizing, not the
// component.
type Battery struct {
	CycleLifetime  float64 `yaml:"cycleLifetime"`  // equivalent full cycles before end of life
	Leakage        float64 `yaml:"leakage"`        // fraction of stored energy lost per hour
	MaxCharge      float64 `yaml:"maxCharge"`      // maximum state of charge, fraction of capacity
	MinCharge      float64 `yaml:"minCharge"`      // minimum state of charge, fraction of capacity
	ChargeRate     float64 `yaml:"chargeRate"`     // maximum charge per hour, fraction of capacity
	DischargeRate  float64 `yaml:"dischargeRate"`  // maximum discharge per hour, fraction of capacity
	ConversionIn   float64 `yaml:"conversionIn"`   // efficiency of energy entering the cells
	ConversionOut  float64 `yaml:"conversionOut"`  // efficiency of energy leaving the cells
	LifetimeLoss   float64 `yaml:"lifetimeLoss"`   // capacity fraction lost at end of throughput life
	LifetimeYears  int     `yaml:"lifetime"`       // calendar lifetime, used by the financial appraisal
}

// MaxThroughput returns the cumulative energy throughput, in kWh, at which the
// battery reaches its end-of-life capacity for the given installed capacity.
func (b Battery) MaxThroughput(capacity float64) float64 {
	return b.CycleLifetime * capacity
}

// Validate checks the battery parameters for internal consistency.
func (b Battery) Validate() error {
	if b.MinCharge < 0 || b.MaxCharge > 1 || b.MinCharge >= b.MaxCharge {
		return fmt.Errorf("battery charge limits invalid: min %f, max %f", b.MinCharge, b.MaxCharge)
	}
	if b.ConversionIn <= 0 || b.ConversionIn > 1 || b.ConversionOut <= 0 || b.ConversionOut > 1 {
		return fmt.Errorf("battery conversion efficiencies must be in (0, 1]: in %f, out %f", b.ConversionIn, b.ConversionOut)
	}
	if b.CycleLifetime <= 0 {
		return fmt.Errorf("battery cycle lifetime must be positive: %f", b.CycleLifetime)
	}
	return nil
}

// PVPanel holds the static parameters of the solar technology.
type PVPanel struct {
	Lifetime        int     `yaml:"lifetime"`        // years
	DegradationRate float64 `yaml:"degradationRate"` // fraction of output lost per year
}

// DegradationFactor returns the output multiplier for a panel that has been
// installed for the given number of hours. Linear in age, floored at zero.
func (p PVPanel) DegradationFactor(hour int) float64 {
	factor := 1.0 - p.DegradationRate*(float64(hour)/8760.0)
	if factor < 0 {
		return 0
	}
	return factor
}

// CleanWaterTank holds the static parameters of a single clean-water storage
// tank. Tanks are installed in integer multiples; the usable mass scales with
// the count.
type CleanWaterTank struct {
	Mass          float64 `yaml:"mass"`          // litres of storage per tank
	Leakage       float64 `yaml:"leakage"`       // fraction of stored water lost per hour
	MaxCharge     float64 `yaml:"maxCharge"`     // maximum fill level, fraction of mass
	MinCharge     float64 `yaml:"minCharge"`     // minimum fill level, fraction of mass
	CycleLifetime float64 `yaml:"cycleLifetime"` // equivalent full cycles before end of life
	LifetimeLoss  float64 `yaml:"lifetimeLoss"`  // capacity fraction lost at end of throughput life
	Lifetime      int     `yaml:"lifetime"`      // calendar lifetime in years
}

// MaxThroughput returns the cumulative water throughput, in litres, at which
// the given number of tanks reach their end-of-life capacity.
func (t CleanWaterTank) MaxThroughput(tanks int) float64 {
	return t.CycleLifetime * t.Mass * float64(tanks)
}

// DieselGenerator holds the static parameters of the backup generator.
type DieselGenerator struct {
	ConsumptionPerKWh float64 `yaml:"consumptionPerKWh"` // litres of fuel per kWh generated
	MinimumLoad       float64 `yaml:"minimumLoad"`       // minimum load factor while running, fraction of capacity
	Lifetime          int     `yaml:"lifetime"`          // calendar lifetime in years
}

// FuelUsage returns the fuel burned, in litres, for one hour of operation at
// the given output and capacity. The load factor is floored at the generator's
// minimum load while it is running.
func (g DieselGenerator) FuelUsage(energy, capacity float64) float64 {
	if energy <= 0 || capacity <= 0 {
		return 0
	}
	loadFactor := energy / capacity
	if loadFactor < g.MinimumLoad {
		loadFactor = g.MinimumLoad
	}
	return loadFactor * capacity * g.ConsumptionPerKWh
}

// Households returns the number of households in the community after the given
// number of simulated hours, using compound annual growth. The count is flat
// within a year.
func Households(initial int, growthRate float64, hour int) int {
	year := hour / 8760
	return int(math.Floor(float64(initial) * math.Pow(1.0+growthRate, float64(year))))
}
