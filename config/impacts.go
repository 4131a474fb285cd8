package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Component tags used as keys into the impact tables.
const (
	ImpactPV       = "pv"
	ImpactStorage  = "storage"
	ImpactTank     = "tank"
	ImpactDiesel   = "diesel"
	ImpactGrid     = "grid"
	ImpactKerosene = "kerosene"
)

// Impact holds the cost and GHG coefficients for one component tag. Costs are
// per unit of installed size (kWp, kWh, tank, kW); GHGs are kgCO2eq per unit.
type Impact struct {
	Cost             float64 `mapstructure:"cost"`
	CostDecrease     float64 `mapstructure:"costDecrease"` // annual fractional decrease in unit cost
	InstallationCost float64 `mapstructure:"installationCost"`
	OM               float64 `mapstructure:"om"` // annual operation and maintenance, per unit size
	GHGs             float64 `mapstructure:"ghgs"`
	GHGDecrease      float64 `mapstructure:"ghgDecrease"`
	InstallationGHGs float64 `mapstructure:"installationGhgs"`
	OMGHGs           float64 `mapstructure:"omGhgs"`
	Lifetime         int     `mapstructure:"lifetime"`
	SizeIncrement    float64 `mapstructure:"sizeIncrement"`
}

// ImpactTables maps component tags to their cost/GHG coefficients.
type ImpactTables map[string]Impact

// DecodeImpacts converts the loosely-typed impact mapping from the YAML file
// into typed coefficient records. Unknown component tags are preserved;
// unknown fields within a tag are an error so that typos in coefficient names
// fail fast rather than silently zeroing a cost.
func DecodeImpacts(raw map[string]interface{}) (ImpactTables, error) {
	tables := make(ImpactTables, len(raw))
	for tag, entry := range raw {
		var impact Impact
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &impact,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, fmt.Errorf("build impact decoder: %w", err)
		}
		if err := decoder.Decode(entry); err != nil {
			return nil, fmt.Errorf("decode impact table for %q: %w", tag, err)
		}
		tables[tag] = impact
	}
	return tables, nil
}

// Get returns the impact record for a tag, failing if it is missing so that
// appraisals never silently price a component at zero.
func (t ImpactTables) Get(tag string) (Impact, error) {
	impact, ok := t[tag]
	if !ok {
		return Impact{}, fmt.Errorf("no impact table for component %q", tag)
	}
	return impact, nil
}
