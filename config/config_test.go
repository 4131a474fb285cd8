package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/minigridsim/profiles"
)

const exampleConfig = `
scenario:
  domesticDemand: true
  commercialDemand: true
  network: ac
  transmissionEfficiency: 0.95
  conversionEfficiencyAC: 0.97
  conversionEfficiencyDC: 0.9
  prioritiseSelfGeneration: true
  gridAvailable: false
  dieselMode: backup
  dieselBackupThreshold: 0.05
  waterMode: disabled
  communitySize: 100
  communityGrowthRate: 0.02
finance:
  discountRate: 0.08
  gridCostPerKWh: 0.2
  dieselFuelCost: 0.9
  keroseneCost: 0.1
  dieselCapacityIncrement: 1
devices:
  battery:
    cycleLifetime: 2000
    leakage: 0.004
    maxCharge: 0.9
    minCharge: 0.2
    chargeRate: 0.33
    dischargeRate: 0.33
    conversionIn: 0.95
    conversionOut: 0.95
    lifetimeLoss: 0.35
    lifetime: 10
  panel:
    lifetime: 20
    degradationRate: 0.01
  generator:
    consumptionPerKWh: 0.4
    minimumLoad: 0.35
    lifetime: 15
optimisation:
  iterationLength: 5
  iterations: 3
  pvSize: {min: 5, max: 20, step: 5}
  storageSize: {min: 5, max: 30, step: 5}
  tanks: {min: 0, max: 0, step: 1}
  maxBoundProbes: 10
  thresholds:
    - criterion: blackoutFraction
      value: 0.05
  objectives: [lcue]
impacts:
  pv:
    cost: 500
    costDecrease: 0.05
    om: 10
    ghgs: 2000
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(exampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []profiles.Sector{profiles.SectorDomestic, profiles.SectorCommercial}, cfg.Scenario.Sectors())
	assert.InDelta(t, 0.95*0.97, cfg.Scenario.DistributionEfficiency(), 1e-9)
	assert.Equal(t, DieselModeBackup, cfg.Scenario.DieselMode)

	require.NotNil(t, cfg.Devices.Battery)
	assert.Equal(t, 2000.0, cfg.Devices.Battery.CycleLifetime)
	assert.Equal(t, 0.35, cfg.Devices.Battery.LifetimeLoss)
	assert.Equal(t, 20, cfg.Devices.Panel.Lifetime)
	require.NotNil(t, cfg.Devices.Generator)
	assert.Nil(t, cfg.Devices.Tank)

	assert.Equal(t, 5, cfg.Optimisation.IterationLength)
	assert.Equal(t, Range{Min: 5, Max: 20, Step: 5}, cfg.Optimisation.PVSize)
	require.Len(t, cfg.Optimisation.Thresholds, 1)
	assert.Equal(t, "blackoutFraction", cfg.Optimisation.Thresholds[0].Criterion)

	impacts, err := DecodeImpacts(cfg.Impacts)
	require.NoError(t, err)
	pv, err := impacts.Get(ImpactPV)
	require.NoError(t, err)
	assert.Equal(t, 500.0, pv.Cost)
	assert.Equal(t, 0.05, pv.CostDecrease)
}

func TestParseRejectsInvalidScenario(t *testing.T) {
	for name, mangle := range map[string]func(string) string{
		"no sectors":      func(c string) string { return replace(c, "domesticDemand: true", "domesticDemand: false") },
		"bad network":     func(c string) string { return replace(c, "network: ac", "network: threephase") },
		"bad diesel mode": func(c string) string { return replace(c, "dieselMode: backup", "dieselMode: always") },
		"bad threshold":   func(c string) string { return replace(c, "dieselBackupThreshold: 0.05", "dieselBackupThreshold: 1.5") },
	} {
		t.Run(name, func(t *testing.T) {
			mangled := mangle(replace(exampleConfig, "commercialDemand: true", "commercialDemand: false"))
			_, err := Parse([]byte(mangled))
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsInvalidBattery(t *testing.T) {
	mangled := replace(exampleConfig, "minCharge: 0.2", "minCharge: 0.95")
	_, err := Parse([]byte(mangled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "battery")
}

func TestOptimisationValidate(t *testing.T) {
	valid := Optimisation{
		IterationLength: 5,
		Iterations:      2,
		PVSize:          Range{Min: 1, Max: 10, Step: 1},
		StorageSize:     Range{Min: 0, Max: 20, Step: 5},
		Tanks:           Range{Min: 0, Max: 2, Step: 1},
		Thresholds:      []Threshold{{Criterion: "blackoutFraction", Value: 0.05}},
		Objectives:      []string{"lcue"},
	}
	require.NoError(t, valid.Validate())

	noObjectives := valid
	noObjectives.Objectives = nil
	assert.Error(t, noObjectives.Validate())

	noThresholds := valid
	noThresholds.Thresholds = nil
	assert.Error(t, noThresholds.Validate())

	badRange := valid
	badRange.PVSize = Range{Min: 10, Max: 1, Step: 1}
	assert.Error(t, badRange.Validate())

	zeroStep := valid
	zeroStep.StorageSize = Range{Min: 0, Max: 20, Step: 0}
	assert.Error(t, zeroStep.Validate())
}

func TestDecodeImpactsRejectsUnknownFields(t *testing.T) {
	raw := map[string]interface{}{
		"pv": map[string]interface{}{
			"cost":  500,
			"costt": 1, // typo must fail, not silently zero a coefficient
		},
	}
	_, err := DecodeImpacts(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pv")
}

func TestImpactTablesGetMissing(t *testing.T) {
	tables := ImpactTables{ImpactPV: {Cost: 500}}
	_, err := tables.Get(ImpactStorage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ImpactStorage)
}

func TestDesalinatorConverter(t *testing.T) {
	d := DesalinatorConfig{Name: "ro-unit", KWhPerLitre: 0.003, MaxLitresPerHour: 1000}
	converter, err := d.Converter()
	require.NoError(t, err)

	rate, ok := converter.InputRate("electricity")
	require.True(t, ok)
	assert.Equal(t, 0.003, rate)

	d.MaxLitresPerHour = 0
	_, err = d.Converter()
	assert.Error(t, err)
}

func replace(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
