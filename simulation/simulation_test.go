package simulation

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/minigridsim/components"
	"github.com/cepro/minigridsim/config"
	"github.com/cepro/minigridsim/profiles"
)

func testScenario() config.Scenario {
	return config.Scenario{
		DomesticDemand:           true,
		Network:                  config.NetworkAC,
		TransmissionEfficiency:   1,
		ConversionEfficiencyAC:   1,
		ConversionEfficiencyDC:   1,
		PrioritiseSelfGeneration: true,
		DieselMode:               config.DieselModeDisabled,
		WaterMode:                config.WaterModeDisabled,
		CommunitySize:            100,
	}
}

// idealBattery has no losses, no degradation and full depth of discharge, so
// balanced scenarios stay exactly balanced.
func idealBattery() *components.Battery {
	return &components.Battery{
		CycleLifetime: 3000,
		MaxCharge:     1,
		ChargeRate:    1,
		DischargeRate: 1,
		ConversionIn:  1,
		ConversionOut: 1,
	}
}

func constantProfiles(years int, solar float64) *profiles.Set {
	hours := years * hoursPerYear
	return &profiles.Set{
		Solar:            profiles.Constant(solar, hours),
		GridAvailability: profiles.Constant(0, hours),
		Load:             map[profiles.Sector]profiles.Profile{profiles.SectorDomestic: profiles.Constant(1, hours)},
		Kerosene:         profiles.Constant(2, hours),
	}
}

// dayNightProfiles has solar output only between 06:00 and 18:00.
func dayNightProfiles(years int, daytimeSolar float64) *profiles.Set {
	set := constantProfiles(years, 0)
	hours := years * hoursPerYear
	values := make([]float64, hours)
	for i := range values {
		if h := i % 24; h >= 6 && h < 18 {
			values[i] = daytimeSolar
		}
	}
	set.Solar = profiles.New(values)
	return set
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// A system whose generation exactly matches the load in every hour: nothing is
// unmet, nothing is dumped and the battery never moves.
func TestRunBalancedSystem(t *testing.T) {
	sim, err := New(testScenario(), config.Devices{Battery: idealBattery(), Panel: components.PVPanel{Lifetime: 20}}, constantProfiles(1, 0.5), 1)
	require.NoError(t, err)

	out, details, err := sim.Run(context.Background(), Sizing{PVSize: 2, StorageSize: 5}, Period{StartYear: 0, EndYear: 1})
	require.NoError(t, err)
	require.Equal(t, hoursPerYear, out.Hours())

	assert.Equal(t, 0.0, sum(out.UnmetEnergy))
	assert.Equal(t, 0.0, sum(out.DumpedEnergy))
	assert.Equal(t, 0.0, sum(out.Blackout))
	assert.InDelta(t, float64(hoursPerYear), sum(out.RenewablesUsedDirectly), 1e-6)
	assert.Equal(t, 0.0, sum(out.GridEnergy))
	assert.Equal(t, 0.0, sum(out.StorageSupplied))

	for _, tt := range []int{0, hoursPerYear / 2, hoursPerYear - 1} {
		assert.Equal(t, 5.0, out.BatteryStorage[tt], "hour %d", tt)
		assert.Equal(t, 1.0, out.BatteryHealth[tt], "hour %d", tt)
		assert.Equal(t, 100.0, out.Households[tt], "hour %d", tt)
		assert.Equal(t, 0.0, out.KeroseneUsage[tt], "hour %d", tt)
		assert.Equal(t, 2.0, out.KeroseneMitigation[tt], "hour %d", tt)
	}

	assert.Equal(t, 2.0, details.InitialPVSize)
	assert.Equal(t, 2.0, details.FinalPVSize)
	assert.Equal(t, 5.0, details.InitialStorageSize)
	assert.Equal(t, 5.0, details.FinalStorageSize)
	assert.Equal(t, 0.0, details.DieselCapacity)
	assert.Equal(t, 0, details.StartYear)
	assert.Equal(t, 1, details.EndYear)
}

// Identical inputs must yield bit-identical outputs.
func TestRunDeterministic(t *testing.T) {
	scenario := testScenario()
	scenario.GridAvailable = true

	set := dayNightProfiles(1, 0.8)
	availability := make([]float64, hoursPerYear)
	for i := range availability {
		if i%3 == 0 {
			availability[i] = 1
		}
	}
	set.GridAvailability = profiles.New(availability)

	battery := &components.Battery{
		CycleLifetime: 600,
		Leakage:       0.004,
		MaxCharge:     0.9,
		MinCharge:     0.2,
		ChargeRate:    0.33,
		DischargeRate: 0.33,
		ConversionIn:  0.95,
		ConversionOut: 0.95,
		LifetimeLoss:  0.3,
	}
	sim, err := New(scenario, config.Devices{Battery: battery, Panel: components.PVPanel{Lifetime: 20, DegradationRate: 0.01}}, set, 1)
	require.NoError(t, err)

	sizing := Sizing{PVSize: 3, StorageSize: 8}
	period := Period{StartYear: 0, EndYear: 1}

	out1, _, err := sim.Run(context.Background(), sizing, period)
	require.NoError(t, err)
	out2, _, err := sim.Run(context.Background(), sizing, period)
	require.NoError(t, err)

	assert.Equal(t, *out1, *out2)
}

// Every hour must balance: demand equals the sum of all supply routes plus the
// unmet remainder, and degradation only ever tightens the battery bounds.
func TestRunConservationAndInvariants(t *testing.T) {
	scenario := testScenario()
	scenario.GridAvailable = true

	set := dayNightProfiles(1, 0.8)
	availability := make([]float64, hoursPerYear)
	for i := range availability {
		if i%3 == 0 {
			availability[i] = 1
		}
	}
	set.GridAvailability = profiles.New(availability)

	battery := &components.Battery{
		CycleLifetime: 600,
		Leakage:       0.004,
		MaxCharge:     0.9,
		MinCharge:     0.2,
		ChargeRate:    0.33,
		DischargeRate: 0.33,
		ConversionIn:  0.95,
		ConversionOut: 0.95,
		LifetimeLoss:  0.3,
	}
	sim, err := New(scenario, config.Devices{Battery: battery, Panel: components.PVPanel{Lifetime: 20, DegradationRate: 0.01}}, set, 1)
	require.NoError(t, err)

	out, _, err := sim.Run(context.Background(), Sizing{PVSize: 3, StorageSize: 8}, Period{StartYear: 0, EndYear: 1})
	require.NoError(t, err)

	previousHealth := 1.0
	for i := 0; i < out.Hours(); i++ {
		supply := out.RenewablesUsedDirectly[i] + out.GridEnergy[i] + out.StorageSupplied[i] + out.DieselEnergy[i] + out.UnmetEnergy[i]
		require.InDelta(t, out.LoadEnergy[i], supply, 1e-6, "hour %d out of balance", i)

		require.GreaterOrEqual(t, out.UnmetEnergy[i], 0.0, "hour %d", i)
		require.GreaterOrEqual(t, out.DumpedEnergy[i], -1e-9, "hour %d", i)
		if out.UnmetEnergy[i] > 0 {
			require.Equal(t, 1.0, out.Blackout[i], "hour %d", i)
		} else {
			require.Equal(t, 0.0, out.Blackout[i], "hour %d", i)
		}

		h := out.BatteryHealth[i]
		require.LessOrEqual(t, h, previousHealth, "hour %d", i)
		require.GreaterOrEqual(t, h, 1-battery.LifetimeLoss, "hour %d", i)
		require.LessOrEqual(t, out.BatteryStorage[i], 8*battery.MaxCharge*h+1e-9, "hour %d", i)
		previousHealth = h
	}
}

// With the grid always available and generation exactly covering the load, the
// two apportioning policies route the same demand through opposite sources.
func TestRunLoadApportionPolicies(t *testing.T) {
	devices := config.Devices{Panel: components.PVPanel{Lifetime: 20}}

	set := constantProfiles(1, 0.5)
	set.GridAvailability = profiles.Constant(1, hoursPerYear)

	selfFirst := testScenario()
	selfFirst.GridAvailable = true

	gridFirst := selfFirst
	gridFirst.PrioritiseSelfGeneration = false

	simSelf, err := New(selfFirst, devices, set, 1)
	require.NoError(t, err)
	simGrid, err := New(gridFirst, devices, set, 1)
	require.NoError(t, err)

	sizing := Sizing{PVSize: 2}
	period := Period{StartYear: 0, EndYear: 1}

	outSelf, _, err := simSelf.Run(context.Background(), sizing, period)
	require.NoError(t, err)
	outGrid, _, err := simGrid.Run(context.Background(), sizing, period)
	require.NoError(t, err)

	assert.InDelta(t, float64(hoursPerYear), sum(outSelf.RenewablesUsedDirectly), 1e-6)
	assert.Equal(t, 0.0, sum(outSelf.GridEnergy))
	assert.Equal(t, 0.0, sum(outSelf.DumpedEnergy))
	assert.Equal(t, 0.0, sum(outSelf.UnmetEnergy))

	assert.Equal(t, 0.0, sum(outGrid.RenewablesUsedDirectly))
	assert.InDelta(t, float64(hoursPerYear), sum(outGrid.GridEnergy), 1e-6)
	assert.InDelta(t, float64(hoursPerYear), sum(outGrid.DumpedEnergy), 1e-6)
	assert.Equal(t, 0.0, sum(outGrid.UnmetEnergy))
}

// Day/night solar with no storage leaves every night hour unserved; backup
// dispatch with a zero allowed blackout fraction must serve all of them.
func TestRunDieselBackup(t *testing.T) {
	scenario := testScenario()
	scenario.DieselMode = config.DieselModeBackup
	scenario.DieselBackupThreshold = 0

	generator := &components.DieselGenerator{ConsumptionPerKWh: 0.4, MinimumLoad: 0.35}
	sim, err := New(scenario, config.Devices{Panel: components.PVPanel{Lifetime: 20}, Generator: generator}, dayNightProfiles(1, 1), 1)
	require.NoError(t, err)

	out, details, err := sim.Run(context.Background(), Sizing{PVSize: 1}, Period{StartYear: 0, EndYear: 1})
	require.NoError(t, err)

	nightHours := hoursPerYear / 2
	assert.InDelta(t, float64(nightHours), sum(out.DieselEnergy), 1e-6)
	assert.Equal(t, 0.0, sum(out.UnmetEnergy))
	assert.Equal(t, 0.0, sum(out.Blackout))
	assert.Equal(t, 1.0, details.DieselCapacity)

	// Each served hour runs the 1 kW generator at full load.
	assert.InDelta(t, float64(nightHours)*0.4, sum(out.DieselFuelUsage), 1e-6)

	// Blackouts were all recovered, so the kerosene baseline is fully
	// displaced.
	assert.Equal(t, 0.0, sum(out.KeroseneUsage))
	assert.InDelta(t, 2*float64(hoursPerYear), sum(out.KeroseneMitigation), 1e-6)
}

// Excess generation is diverted to desalination before being dumped, and the
// tank serves the water demand.
func TestRunWaterPrioritise(t *testing.T) {
	scenario := testScenario()
	scenario.WaterMode = config.WaterModePrioritise

	devices := config.Devices{
		Panel: components.PVPanel{Lifetime: 20},
		Tank: &components.CleanWaterTank{
			Mass:          1000,
			MaxCharge:     1,
			CycleLifetime: 1e6,
		},
		Desalinator: &config.DesalinatorConfig{Name: "ro-unit", KWhPerLitre: 0.01, MaxLitresPerHour: 50},
	}

	set := constantProfiles(1, 0.5)
	set.Water = profiles.Constant(20, hoursPerYear)

	sim, err := New(scenario, devices, set, 1)
	require.NoError(t, err)

	out, _, err := sim.Run(context.Background(), Sizing{PVSize: 4, Tanks: 1}, Period{StartYear: 0, EndYear: 1})
	require.NoError(t, err)
	require.True(t, out.HasWater())

	// Hour zero: 1 kWh of surplus, the desalinator's 50 L/h cap binds, the
	// demand is served out of the fresh production.
	assert.InDelta(t, 0.5, out.DesalinationPower[0], 1e-9)
	assert.InDelta(t, 0.5, out.DumpedEnergy[0], 1e-9)
	assert.InDelta(t, 20.0, out.WaterSupplied[0], 1e-9)
	assert.InDelta(t, 30.0, out.TankStorage[0], 1e-9)

	assert.Equal(t, 0.0, sum(out.UnmetWater))
	assert.Equal(t, 0.0, sum(out.UnmetEnergy))
	assert.InDelta(t, 20*float64(hoursPerYear), sum(out.WaterSupplied), 1e-6)

	// Diverted energy is accounted as used, keeping the hourly balance exact.
	for i := 0; i < out.Hours(); i++ {
		demand := out.LoadEnergy[i] + out.DesalinationPower[i]
		supply := out.RenewablesUsedDirectly[i] + out.GridEnergy[i] + out.StorageSupplied[i] + out.UnmetEnergy[i]
		require.InDelta(t, demand, supply, 1e-6, "hour %d out of balance", i)
	}
}

// A strictly larger system can never serve less of the load.
func TestRunLargerSystemDominates(t *testing.T) {
	sim, err := New(testScenario(), config.Devices{Battery: idealBattery(), Panel: components.PVPanel{Lifetime: 20}}, dayNightProfiles(1, 0.8), 1)
	require.NoError(t, err)

	period := Period{StartYear: 0, EndYear: 1}
	small, _, err := sim.Run(context.Background(), Sizing{PVSize: 1, StorageSize: 3}, period)
	require.NoError(t, err)
	large, _, err := sim.Run(context.Background(), Sizing{PVSize: 3, StorageSize: 10}, period)
	require.NoError(t, err)

	assert.LessOrEqual(t, sum(large.UnmetEnergy), sum(small.UnmetEnergy))
	assert.LessOrEqual(t, sum(large.Blackout), sum(small.Blackout))
	assert.Greater(t, sum(small.UnmetEnergy), 0.0)
}

func TestRunRejectsBadInputs(t *testing.T) {
	sim, err := New(testScenario(), config.Devices{Panel: components.PVPanel{Lifetime: 20}}, constantProfiles(1, 0.5), 1)
	require.NoError(t, err)

	// Storage sized without a battery configured.
	_, _, err = sim.Run(context.Background(), Sizing{PVSize: 2, StorageSize: 5}, Period{StartYear: 0, EndYear: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no battery")

	// Inverted period.
	_, _, err = sim.Run(context.Background(), Sizing{PVSize: 2}, Period{StartYear: 1, EndYear: 1})
	assert.Error(t, err)

	// Profiles shorter than the simulated span.
	_, _, err = sim.Run(context.Background(), Sizing{PVSize: 2}, Period{StartYear: 0, EndYear: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profiles")
}

func TestRunCancelled(t *testing.T) {
	sim, err := New(testScenario(), config.Devices{Panel: components.PVPanel{Lifetime: 20}}, constantProfiles(1, 0.5), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = sim.Run(ctx, Sizing{PVSize: 2}, Period{StartYear: 0, EndYear: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsIncompleteDevices(t *testing.T) {
	set := constantProfiles(1, 0.5)

	diesel := testScenario()
	diesel.DieselMode = config.DieselModeBackup
	_, err := New(diesel, config.Devices{Panel: components.PVPanel{Lifetime: 20}}, set, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator")

	water := testScenario()
	water.WaterMode = config.WaterModePrioritise
	_, err = New(water, config.Devices{Panel: components.PVPanel{Lifetime: 20}}, set, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tank")
}

func TestOutputFrame(t *testing.T) {
	sim, err := New(testScenario(), config.Devices{Battery: idealBattery(), Panel: components.PVPanel{Lifetime: 20}}, constantProfiles(1, 0.5), 1)
	require.NoError(t, err)

	out, _, err := sim.Run(context.Background(), Sizing{PVSize: 2, StorageSize: 5}, Period{StartYear: 0, EndYear: 1})
	require.NoError(t, err)

	frame := out.Frame()
	require.NoError(t, frame.Error())
	assert.Equal(t, hoursPerYear, frame.Nrow())
	assert.Contains(t, frame.Names(), "unmet_energy")
	assert.Contains(t, frame.Names(), "hourly_battery_storage")
	assert.NotContains(t, frame.Names(), "water_demand")

	var buf bytes.Buffer
	require.NoError(t, out.WriteCSV(&buf))
	assert.Contains(t, buf.String(), "unmet_energy")
}
