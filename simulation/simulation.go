package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cepro/minigridsim/components"
	"github.com/cepro/minigridsim/config"
	"github.com/cepro/minigridsim/diesel"
	"github.com/cepro/minigridsim/profiles"
)

// Simulator runs deterministic hourly energy-balance simulations of the
// minigrid for candidate sizings. The profiles and component records are
// read-only; every call to Run is independent, so simulations for different
// sizings may run concurrently.
type Simulator struct {
	scenario  config.Scenario
	profiles  *profiles.Set
	totalLoad profiles.Profile

	battery     *components.Battery
	panel       components.PVPanel
	tank        *components.CleanWaterTank
	generator   *components.DieselGenerator
	desalinator *components.Converter

	dieselIncrement float64

	logger *slog.Logger
}

// New validates the configuration against the scenario and constructs a
// Simulator. Missing required components fail here, before any hour is
// simulated.
func New(scenario config.Scenario, devices config.Devices, set *profiles.Set, dieselIncrement float64) (*Simulator, error) {
	totalLoad, err := set.TotalLoad(scenario.Sectors())
	if err != nil {
		return nil, fmt.Errorf("resolve load profile: %w", err)
	}

	s := &Simulator{
		scenario:        scenario,
		profiles:        set,
		totalLoad:       totalLoad,
		battery:         devices.Battery,
		panel:           devices.Panel,
		tank:            devices.Tank,
		generator:       devices.Generator,
		dieselIncrement: dieselIncrement,
		logger:          slog.Default(),
	}

	if scenario.WaterMode != config.WaterModeDisabled {
		if devices.Tank == nil {
			return nil, fmt.Errorf("water mode %q requested but no clean-water tank configured", scenario.WaterMode)
		}
		if devices.Desalinator == nil {
			return nil, fmt.Errorf("water mode %q requested but no desalinator configured", scenario.WaterMode)
		}
		converter, err := devices.Desalinator.Converter()
		if err != nil {
			return nil, fmt.Errorf("resolve desalinator: %w", err)
		}
		if converter.Produces != components.ResourceCleanWater {
			return nil, fmt.Errorf("desalinator %q produces %q, want clean water", converter.Name, converter.Produces)
		}
		s.desalinator = &converter
	}
	if scenario.DieselMode == config.DieselModeBackup && devices.Generator == nil {
		return nil, fmt.Errorf("diesel backup requested but no generator configured")
	}

	return s, nil
}

// Run simulates the given sizing over the given period and returns the hourly
// ledger and a summary of the system modelled. The computation is
// deterministic: identical inputs yield identical output.
func (s *Simulator) Run(ctx context.Context, sizing Sizing, period Period) (*Output, SystemDetails, error) {
	if err := period.Validate(); err != nil {
		return nil, SystemDetails{}, fmt.Errorf("validate period: %w", err)
	}
	if err := s.profiles.Validate(period.EndYear); err != nil {
		return nil, SystemDetails{}, fmt.Errorf("validate profiles: %w", err)
	}
	if sizing.StorageSize > 0 && s.battery == nil {
		return nil, SystemDetails{}, fmt.Errorf("sizing includes %.1f kWh of storage but no battery is configured", sizing.StorageSize)
	}

	hours := period.Hours()
	offset := period.Offset()
	waterActive := s.scenario.WaterMode != config.WaterModeDisabled
	out := newOutput(hours, waterActive)

	var battery *batteryState
	if sizing.StorageSize > 0 {
		battery = newBatteryState(*s.battery, sizing.StorageSize)
	}
	var tank *tankState
	if waterActive {
		tank = newTankState(*s.tank, sizing.Tanks)
	}

	distEfficiency := s.scenario.DistributionEfficiency()
	kWhPerLitre := 0.0
	if s.desalinator != nil {
		kWhPerLitre, _ = s.desalinator.InputRate(components.ResourceElectricity)
	}

	for t := 0; t < hours; t++ {
		// Cooperative cancellation, checked once per simulated year.
		if t%hoursPerYear == 0 {
			select {
			case <-ctx.Done():
				return nil, SystemDetails{}, ctx.Err()
			default:
			}
		}

		profileHour := offset + t
		load := s.totalLoad.Value(profileHour)
		renewables := sizing.PVSize * s.profiles.Solar.Value(profileHour) * s.panel.DegradationFactor(t) * distEfficiency
		gridStatus := 0.0
		if s.scenario.GridAvailable {
			gridStatus = s.profiles.GridAvailability.Value(profileHour)
		}

		// Apportion the load between self generation and the grid. Whichever
		// is drawn from first, the residual flow is routed to the battery.
		var used, grid, net float64
		if s.scenario.PrioritiseSelfGeneration {
			used = minF(renewables, load)
			surplus := renewables - used
			shortfall := load - used
			grid = shortfall * gridStatus
			net = surplus - (shortfall - grid)
		} else {
			grid = load * gridStatus
			residual := load - grid
			used = minF(renewables, residual)
			net = renewables - residual
		}

		// The battery deficit is not tracked separately: unserved demand falls
		// out of the conservation identity below as unmet energy.
		var supplied, dumped float64
		if battery != nil {
			supplied, dumped, _ = battery.step(net)
			out.BatteryStorage[t] = battery.level
			out.BatteryHealth[t] = battery.health()
		} else if net > 0 {
			// Zero-storage shortcut: every surplus is dumped, every shortfall
			// is a deficit.
			dumped = net
			out.BatteryHealth[t] = 1
		} else {
			out.BatteryHealth[t] = 1
		}

		// Clean-water ledger for the same hour.
		var desalPower float64
		if waterActive {
			tank.leak()
			demand := s.profiles.Water.Value(profileHour)

			// Excess electricity is diverted to desalination before being
			// recorded as dumped.
			produceCap := minF(s.desalinator.MaxOutput, tank.space())
			produce := produceCap
			if kWhPerLitre > 0 {
				if byEnergy := dumped / kWhPerLitre; byEnergy < produce {
					produce = byEnergy
				}
			}
			if produce > 0 {
				energy := produce * kWhPerLitre
				tank.fill(produce)
				dumped -= energy
				used += energy
				desalPower += energy
			}

			waterSupplied := tank.draw(demand)
			unmetWater := demand - waterSupplied

			// Backup mode draws grid electricity to serve remaining demand
			// directly, bypassing the tank.
			if s.scenario.WaterMode == config.WaterModeBackup && unmetWater > 0 && gridStatus > 0 {
				backup := minF(unmetWater, s.desalinator.MaxOutput-produce)
				if backup > 0 {
					energy := backup * kWhPerLitre
					grid += energy
					desalPower += energy
					waterSupplied += backup
					unmetWater -= backup
				}
			}

			out.WaterDemand[t] = demand
			out.WaterSupplied[t] = waterSupplied
			out.UnmetWater[t] = unmetWater
			out.TankStorage[t] = tank.level
			out.DesalinationPower[t] = desalPower
		}

		unmet := load + desalPower - used - grid - supplied
		if unmet < 1e-9 {
			unmet = 0
		}

		out.LoadEnergy[t] = load
		out.RenewablesEnergy[t] = renewables
		out.RenewablesUsedDirectly[t] = used
		out.GridEnergy[t] = grid
		out.StorageSupplied[t] = supplied
		out.DumpedEnergy[t] = dumped
		out.UnmetEnergy[t] = unmet
		if unmet > 0 {
			out.Blackout[t] = 1
		}
		out.Households[t] = float64(components.Households(s.scenario.CommunitySize, s.scenario.CommunityGrowthRate, profileHour))
	}

	dieselCapacity := s.applyDiesel(out)

	for t := 0; t < hours; t++ {
		baseline := s.profiles.Kerosene.Value(offset + t)
		out.KeroseneUsage[t] = out.Blackout[t] * baseline
		out.KeroseneMitigation[t] = (1 - out.Blackout[t]) * baseline
	}

	details := SystemDetails{
		ID:                 uuid.New(),
		InitialPVSize:      sizing.PVSize,
		FinalPVSize:        sizing.PVSize * s.panel.DegradationFactor(hours),
		InitialStorageSize: sizing.StorageSize,
		FinalStorageSize:   sizing.StorageSize,
		Tanks:              sizing.Tanks,
		DieselCapacity:     dieselCapacity,
		StartYear:          period.StartYear,
		EndYear:            period.EndYear,
	}
	if battery != nil {
		details.FinalStorageSize = sizing.StorageSize * battery.health()
	}

	return out, details, nil
}

// applyDiesel post-processes the unmet-energy series with the backup dispatch
// policy, subtracting the generator's contribution and recomputing blackouts.
// It returns the derived generator capacity.
func (s *Simulator) applyDiesel(out *Output) float64 {
	switch s.scenario.DieselMode {
	case config.DieselModeDisabled:
		return 0
	case config.DieselModeBackup:
	default:
		s.logger.Warn(
			"Unsupported diesel mode, assuming zero diesel contribution",
			"diesel_mode", string(s.scenario.DieselMode),
		)
		return 0
	}

	threshold := diesel.FindThreshold(out.UnmetEnergy, out.Blackout, s.scenario.DieselBackupThreshold)
	energy, on := diesel.Dispatch(out.UnmetEnergy, threshold)
	capacity := diesel.Capacity(energy, s.dieselIncrement)

	for t := range energy {
		out.DieselEnergy[t] = energy[t]
		out.DieselFuelUsage[t] = 0
		if on[t] > 0 {
			out.DieselFuelUsage[t] = s.generator.FuelUsage(energy[t], capacity)
		}
		out.UnmetEnergy[t] -= energy[t]
		if out.UnmetEnergy[t] < 1e-9 {
			out.UnmetEnergy[t] = 0
		}
		out.Blackout[t] = 0
		if out.UnmetEnergy[t] > 0 {
			out.Blackout[t] = 1
		}
	}
	return capacity
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
