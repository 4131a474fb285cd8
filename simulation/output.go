package simulation

import (
	"io"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/google/uuid"
)

// Output is the hourly ledger produced by one simulation. Every slice has one
// entry per simulated hour. The water columns are only populated when a
// clean-water mode is active.
type Output struct {
	LoadEnergy             []float64 // kWh demanded by the served sectors
	RenewablesEnergy       []float64 // kWh generated by PV, after distribution losses
	RenewablesUsedDirectly []float64 // kWh of generation consumed without storage
	GridEnergy             []float64 // kWh imported from the national grid
	StorageSupplied        []float64 // kWh discharged from the battery to loads
	DieselEnergy           []float64 // kWh supplied by the backup generator
	DieselFuelUsage        []float64 // litres of fuel burned
	DumpedEnergy           []float64 // kWh of surplus that could not be absorbed
	UnmetEnergy            []float64 // kWh of demand left unserved
	Blackout               []float64 // 1 when any demand is unserved
	BatteryStorage         []float64 // kWh held in the battery at end of hour
	BatteryHealth          []float64 // remaining capacity fraction
	Households             []float64 // community size
	KeroseneUsage          []float64 // baseline usage during blackout hours
	KeroseneMitigation     []float64 // baseline usage displaced in served hours

	WaterDemand       []float64 // litres demanded
	WaterSupplied     []float64 // litres supplied
	UnmetWater        []float64 // litres unserved
	TankStorage       []float64 // litres held at end of hour
	DesalinationPower []float64 // kWh consumed producing clean water
}

func newOutput(hours int, water bool) *Output {
	o := &Output{
		LoadEnergy:             make([]float64, hours),
		RenewablesEnergy:       make([]float64, hours),
		RenewablesUsedDirectly: make([]float64, hours),
		GridEnergy:             make([]float64, hours),
		StorageSupplied:        make([]float64, hours),
		DieselEnergy:           make([]float64, hours),
		DieselFuelUsage:        make([]float64, hours),
		DumpedEnergy:           make([]float64, hours),
		UnmetEnergy:            make([]float64, hours),
		Blackout:               make([]float64, hours),
		BatteryStorage:         make([]float64, hours),
		BatteryHealth:          make([]float64, hours),
		Households:             make([]float64, hours),
		KeroseneUsage:          make([]float64, hours),
		KeroseneMitigation:     make([]float64, hours),
	}
	if water {
		o.WaterDemand = make([]float64, hours)
		o.WaterSupplied = make([]float64, hours)
		o.UnmetWater = make([]float64, hours)
		o.TankStorage = make([]float64, hours)
		o.DesalinationPower = make([]float64, hours)
	}
	return o
}

// Hours returns the number of simulated hours.
func (o *Output) Hours() int {
	return len(o.LoadEnergy)
}

// HasWater reports whether the water ledger was recorded.
func (o *Output) HasWater() bool {
	return o.WaterDemand != nil
}

// Frame returns the hourly ledger as a dataframe, one column per series.
func (o *Output) Frame() dataframe.DataFrame {
	cols := []series.Series{
		series.New(o.LoadEnergy, series.Float, "load_energy"),
		series.New(o.RenewablesEnergy, series.Float, "renewables_energy"),
		series.New(o.RenewablesUsedDirectly, series.Float, "renewables_energy_used_directly"),
		series.New(o.GridEnergy, series.Float, "grid_energy"),
		series.New(o.StorageSupplied, series.Float, "storage_energy_supplied"),
		series.New(o.DieselEnergy, series.Float, "diesel_energy"),
		series.New(o.DieselFuelUsage, series.Float, "diesel_fuel_usage"),
		series.New(o.DumpedEnergy, series.Float, "dumped_energy"),
		series.New(o.UnmetEnergy, series.Float, "unmet_energy"),
		series.New(o.Blackout, series.Float, "blackouts"),
		series.New(o.BatteryStorage, series.Float, "hourly_battery_storage"),
		series.New(o.BatteryHealth, series.Float, "battery_health"),
		series.New(o.Households, series.Float, "households"),
		series.New(o.KeroseneUsage, series.Float, "kerosene_usage"),
		series.New(o.KeroseneMitigation, series.Float, "kerosene_mitigation"),
	}
	if o.HasWater() {
		cols = append(cols,
			series.New(o.WaterDemand, series.Float, "water_demand"),
			series.New(o.WaterSupplied, series.Float, "water_supplied"),
			series.New(o.UnmetWater, series.Float, "unmet_water"),
			series.New(o.TankStorage, series.Float, "hourly_tank_storage"),
			series.New(o.DesalinationPower, series.Float, "desalination_power"),
		)
	}
	return dataframe.New(cols...)
}

// WriteCSV writes the hourly ledger as CSV.
func (o *Output) WriteCSV(w io.Writer) error {
	return o.Frame().WriteCSV(w)
}

// SystemDetails summarises the system that one simulation modelled. It is
// produced once per simulation and feeds the next sequential period's
// appraisal as the previous-system context.
type SystemDetails struct {
	ID uuid.UUID

	InitialPVSize      float64 // kWp at installation
	FinalPVSize        float64 // kWp equivalent after degradation
	InitialStorageSize float64 // kWh at installation
	FinalStorageSize   float64 // kWh usable after degradation
	Tanks              int
	DieselCapacity     float64 // kW, derived from the dispatch results

	StartYear int
	EndYear   int
}
