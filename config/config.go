package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cepro/minigridsim/components"
	"github.com/cepro/minigridsim/profiles"
)

// DieselMode selects how the backup generator is dispatched.
type DieselMode string

const (
	DieselModeDisabled      DieselMode = "disabled"
	DieselModeBackup        DieselMode = "backup"
	DieselModeCycleCharging DieselMode = "cycleCharging" // accepted but not implemented; yields zero contribution
)

// WaterMode selects how the clean-water subsystem is operated.
type WaterMode string

const (
	WaterModeDisabled   WaterMode = "disabled"
	WaterModePrioritise WaterMode = "prioritise" // divert excess electricity to desalination
	WaterModeBackup     WaterMode = "backup"     // additionally draw grid electricity for unmet water
)

// NetworkType selects the distribution network, which determines the
// conversion losses applied to generated energy.
type NetworkType string

const (
	NetworkAC NetworkType = "ac"
	NetworkDC NetworkType = "dc"
)

// Scenario holds the operating policy flags for a simulation run.
type Scenario struct {
	DomesticDemand   bool `yaml:"domesticDemand"`
	CommercialDemand bool `yaml:"commercialDemand"`
	PublicDemand     bool `yaml:"publicDemand"`

	Network                  NetworkType `yaml:"network"`
	TransmissionEfficiency   float64     `yaml:"transmissionEfficiency"`
	ConversionEfficiencyAC   float64     `yaml:"conversionEfficiencyAC"`
	ConversionEfficiencyDC   float64     `yaml:"conversionEfficiencyDC"`
	PrioritiseSelfGeneration bool        `yaml:"prioritiseSelfGeneration"`

	GridAvailable bool `yaml:"gridAvailable"`

	DieselMode            DieselMode `yaml:"dieselMode"`
	DieselBackupThreshold float64    `yaml:"dieselBackupThreshold"` // allowed blackout fraction after backup

	WaterMode WaterMode `yaml:"waterMode"`

	CommunitySize       int     `yaml:"communitySize"`       // initial number of households
	CommunityGrowthRate float64 `yaml:"communityGrowthRate"` // annual compound growth
}

// Sectors returns the demand sectors served under this scenario.
func (s Scenario) Sectors() []profiles.Sector {
	var sectors []profiles.Sector
	if s.DomesticDemand {
		sectors = append(sectors, profiles.SectorDomestic)
	}
	if s.CommercialDemand {
		sectors = append(sectors, profiles.SectorCommercial)
	}
	if s.PublicDemand {
		sectors = append(sectors, profiles.SectorPublic)
	}
	return sectors
}

// DistributionEfficiency returns the combined transmission and conversion
// efficiency applied to generated energy before it reaches loads.
func (s Scenario) DistributionEfficiency() float64 {
	conversion := s.ConversionEfficiencyAC
	if s.Network == NetworkDC {
		conversion = s.ConversionEfficiencyDC
	}
	return s.TransmissionEfficiency * conversion
}

// Validate checks the scenario flags for consistency.
func (s Scenario) Validate() error {
	if len(s.Sectors()) == 0 {
		return fmt.Errorf("scenario serves no demand sectors")
	}
	switch s.Network {
	case NetworkAC, NetworkDC:
	default:
		return fmt.Errorf("unknown network type %q", s.Network)
	}
	switch s.DieselMode {
	case DieselModeDisabled, DieselModeBackup, DieselModeCycleCharging:
	default:
		return fmt.Errorf("unknown diesel mode %q", s.DieselMode)
	}
	switch s.WaterMode {
	case WaterModeDisabled, WaterModePrioritise, WaterModeBackup:
	default:
		return fmt.Errorf("unknown water mode %q", s.WaterMode)
	}
	if s.DieselBackupThreshold < 0 || s.DieselBackupThreshold > 1 {
		return fmt.Errorf("diesel backup threshold must be in [0, 1]: %f", s.DieselBackupThreshold)
	}
	if s.CommunitySize <= 0 {
		return fmt.Errorf("community size must be positive: %d", s.CommunitySize)
	}
	return nil
}

// Finance holds the inputs to the financial appraisal that are not
// per-component coefficients.
type Finance struct {
	DiscountRate     float64 `yaml:"discountRate"`     // annual
	GridCostPerKWh   float64 `yaml:"gridCostPerKWh"`   // cost of imported grid energy
	DieselFuelCost   float64 `yaml:"dieselFuelCost"`   // cost per litre
	KeroseneCost     float64 `yaml:"keroseneCost"`     // cost per unit of baseline usage
	DieselCapacityIncrement float64 `yaml:"dieselCapacityIncrement"` // generator sizes are rounded up to this, kW
}

// Devices bundles the component parameter records used by the simulator.
// Optional components are nil when the scenario does not need them.
type Devices struct {
	Battery   *components.Battery         `yaml:"battery"`
	Panel     components.PVPanel          `yaml:"panel"`
	Tank      *components.CleanWaterTank  `yaml:"tank"`
	Generator *components.DieselGenerator `yaml:"generator"`

	// Desalinator describes the electricity-to-clean-water converter used when
	// a water mode is active.
	Desalinator *DesalinatorConfig `yaml:"desalinator"`
}

// DesalinatorConfig is the file-level description of the desalination
// converter; it is resolved into a components.Converter at load time.
type DesalinatorConfig struct {
	Name             string  `yaml:"name"`
	KWhPerLitre      float64 `yaml:"kWhPerLitre"`
	MaxLitresPerHour float64 `yaml:"maxLitresPerHour"`
}

// Converter resolves the configuration into a validated converter variant.
func (d DesalinatorConfig) Converter() (components.Converter, error) {
	return components.NewConverter(
		d.Name,
		map[components.Resource]float64{components.ResourceElectricity: d.KWhPerLitre},
		components.ResourceCleanWater,
		d.MaxLitresPerHour,
	)
}

// Config is the top level input file.
type Config struct {
	Scenario     Scenario               `yaml:"scenario"`
	Finance      Finance                `yaml:"finance"`
	Devices      Devices                `yaml:"devices"`
	Optimisation Optimisation           `yaml:"optimisation"`
	Impacts      map[string]interface{} `yaml:"impacts"` // decoded separately, see ImpactTables
}

// Read loads and validates a Config from a YAML file.
func Read(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(content)
}

// Parse decodes and validates a Config from YAML bytes.
func Parse(content []byte) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := config.Scenario.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate scenario: %w", err)
	}
	if err := config.Optimisation.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate optimisation parameters: %w", err)
	}
	if config.Devices.Battery != nil {
		if err := config.Devices.Battery.Validate(); err != nil {
			return Config{}, fmt.Errorf("validate battery: %w", err)
		}
	}
	return config, nil
}
