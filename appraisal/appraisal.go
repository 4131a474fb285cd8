// Package appraisal converts raw simulation output into cost, emissions and
// technical summary metrics, and chains cumulative totals across sequential
// deployment periods.
package appraisal

import (
	"fmt"
	"math"

	"github.com/cepro/minigridsim/config"
	"github.com/cepro/minigridsim/simulation"
)

const daysPerYear = 365

// TechnicalAppraisal summarises the energy flows of one simulated period.
type TechnicalAppraisal struct {
	BlackoutFraction     float64
	UnmetEnergy          float64 // kWh
	UnmetEnergyFraction  float64
	RenewablesEnergy     float64 // kWh used directly
	StorageEnergy        float64 // kWh
	GridEnergy           float64 // kWh
	DieselEnergy         float64 // kWh
	DieselFuelUsage      float64 // litres
	TotalEnergy          float64 // kWh delivered to loads
	DiscountedEnergy     float64 // kWh, daily discount decay applied
	KeroseneDisplacement float64 // fraction of baseline usage displaced
}

// FinancialAppraisal summarises the costs incurred over one period.
type FinancialAppraisal struct {
	NewEquipmentCost float64
	OMCost           float64
	GridCost         float64
	DieselFuelCost   float64
	KeroseneCost     float64
	TotalSystemCost  float64 // system components only
	TotalCost        float64 // including household kerosene expenditure
}

// EnvironmentalAppraisal summarises the emissions of one period, in kgCO2eq.
type EnvironmentalAppraisal struct {
	NewEquipmentGHGs float64
	OMGHGs           float64
	GridGHGs         float64
	DieselGHGs       float64
	KeroseneGHGs     float64
	TotalSystemGHGs  float64
	TotalGHGs        float64
}

// CumulativeResults is the running lifetime tally across sequential periods.
// Each period's appraisal absorbs the previous period's cumulative totals.
type CumulativeResults struct {
	Cost             float64
	SystemCost       float64
	GHGs             float64
	SystemGHGs       float64
	Energy           float64
	DiscountedEnergy float64
}

// SystemAppraisal is the full appraisal of one simulated system.
type SystemAppraisal struct {
	System        simulation.SystemDetails
	Technical     TechnicalAppraisal
	Financial     FinancialAppraisal
	Environmental EnvironmentalAppraisal
	Cumulative    CumulativeResults
	Criteria      map[Criterion]float64
}

// Appraiser is a pure function object: it holds only read-only coefficient
// tables, so independent sizings may be appraised concurrently.
type Appraiser struct {
	finance config.Finance
	impacts config.ImpactTables
}

// NewAppraiser constructs an Appraiser, checking that the impact tables cover
// every component the appraisal prices.
func NewAppraiser(finance config.Finance, impacts config.ImpactTables) (*Appraiser, error) {
	for _, tag := range []string{config.ImpactPV, config.ImpactStorage, config.ImpactDiesel, config.ImpactGrid, config.ImpactKerosene} {
		if _, err := impacts.Get(tag); err != nil {
			return nil, fmt.Errorf("incomplete impact tables: %w", err)
		}
	}
	return &Appraiser{finance: finance, impacts: impacts}, nil
}

// Appraise converts one simulation's output into a SystemAppraisal, merging
// the previous period's cumulative totals when one is given.
func (a *Appraiser) Appraise(out *simulation.Output, details simulation.SystemDetails, previous *SystemAppraisal) (SystemAppraisal, error) {
	technical := a.appraiseTechnical(out, details)

	sizes := a.addedSizes(details, previous)
	financial, err := a.appraiseFinancial(out, details, sizes, technical)
	if err != nil {
		return SystemAppraisal{}, fmt.Errorf("financial appraisal: %w", err)
	}
	environmental, err := a.appraiseEnvironmental(out, details, sizes, technical)
	if err != nil {
		return SystemAppraisal{}, fmt.Errorf("environmental appraisal: %w", err)
	}

	cumulative := CumulativeResults{
		Cost:             financial.TotalCost,
		SystemCost:       financial.TotalSystemCost,
		GHGs:             environmental.TotalGHGs,
		SystemGHGs:       environmental.TotalSystemGHGs,
		Energy:           technical.TotalEnergy,
		DiscountedEnergy: technical.DiscountedEnergy,
	}
	if previous != nil {
		cumulative.Cost += previous.Cumulative.Cost
		cumulative.SystemCost += previous.Cumulative.SystemCost
		cumulative.GHGs += previous.Cumulative.GHGs
		cumulative.SystemGHGs += previous.Cumulative.SystemGHGs
		cumulative.Energy += previous.Cumulative.Energy
		cumulative.DiscountedEnergy += previous.Cumulative.DiscountedEnergy
	}

	appraisal := SystemAppraisal{
		System:        details,
		Technical:     roundTechnical(technical),
		Financial:     roundFinancial(financial),
		Environmental: roundEnvironmental(environmental),
		Cumulative:    roundCumulative(cumulative),
	}
	appraisal.Criteria = criteriaFor(appraisal, cumulative, technical)
	return appraisal, nil
}

// criteriaFor derives the composite criterion values. Ratios are computed
// from the unrounded cumulative totals, then rounded like everything else.
func criteriaFor(appraisal SystemAppraisal, cumulative CumulativeResults, technical TechnicalAppraisal) map[Criterion]float64 {
	lcue := 0.0
	if cumulative.DiscountedEnergy > 0 {
		lcue = cumulative.SystemCost / cumulative.DiscountedEnergy
	}
	intensity := 0.0
	if cumulative.Energy > 0 {
		intensity = 1000 * cumulative.SystemGHGs / cumulative.Energy
	}
	return map[Criterion]float64{
		CriterionBlackoutFraction:     round3(technical.BlackoutFraction),
		CriterionLCUE:                 round3(lcue),
		CriterionEmissionsIntensity:   round3(intensity),
		CriterionCumulativeCost:       round3(cumulative.Cost),
		CriterionCumulativeSystemCost: round3(cumulative.SystemCost),
		CriterionCumulativeGHGs:       round3(cumulative.GHGs),
		CriterionUnmetEnergyFraction:  round3(technical.UnmetEnergyFraction),
		CriterionKeroseneDisplacement: round3(technical.KeroseneDisplacement),
	}
}

func (a *Appraiser) appraiseTechnical(out *simulation.Output, details simulation.SystemDetails) TechnicalAppraisal {
	var t TechnicalAppraisal
	hours := out.Hours()
	load := 0.0
	for i := 0; i < hours; i++ {
		t.BlackoutFraction += out.Blackout[i]
		t.UnmetEnergy += out.UnmetEnergy[i]
		t.RenewablesEnergy += out.RenewablesUsedDirectly[i]
		t.StorageEnergy += out.StorageSupplied[i]
		t.GridEnergy += out.GridEnergy[i]
		t.DieselEnergy += out.DieselEnergy[i]
		t.DieselFuelUsage += out.DieselFuelUsage[i]
		load += out.LoadEnergy[i]
	}
	if hours > 0 {
		t.BlackoutFraction /= float64(hours)
	}
	t.TotalEnergy = t.RenewablesEnergy + t.StorageEnergy + t.GridEnergy + t.DieselEnergy
	if demand := load; demand > 0 {
		t.UnmetEnergyFraction = t.UnmetEnergy / demand
	}
	t.DiscountedEnergy = a.discountedEnergy(out, details.StartYear)

	usage, mitigation := 0.0, 0.0
	for i := 0; i < hours; i++ {
		usage += out.KeroseneUsage[i]
		mitigation += out.KeroseneMitigation[i]
	}
	if usage+mitigation > 0 {
		t.KeroseneDisplacement = mitigation / (usage + mitigation)
	}
	return t
}

// discountedEnergy aggregates delivered energy to daily resolution and applies
// a daily discount-rate decay, anchored at year zero of the whole run so that
// sequential periods chain consistently.
func (a *Appraiser) discountedEnergy(out *simulation.Output, startYear int) float64 {
	hours := out.Hours()
	total := 0.0
	for day := 0; day*24 < hours; day++ {
		dayEnergy := 0.0
		for h := day * 24; h < (day+1)*24 && h < hours; h++ {
			dayEnergy += out.RenewablesUsedDirectly[h] + out.StorageSupplied[h] + out.GridEnergy[h] + out.DieselEnergy[h]
		}
		absoluteDay := float64(startYear*daysPerYear + day)
		factor := math.Pow(1+a.finance.DiscountRate, -absoluteDay/daysPerYear)
		total += dayEnergy * factor
	}
	return total
}

// addedSizes holds the capacity installed at the start of this period, over
// and above what the previous system already provided.
type addedSizes struct {
	pv      float64
	storage float64
	tanks   float64
	diesel  float64
}

func (a *Appraiser) addedSizes(details simulation.SystemDetails, previous *SystemAppraisal) addedSizes {
	sizes := addedSizes{
		pv:      details.InitialPVSize,
		storage: details.InitialStorageSize,
		tanks:   float64(details.Tanks),
		diesel:  details.DieselCapacity,
	}
	if previous != nil {
		sizes.pv = clampPositive(details.InitialPVSize - previous.System.FinalPVSize)
		sizes.storage = clampPositive(details.InitialStorageSize - previous.System.FinalStorageSize)
		sizes.tanks = clampPositive(float64(details.Tanks - previous.System.Tanks))
		sizes.diesel = clampPositive(details.DieselCapacity - previous.System.DieselCapacity)
	}
	return sizes
}

// componentCost prices newly installed capacity of one component: unit cost
// decayed by the annual decrease to the installation year, plus installation.
func componentCost(impact config.Impact, size float64, installYear int) float64 {
	if size <= 0 {
		return 0
	}
	unit := impact.Cost * math.Pow(1-impact.CostDecrease, float64(installYear))
	return size*unit + size*impact.InstallationCost
}

func componentGHGs(impact config.Impact, size float64, installYear int) float64 {
	if size <= 0 {
		return 0
	}
	unit := impact.GHGs * math.Pow(1-impact.GHGDecrease, float64(installYear))
	return size*unit + size*impact.InstallationGHGs
}

func (a *Appraiser) appraiseFinancial(out *simulation.Output, details simulation.SystemDetails, sizes addedSizes, technical TechnicalAppraisal) (FinancialAppraisal, error) {
	var f FinancialAppraisal
	years := float64(details.EndYear - details.StartYear)
	installYear := details.StartYear

	for _, c := range []struct {
		tag  string
		size float64
	}{
		{config.ImpactPV, sizes.pv},
		{config.ImpactStorage, sizes.storage},
		{config.ImpactTank, sizes.tanks},
		{config.ImpactDiesel, sizes.diesel},
	} {
		impact, err := a.impacts.Get(c.tag)
		if err != nil {
			if c.tag == config.ImpactTank && c.size == 0 {
				continue // water scenario disabled, no tank table required
			}
			return FinancialAppraisal{}, err
		}
		f.NewEquipmentCost += componentCost(impact, c.size, installYear)
		f.OMCost += c.size * impact.OM * years
	}
	// O&M also accrues on capacity carried over from previous periods.
	f.OMCost += omCarriedOver(a.impacts, details, sizes, years)

	f.GridCost = technical.GridEnergy * a.finance.GridCostPerKWh
	f.DieselFuelCost = technical.DieselFuelUsage * a.finance.DieselFuelCost
	keroseneUsage := 0.0
	for i := 0; i < out.Hours(); i++ {
		keroseneUsage += out.KeroseneUsage[i]
	}
	f.KeroseneCost = keroseneUsage * a.finance.KeroseneCost

	f.TotalSystemCost = f.NewEquipmentCost + f.OMCost + f.GridCost + f.DieselFuelCost
	f.TotalCost = f.TotalSystemCost + f.KeroseneCost
	return f, nil
}

func (a *Appraiser) appraiseEnvironmental(out *simulation.Output, details simulation.SystemDetails, sizes addedSizes, technical TechnicalAppraisal) (EnvironmentalAppraisal, error) {
	var e EnvironmentalAppraisal
	years := float64(details.EndYear - details.StartYear)
	installYear := details.StartYear

	for _, c := range []struct {
		tag  string
		size float64
	}{
		{config.ImpactPV, sizes.pv},
		{config.ImpactStorage, sizes.storage},
		{config.ImpactTank, sizes.tanks},
		{config.ImpactDiesel, sizes.diesel},
	} {
		impact, err := a.impacts.Get(c.tag)
		if err != nil {
			if c.tag == config.ImpactTank && c.size == 0 {
				continue
			}
			return EnvironmentalAppraisal{}, err
		}
		e.NewEquipmentGHGs += componentGHGs(impact, c.size, installYear)
		e.OMGHGs += c.size * impact.OMGHGs * years
	}

	gridImpact, err := a.impacts.Get(config.ImpactGrid)
	if err != nil {
		return EnvironmentalAppraisal{}, err
	}
	e.GridGHGs = technical.GridEnergy * gridImpact.GHGs

	dieselImpact, err := a.impacts.Get(config.ImpactDiesel)
	if err != nil {
		return EnvironmentalAppraisal{}, err
	}
	// Operational diesel emissions scale with fuel burned, using the tag's
	// OMGHGs coefficient as kgCO2eq per litre.
	e.DieselGHGs = technical.DieselFuelUsage * dieselImpact.OMGHGs

	keroseneImpact, err := a.impacts.Get(config.ImpactKerosene)
	if err != nil {
		return EnvironmentalAppraisal{}, err
	}
	keroseneUsage := 0.0
	for i := 0; i < out.Hours(); i++ {
		keroseneUsage += out.KeroseneUsage[i]
	}
	e.KeroseneGHGs = keroseneUsage * keroseneImpact.GHGs

	e.TotalSystemGHGs = e.NewEquipmentGHGs + e.OMGHGs + e.GridGHGs + e.DieselGHGs
	e.TotalGHGs = e.TotalSystemGHGs + e.KeroseneGHGs
	return e, nil
}

// omCarriedOver accrues O&M on the capacity inherited from previous periods,
// which addedSizes excludes.
func omCarriedOver(impacts config.ImpactTables, details simulation.SystemDetails, sizes addedSizes, years float64) float64 {
	total := 0.0
	carried := []struct {
		tag  string
		size float64
	}{
		{config.ImpactPV, details.InitialPVSize - sizes.pv},
		{config.ImpactStorage, details.InitialStorageSize - sizes.storage},
		{config.ImpactTank, float64(details.Tanks) - sizes.tanks},
		{config.ImpactDiesel, details.DieselCapacity - sizes.diesel},
	}
	for _, c := range carried {
		if c.size <= 0 {
			continue
		}
		impact, err := impacts.Get(c.tag)
		if err != nil {
			continue
		}
		total += c.size * impact.OM * years
	}
	return total
}

func clampPositive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// round3 rounds to 3 decimal places; applied to every appraisal field at the
// boundary.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func roundTechnical(t TechnicalAppraisal) TechnicalAppraisal {
	t.BlackoutFraction = round3(t.BlackoutFraction)
	t.UnmetEnergy = round3(t.UnmetEnergy)
	t.UnmetEnergyFraction = round3(t.UnmetEnergyFraction)
	t.RenewablesEnergy = round3(t.RenewablesEnergy)
	t.StorageEnergy = round3(t.StorageEnergy)
	t.GridEnergy = round3(t.GridEnergy)
	t.DieselEnergy = round3(t.DieselEnergy)
	t.DieselFuelUsage = round3(t.DieselFuelUsage)
	t.TotalEnergy = round3(t.TotalEnergy)
	t.DiscountedEnergy = round3(t.DiscountedEnergy)
	t.KeroseneDisplacement = round3(t.KeroseneDisplacement)
	return t
}

func roundFinancial(f FinancialAppraisal) FinancialAppraisal {
	f.NewEquipmentCost = round3(f.NewEquipmentCost)
	f.OMCost = round3(f.OMCost)
	f.GridCost = round3(f.GridCost)
	f.DieselFuelCost = round3(f.DieselFuelCost)
	f.KeroseneCost = round3(f.KeroseneCost)
	f.TotalSystemCost = round3(f.TotalSystemCost)
	f.TotalCost = round3(f.TotalCost)
	return f
}

func roundEnvironmental(e EnvironmentalAppraisal) EnvironmentalAppraisal {
	e.NewEquipmentGHGs = round3(e.NewEquipmentGHGs)
	e.OMGHGs = round3(e.OMGHGs)
	e.GridGHGs = round3(e.GridGHGs)
	e.DieselGHGs = round3(e.DieselGHGs)
	e.KeroseneGHGs = round3(e.KeroseneGHGs)
	e.TotalSystemGHGs = round3(e.TotalSystemGHGs)
	e.TotalGHGs = round3(e.TotalGHGs)
	return e
}

func roundCumulative(c CumulativeResults) CumulativeResults {
	c.Cost = round3(c.Cost)
	c.SystemCost = round3(c.SystemCost)
	c.GHGs = round3(c.GHGs)
	c.SystemGHGs = round3(c.SystemGHGs)
	c.Energy = round3(c.Energy)
	c.DiscountedEnergy = round3(c.DiscountedEnergy)
	return c
}
