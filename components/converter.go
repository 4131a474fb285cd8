package components

import (
	"errors"
	"fmt"
)

// Resource identifies a resource type that a converter can consume or produce.
type Resource string

const (
	ResourceElectricity Resource = "electricity"
	ResourceCleanWater  Resource = "cleanWater"
	ResourceHotWater    Resource = "hotWater"
)

// ErrIncompatibleConverters is returned when two converters with different
// output resources are compared.
var ErrIncompatibleConverters = errors.New("converters produce different resources")

// Converter is a closed variant describing a device that turns one or more
// input resources into a single output resource - e.g. a desalination plant
// consuming electricity and producing clean water. The capability set is
// resolved at construction time; there is no subtyping.
type Converter struct {
	Name      string
	Consumes  map[Resource]float64 // input units required per unit of output
	Produces  Resource
	MaxOutput float64 // maximum output per hour, in the produced resource's unit
}

// NewConverter validates and constructs a Converter.
func NewConverter(name string, consumes map[Resource]float64, produces Resource, maxOutput float64) (Converter, error) {
	if name == "" {
		return Converter{}, fmt.Errorf("converter must be named")
	}
	if len(consumes) == 0 {
		return Converter{}, fmt.Errorf("converter %q consumes no resources", name)
	}
	if maxOutput <= 0 {
		return Converter{}, fmt.Errorf("converter %q max output must be positive: %f", name, maxOutput)
	}
	for resource, rate := range consumes {
		if resource == produces {
			return Converter{}, fmt.Errorf("converter %q consumes its own output resource %q", name, produces)
		}
		if rate <= 0 {
			return Converter{}, fmt.Errorf("converter %q consumption rate for %q must be positive: %f", name, resource, rate)
		}
	}
	// Defensive copy so callers cannot mutate the capability set afterwards.
	consumesCopy := make(map[Resource]float64, len(consumes))
	for resource, rate := range consumes {
		consumesCopy[resource] = rate
	}
	return Converter{
		Name:      name,
		Consumes:  consumesCopy,
		Produces:  produces,
		MaxOutput: maxOutput,
	}, nil
}

// InputRate returns the units of the given input resource needed per unit of
// output, and whether the converter consumes that resource at all.
func (c Converter) InputRate(resource Resource) (float64, bool) {
	rate, ok := c.Consumes[resource]
	return rate, ok
}

// Less orders two converters by maximum output. Converters that produce
// different resources are not comparable and ordering them is a precondition
// violation.
func (c Converter) Less(other Converter) (bool, error) {
	if c.Produces != other.Produces {
		return false, fmt.Errorf("compare converter %q (%s) with %q (%s): %w",
			c.Name, c.Produces, other.Name, other.Produces, ErrIncompatibleConverters)
	}
	return c.MaxOutput < other.MaxOutput, nil
}
