// Package main provides CMA-ES tuning of species densities toward a target
// movement rate.
package main

import (
	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/field"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the density parameters, bounded by the optimize
// section and starting from the configured table.
func NewParamVector(cfg *config.Config) *ParamVector {
	o := cfg.Optimize
	rho := cfg.Derived.Densities
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "air_density", Path: "densities.' '", Min: o.AirMin, Max: o.AirMax, Default: rho[field.Empty]},
			{Name: "fluid_density", Path: "densities.'.'", Min: o.FluidMin, Max: o.FluidMax, Default: rho[field.Fluid]},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values, clamped into bounds.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return pv.Clamp(v)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		if spec.Max == spec.Min {
			continue
		}
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes the clamped densities into cfg. Other species keep
// their configured density.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	rho := cfg.Derived.Densities
	rho[field.Empty] = clamped[0]
	rho[field.Fluid] = clamped[1]
	cfg.SetDensities(rho)
}
