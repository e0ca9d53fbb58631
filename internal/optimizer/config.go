// Package optimizer orders the activities of a day with a genetic algorithm
// that minimises travelled distance plus a penalty for backtracking.
package optimizer

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// RateOff disables crossover or mutation when used as CrossoverRate or
// MutationRate.
const RateOff = -1.0

// Params are the tunable genetic-algorithm settings. Zero fields select the
// defaults from DefaultParams. A negative CrossoverRate or MutationRate turns
// that operator off, leaving clone-only breeding or no mutation.
type Params struct {
	PopulationSize int     `json:"populationSize"`
	Generations    int     `json:"generations"`
	SurvivalRate   float64 `json:"survivalRate"`
	MutationRate   float64 `json:"mutationRate"`
	CrossoverRate  float64 `json:"crossoverRate"`
	EliteCount     int     `json:"eliteCount"`
}

// DefaultParams returns the standard algorithm settings.
func DefaultParams() Params {
	return Params{
		PopulationSize: 100,
		Generations:    50,
		SurvivalRate:   0.2,
		MutationRate:   0.15,
		CrossoverRate:  0.7,
		EliteCount:     5,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.PopulationSize <= 0 {
		p.PopulationSize = d.PopulationSize
	}
	if p.Generations <= 0 {
		p.Generations = d.Generations
	}
	if p.SurvivalRate <= 0 || p.SurvivalRate > 1 {
		p.SurvivalRate = d.SurvivalRate
	}
	p.MutationRate = rateOrDefault(p.MutationRate, d.MutationRate)
	p.CrossoverRate = rateOrDefault(p.CrossoverRate, d.CrossoverRate)
	if p.EliteCount <= 0 {
		p.EliteCount = d.EliteCount
	}
	return p
}

func rateOrDefault(rate, def float64) float64 {
	switch {
	case rate < 0:
		return RateOff
	case rate == 0 || rate > 1:
		return def
	}
	return rate
}

// Config configures an Optimizer.
type Config struct {
	Params

	// Workers is the number of goroutines evaluating fitness. Values below 2
	// evaluate sequentially.
	Workers int

	// Seed fixes the random source for reproducible runs. Zero seeds every
	// call from the global generator.
	Seed uint64

	Logger zerolog.Logger

	// Tracer and Meter default to the global OpenTelemetry providers.
	Tracer trace.Tracer
	Meter  metric.Meter
}
