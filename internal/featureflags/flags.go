// Package featureflags holds the planner's runtime switches: whether the
// route search, expert rules and preference scoring run, and how large the
// route search is.
package featureflags

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Planner flag keys.
const (
	FlagDisableRouteOptimization = "disable_route_optimization"
	FlagDisableExpertRules       = "disable_expert_rules"
	FlagDisablePreferenceScoring = "disable_preference_scoring"
	FlagOptimizerPopulationSize  = "optimizer_population_size"
	FlagOptimizerGenerations     = "optimizer_generations"
)

// Defaults for the route search size flags.
const (
	DefaultOptimizerPopulationSize = 50
	DefaultOptimizerGenerations    = 30
)

var (
	ErrFlagNotFound     = errors.New("feature flag not found")
	ErrUnknownFlag      = errors.New("unknown feature flag")
	ErrInvalidFlagValue = errors.New("invalid feature flag value")
)

// Kind says what values a flag accepts.
type Kind int

const (
	// KindSwitch flags hold a boolean.
	KindSwitch Kind = iota
	// KindCount flags hold a positive whole number.
	KindCount
)

// Definition describes one planner flag.
type Definition struct {
	Key         string
	Kind        Kind
	Default     any
	Description string
}

var definitions = []Definition{
	{FlagDisableExpertRules, KindSwitch, false, "Stop merging expert rule decisions into generation contexts"},
	{FlagDisablePreferenceScoring, KindSwitch, false, "Score every activity as neutral instead of using learned preferences"},
	{FlagDisableRouteOptimization, KindSwitch, false, "Keep days in generated order instead of running the route search"},
	{FlagOptimizerGenerations, KindCount, DefaultOptimizerGenerations, "Generations evolved per route search"},
	{FlagOptimizerPopulationSize, KindCount, DefaultOptimizerPopulationSize, "Routes per route search generation"},
}

// Definitions returns every planner flag ordered by key.
func Definitions() []Definition {
	return slices.Clone(definitions)
}

// Lookup finds the definition of key.
func Lookup(key string) (Definition, bool) {
	i := slices.IndexFunc(definitions, func(d Definition) bool { return d.Key == key })
	if i < 0 {
		return Definition{}, false
	}
	return definitions[i], true
}

// Flag is a stored flag value. Values decoded from JSON arrive as float64.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that flag names a planner flag and carries a value of the
// right kind.
func Validate(flag *Flag) error {
	def, ok := Lookup(flag.Key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, flag.Key)
	}
	switch def.Kind {
	case KindSwitch:
		if _, ok := flag.Value.(bool); !ok {
			return fmt.Errorf("%w: %s must be true or false", ErrInvalidFlagValue, flag.Key)
		}
	case KindCount:
		n, ok := number(flag.Value)
		if !ok || n < 1 || n != math.Trunc(n) {
			return fmt.Errorf("%w: %s must be a positive whole number", ErrInvalidFlagValue, flag.Key)
		}
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// BoolValue returns the value as a boolean. Numbers are true when non-zero;
// a nil flag or any other value yields defaultValue.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	if b, ok := f.Value.(bool); ok {
		return b
	}
	if n, ok := number(f.Value); ok {
		return n != 0
	}
	return defaultValue
}

// IntValue returns the value truncated to an int, or defaultValue when the
// flag is nil or not a number.
func (f *Flag) IntValue(defaultValue int) int {
	if f == nil {
		return defaultValue
	}
	if n, ok := number(f.Value); ok {
		return int(n)
	}
	return defaultValue
}

// DefaultFlags returns every planner flag at its default value.
func DefaultFlags() map[string]*Flag {
	flags := make(map[string]*Flag, len(definitions))
	for _, d := range definitions {
		flags[d.Key] = &Flag{Key: d.Key, Value: d.Default}
	}
	return flags
}
