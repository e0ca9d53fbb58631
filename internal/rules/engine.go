package rules

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/itinerary"
)

// Decisions is the merged output of every applicable rule.
type Decisions struct {
	Prioritize  []string                `json:"prioritize"`
	Avoid       []string                `json:"avoid"`
	MustInclude []itinerary.MustInclude `json:"mustInclude"`
	Adjustments map[string]any          `json:"adjustments"`
	Tips        []string                `json:"tips"`
	Messages    []string                `json:"messages"`
}

// Evaluation reports which rules fired and what they decided.
type Evaluation struct {
	ApplicableRules []string  `json:"applicableRules"`
	Decisions       Decisions `json:"decisions"`
	RuleCount       int       `json:"ruleCount"`
}

// Config configures an Engine.
type Config struct {
	// Rules overrides the built-in rule set when non-nil.
	Rules  []Rule
	Logger zerolog.Logger
}

// Engine evaluates rules against generation contexts. It is safe for
// concurrent use.
type Engine struct {
	rules  []Rule
	logger zerolog.Logger
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{rules: rules, logger: cfg.Logger}
}

// Evaluate applies every rule whose condition holds, highest priority first.
// Adjustments from later rules overwrite earlier ones; list outputs keep the
// first occurrence of each entry.
func (e *Engine) Evaluate(gc itinerary.GenerationContext) Evaluation {
	applicable := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if e.holds(r, &gc) {
			applicable = append(applicable, r)
		}
	}
	slices.SortStableFunc(applicable, func(a, b Rule) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	eval := Evaluation{
		ApplicableRules: make([]string, 0, len(applicable)),
		Decisions: Decisions{
			Prioritize:  []string{},
			Avoid:       []string{},
			MustInclude: []itinerary.MustInclude{},
			Adjustments: map[string]any{},
			Tips:        []string{},
			Messages:    []string{},
		},
		RuleCount: len(applicable),
	}
	d := &eval.Decisions
	for _, r := range applicable {
		eval.ApplicableRules = append(eval.ApplicableRules, r.ID)
		d.Prioritize = itinerary.Union(d.Prioritize, r.Actions.Prioritize)
		d.Avoid = itinerary.Union(d.Avoid, r.Actions.Avoid)
		d.MustInclude = append(d.MustInclude, r.Actions.MustInclude...)
		d.Tips = itinerary.Union(d.Tips, r.Actions.Tips)
		if r.Actions.Message != "" {
			d.Messages = append(d.Messages, r.Actions.Message)
		}
		maps.Copy(d.Adjustments, r.Actions.Adjustments)
	}
	return eval
}

// holds runs a rule condition, treating a panicking condition as not met.
func (e *Engine) holds(r Rule, gc *itinerary.GenerationContext) (ok bool) {
	if r.Condition == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn().Str("rule", r.ID).Interface("panic", rec).Msg("rule condition failed")
			ok = false
		}
	}()
	return r.Condition(gc)
}

var compatibility = map[[2]string]float64{
	{"temple", "garden"}:           0.9,
	{"temple", "shrine"}:           0.85,
	{"temple", "tea-ceremony"}:     0.95,
	{"temple", "nightlife"}:        0.2,
	{"temple", "arcade"}:           0.3,
	{"museum", "museum"}:           0.4,
	{"museum", "park"}:             0.7,
	{"museum", "shopping"}:         0.6,
	{"food-market", "restaurant"}:  0.3,
	{"food-market", "street-food"}: 0.8,
	{"shopping", "shopping"}:       0.6,
	{"shopping", "cafe"}:           0.8,
	{"hiking", "onsen"}:            0.95,
	{"hiking", "museum"}:           0.4,
	{"cultural", "nature"}:         0.85,
	{"cultural", "modern"}:         0.75,
	{"nightlife", "early-morning"}: 0.1,
	{"nightlife", "izakaya"}:       0.9,
	{"park", "garden"}:             0.5,
	{"park", "outdoor-market"}:     0.8,
	{"onsen", "tea-ceremony"}:      0.9,
	{"onsen", "nightlife"}:         0.3,
}

const (
	sameCategoryScore    = 0.5
	defaultPairScore     = 0.6
	poorFlowThreshold    = 0.4
	excellentDayScore    = 0.8
	needsReorderDayScore = 0.5
)

// Compatibility scores how well b follows a, from 0 (clash) to 1 (ideal).
// The lookup is symmetric.
func Compatibility(a, b itinerary.Activity) float64 {
	if s, ok := compatibility[[2]string{a.Category, b.Category}]; ok {
		return s
	}
	if s, ok := compatibility[[2]string{b.Category, a.Category}]; ok {
		return s
	}
	if a.Category == b.Category {
		return sameCategoryScore
	}
	return defaultPairScore
}

// DayReport is the compatibility assessment of a day's sequence.
type DayReport struct {
	Score       float64  `json:"score"`
	Suggestions []string `json:"suggestions"`
}

// DayCompatibility averages the compatibility of consecutive activities.
func DayCompatibility(activities []itinerary.Activity) DayReport {
	if len(activities) < 2 {
		return DayReport{Score: 1, Suggestions: []string{}}
	}

	report := DayReport{Suggestions: []string{}}
	var total float64
	for i := 0; i < len(activities)-1; i++ {
		s := Compatibility(activities[i], activities[i+1])
		total += s
		if s < poorFlowThreshold {
			report.Suggestions = append(report.Suggestions,
				fmt.Sprintf("%q followed by %q may not flow well", activities[i].Name, activities[i+1].Name))
		}
	}
	report.Score = total / float64(len(activities)-1)

	switch {
	case report.Score >= excellentDayScore:
		report.Suggestions = append(report.Suggestions, "Excellent balance of activities for this day")
	case report.Score < needsReorderDayScore:
		report.Suggestions = append(report.Suggestions, "This day could benefit from reordering its activities")
	}
	return report
}

// Improvements lists what a trip is missing or could do better.
type Improvements struct {
	CriticalIssues []string `json:"criticalIssues"`
	Suggestions    []string `json:"suggestions"`
	Optimizations  []string `json:"optimizations"`
}

// SuggestImprovements checks a trip against the decisions for gc: missing
// must-include places and poorly sequenced days.
func (e *Engine) SuggestImprovements(trip *itinerary.Trip, gc itinerary.GenerationContext) Improvements {
	eval := e.Evaluate(gc)
	out := Improvements{
		CriticalIssues: []string{},
		Suggestions:    []string{},
		Optimizations:  append([]string{}, eval.Decisions.Messages...),
	}

	for _, m := range eval.Decisions.MustInclude {
		found := slices.ContainsFunc(trip.Days, func(d itinerary.Day) bool {
			return slices.ContainsFunc(d.Activities, func(a itinerary.Activity) bool {
				return a.Name == m.Name
			})
		})
		if !found {
			out.CriticalIssues = append(out.CriticalIssues,
				fmt.Sprintf("Missing must-see activity: %s in %s", m.Name, m.City))
		}
	}

	for i, d := range trip.Days {
		report := DayCompatibility(d.Activities)
		if report.Score < needsReorderDayScore {
			out.Suggestions = append(out.Suggestions,
				fmt.Sprintf("Day %d: %s", i+1, strings.Join(report.Suggestions, ", ")))
		}
	}
	return out
}
