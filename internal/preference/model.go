// Package preference learns per-user category and interest weights from
// activity feedback and predicts how likely a user is to enjoy an activity.
package preference

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/viajejapon/planner/internal/itinerary"
)

// MinActionsForPrediction is the number of recorded events below which
// predictions stay neutral.
const MinActionsForPrediction = 5

var (
	// ErrUnknownEvent is returned for unsupported event types.
	ErrUnknownEvent = errors.New("unknown preference event")

	// ErrInvalidRating is returned for ratings outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// EventType is a kind of user feedback on an activity.
type EventType string

// Supported event types.
const (
	EventCompleted EventType = "completed"
	EventSkipped   EventType = "skipped"
	EventAdded     EventType = "added"
	EventRemoved   EventType = "removed"
	EventRated     EventType = "rated"
)

var baseDelta = map[EventType]float64{
	EventCompleted: 1.0,
	EventAdded:     0.5,
	EventSkipped:   -0.5,
	EventRemoved:   -1.0,
	EventRated:     0,
}

// Event is one piece of feedback.
type Event struct {
	Type     EventType          `json:"type"`
	Activity itinerary.Activity `json:"activity"`

	// Rating is 1-5, required for EventRated and optional otherwise.
	Rating int `json:"rating,omitempty"`
}

// Validate checks the event type and rating.
func (e Event) Validate() error {
	if _, ok := baseDelta[e.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
	if e.Rating != 0 && (e.Rating < 1 || e.Rating > 5) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, e.Rating)
	}
	if e.Type == EventRated && e.Rating == 0 {
		return fmt.Errorf("%w: rated events need a rating", ErrInvalidRating)
	}
	return nil
}

// delta is the weight change the event applies to every matching signal.
func (e Event) delta() float64 {
	d := baseDelta[e.Type]
	if e.Rating > 0 {
		d += float64(e.Rating-3) * 0.5
	}
	return d
}

// Signal accumulates feedback for one label.
type Signal struct {
	Weight   float64 `json:"weight"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Total    int     `json:"total"`
	Ratings  []int   `json:"ratings,omitempty"`
}

// Confidence maps the weight onto (0, 1), 0.5 being neutral.
func (s Signal) Confidence() float64 {
	return logistic(s.Weight)
}

// AverageRating returns the mean rating or 0.
func (s Signal) AverageRating() float64 {
	if len(s.Ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range s.Ratings {
		sum += r
	}
	return float64(sum) / float64(len(s.Ratings))
}

func (s Signal) apply(e Event, d float64) Signal {
	s.Weight += d
	s.Total++
	switch {
	case d > 0:
		s.Positive++
	case d < 0:
		s.Negative++
	}
	if e.Rating > 0 {
		s.Ratings = append(s.Ratings, e.Rating)
	}
	return s
}

// Model is a user's accumulated preferences. Weights are unbounded and only
// meaningful relative to each other.
type Model struct {
	Categories   map[string]Signal `json:"categories"`
	Interests    map[string]Signal `json:"interests"`
	Activities   map[string]Signal `json:"activities"`
	TotalActions int               `json:"totalActions"`
	LastUpdated  time.Time         `json:"lastUpdated"`
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Categories: make(map[string]Signal),
		Interests:  make(map[string]Signal),
		Activities: make(map[string]Signal),
	}
}

func (m *Model) ensureMaps() {
	if m.Categories == nil {
		m.Categories = make(map[string]Signal)
	}
	if m.Interests == nil {
		m.Interests = make(map[string]Signal)
	}
	if m.Activities == nil {
		m.Activities = make(map[string]Signal)
	}
}

// Train applies an event to the model.
func (m *Model) Train(e Event, at time.Time) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.ensureMaps()

	d := e.delta()
	a := e.Activity

	if a.Category != "" {
		m.Categories[a.Category] = m.Categories[a.Category].apply(e, d)
	}
	for _, interest := range a.Interests {
		m.Interests[interest] = m.Interests[interest].apply(e, d)
	}
	if a.Name != "" {
		m.Activities[a.Name] = m.Activities[a.Name].apply(e, d)
	}

	m.TotalActions++
	m.LastUpdated = at.UTC()
	return nil
}

// CanPredict reports whether enough feedback has been recorded.
func (m *Model) CanPredict() bool {
	return m.TotalActions >= MinActionsForPrediction
}

// Recommendation buckets a prediction score.
type Recommendation string

// Recommendation values.
const (
	HighlyRecommended Recommendation = "highly_recommended"
	Recommended       Recommendation = "recommended"
	Neutral           Recommendation = "neutral"
	Maybe             Recommendation = "maybe"
	NotRecommended    Recommendation = "not_recommended"
)

func recommend(score float64) Recommendation {
	switch {
	case score >= 0.75:
		return HighlyRecommended
	case score >= 0.6:
		return Recommended
	case score <= 0.3:
		return NotRecommended
	case score <= 0.45:
		return Maybe
	default:
		return Neutral
	}
}

// Prediction is the model's opinion on one activity.
type Prediction struct {
	// Signal is the weighted sum of matching category, interest and
	// activity weights.
	Signal float64 `json:"signal"`

	// Score is Signal mapped onto (0, 1); 0.5 is neutral.
	Score          float64        `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Reasons        []string       `json:"reasons"`
	CanPredict     bool           `json:"canPredict"`
}

// Predict scores an activity. Interests contribute their mean weight so
// activities with many tags are not favoured for that alone.
func (m *Model) Predict(a itinerary.Activity) Prediction {
	if !m.CanPredict() {
		return Prediction{
			Score:          0.5,
			Recommendation: Neutral,
			Reasons:        []string{"Not enough feedback yet to make a reliable prediction"},
		}
	}

	var signal float64
	reasons := []string{}

	if s, ok := m.Categories[a.Category]; ok && a.Category != "" {
		signal += s.Weight
		conf := s.Confidence()
		switch {
		case conf >= 0.7:
			reasons = append(reasons, fmt.Sprintf("You enjoy %s activities (%d%% confidence)", a.Category, percent(conf)))
		case conf <= 0.3:
			reasons = append(reasons, fmt.Sprintf("You have tended to skip %s activities (%d%% confidence)", a.Category, percent(conf)))
		}
	}

	var interestSum float64
	var interestCount int
	for _, interest := range a.Interests {
		s, ok := m.Interests[interest]
		if !ok {
			continue
		}
		interestSum += s.Weight
		interestCount++
		if conf := s.Confidence(); conf >= 0.8 {
			reasons = append(reasons, fmt.Sprintf("Includes %q, one of your favourite interests (%d%% confidence)", interest, percent(conf)))
		}
	}
	if interestCount > 0 {
		signal += interestSum / float64(interestCount)
	}

	if s, ok := m.Activities[a.Name]; ok && a.Name != "" {
		signal += s.Weight
		if avg := s.AverageRating(); avg > 0 {
			reasons = append(reasons, fmt.Sprintf("You rated it %.1f/5 before", avg))
		}
	}

	score := logistic(signal)
	return Prediction{
		Signal:         signal,
		Score:          score,
		Recommendation: recommend(score),
		Reasons:        reasons,
		CanPredict:     true,
	}
}

// Ranked is a label with its learned weight.
type Ranked struct {
	Label      string  `json:"label"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
}

func rank(signals map[string]Signal, limit int) []Ranked {
	out := make([]Ranked, 0, len(signals))
	for label, s := range signals {
		out = append(out, Ranked{Label: label, Weight: s.Weight, Confidence: s.Confidence(), Count: s.Positive})
	}
	slices.SortFunc(out, func(a, b Ranked) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopCategories returns the highest weighted categories.
func (m *Model) TopCategories(limit int) []Ranked {
	return rank(m.Categories, limit)
}

// TopInterests returns the highest weighted interests.
func (m *Model) TopInterests(limit int) []Ranked {
	return rank(m.Interests, limit)
}

// Insights is a readable summary of a model.
type Insights struct {
	TotalActions  int      `json:"totalActions"`
	CanPredict    bool     `json:"canPredict"`
	TopCategories []Ranked `json:"topCategories"`
	TopInterests  []Ranked `json:"topInterests"`
	Avoided       []string `json:"avoided"`
	Suggestions   []string `json:"suggestions"`
}

// Insights summarises the model.
func (m *Model) Insights() Insights {
	in := Insights{
		TotalActions:  m.TotalActions,
		CanPredict:    m.CanPredict(),
		TopCategories: m.TopCategories(3),
		TopInterests:  m.TopInterests(5),
		Avoided:       []string{},
		Suggestions:   []string{},
	}

	if len(in.TopCategories) > 0 && in.TopCategories[0].Confidence >= 0.7 {
		in.Suggestions = append(in.Suggestions,
			fmt.Sprintf("You love %s activities. Consider adding more to your next itinerary.", in.TopCategories[0].Label))
	}
	if len(in.TopInterests) > 0 {
		labels := make([]string, len(in.TopInterests))
		for i, r := range in.TopInterests {
			labels[i] = r.Label
		}
		in.Suggestions = append(in.Suggestions, "Your main interests: "+strings.Join(labels, ", "))
	}

	for label, s := range m.Categories {
		if s.Weight < 0 && s.Total >= 3 {
			in.Avoided = append(in.Avoided, label)
		}
	}
	slices.Sort(in.Avoided)
	if len(in.Avoided) > 0 {
		in.Suggestions = append(in.Suggestions,
			fmt.Sprintf("You tend to avoid %s. Upcoming itineraries will include fewer of these.", strings.Join(in.Avoided, ", ")))
	}
	return in
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func percent(x float64) int {
	return int(math.Round(x * 100))
}
