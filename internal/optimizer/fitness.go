package optimizer

import (
	"github.com/viajejapon/planner/internal/geo"
	"github.com/viajejapon/planner/internal/itinerary"
)

const (
	// MinutesPerKm converts travelled distance into travel time.
	MinutesPerKm = 10.0

	// BacktrackThreshold flags a triple A,B,C when d(A,C) is below this
	// fraction of d(A,B)+d(B,C).
	BacktrackThreshold = 0.7

	// BacktrackPenaltyKm is added to the cost for every flagged triple.
	BacktrackPenaltyKm = 2.0
)

// Anchors are the stops whose position in the route is fixed.
type Anchors struct {
	// FixedStart is placed first.
	FixedStart *itinerary.Activity `json:"fixedStart,omitempty"`

	// FixedEnd is placed last.
	FixedEnd *itinerary.Activity `json:"fixedEnd,omitempty"`

	// Hotel adds a return leg from the last stop. It is not part of the route.
	Hotel *itinerary.Activity `json:"hotel,omitempty"`
}

// Fitness is the cost of a route. Lower TotalCost is better.
type Fitness struct {
	TotalCost           float64 `json:"totalCost"`
	TotalDistanceKm     float64 `json:"totalDistance"`
	TotalTimeMinutes    float64 `json:"totalTime"`
	BacktrackingPenalty float64 `json:"backtrackingPenalty"`
}

// Evaluate scores route as given, with the anchors wrapped around it.
func Evaluate(route []itinerary.Activity, anchors Anchors) Fitness {
	return newEvaluator(route, anchors).evaluate(identity(len(route)))
}

// evaluator precomputes pairwise distances between the activities and the
// anchors so each candidate ordering is scored with table lookups.
type evaluator struct {
	dist  [][]float64
	start int
	end   int
	hotel int
}

func newEvaluator(activities []itinerary.Activity, anchors Anchors) *evaluator {
	points := make([]*geo.Point, 0, len(activities)+3)
	for i := range activities {
		points = append(points, activities[i].Coordinates)
	}

	e := &evaluator{start: -1, end: -1, hotel: -1}
	if anchors.FixedStart != nil {
		e.start = len(points)
		points = append(points, anchors.FixedStart.Coordinates)
	}
	if anchors.FixedEnd != nil {
		e.end = len(points)
		points = append(points, anchors.FixedEnd.Coordinates)
	}
	if anchors.Hotel != nil {
		e.hotel = len(points)
		points = append(points, anchors.Hotel.Coordinates)
	}

	e.dist = make([][]float64, len(points))
	for i := range points {
		e.dist[i] = make([]float64, len(points))
	}
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			d := geo.Distance(points[i], points[j])
			e.dist[i][j] = d
			e.dist[j][i] = d
		}
	}
	return e
}

func (e *evaluator) evaluate(order Permutation) Fitness {
	seq := make([]int, 0, len(order)+2)
	if e.start >= 0 {
		seq = append(seq, e.start)
	}
	seq = append(seq, order...)
	if e.end >= 0 {
		seq = append(seq, e.end)
	}

	var f Fitness
	for i := 0; i+1 < len(seq); i++ {
		f.TotalDistanceKm += e.dist[seq[i]][seq[i+1]]
	}
	if e.hotel >= 0 && len(seq) > 0 {
		f.TotalDistanceKm += e.dist[seq[len(seq)-1]][e.hotel]
	}
	f.TotalTimeMinutes = f.TotalDistanceKm * MinutesPerKm

	for i := 0; i+2 < len(seq); i++ {
		a, b, c := seq[i], seq[i+1], seq[i+2]
		if e.dist[a][c] < (e.dist[a][b]+e.dist[b][c])*BacktrackThreshold {
			f.BacktrackingPenalty += BacktrackPenaltyKm
		}
	}

	f.TotalCost = f.TotalDistanceKm + f.BacktrackingPenalty
	return f
}
