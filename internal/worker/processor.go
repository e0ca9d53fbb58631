package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/planner"
	"github.com/viajejapon/planner/internal/regeneration"
)

var (
	// ErrUnknownJobType is returned for job types the processor does not run.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrInvalidJob is returned for malformed or incomplete job messages.
	ErrInvalidJob = errors.New("invalid job")
)

// Planner is the subset of the planner service the worker drives.
type Planner interface {
	OptimizeRoutes(ctx context.Context, day itinerary.Day, opts planner.OptimizeOptions) itinerary.Day
	RegenerateDay(ctx context.Context, trip *itinerary.Trip, dayIndex int, optionID string, gen regeneration.Generator) (planner.Regeneration, error)
}

// Job is the Pub/Sub message payload.
type Job struct {
	Type     string `json:"job_type"`
	TripID   string `json:"trip_id"`
	DayIndex int    `json:"day_index,omitempty"`
	OptionID string `json:"option_id,omitempty"`
}

// Result summarises one processed job.
type Result struct {
	JobType       string
	TripID        string
	DaysProcessed int
	DaysOptimized int
	Duration      time.Duration
}

// Metrics are cumulative processor counters.
type Metrics struct {
	JobsProcessed   int64
	JobsFailed      int64
	DaysOptimized   int64
	DaysRegenerated int64
	LastJobAt       time.Time
	LastJobDuration time.Duration
}

// Disposition tells the transport what to do with a message.
type Disposition int

const (
	// Ack removes the message.
	Ack Disposition = iota
	// Nack asks for redelivery.
	Nack
)

// ProcessorConfig holds the processor's collaborators.
type ProcessorConfig struct {
	Config  Config
	Planner Planner
	Trips   itinerary.Repository
	Logger  zerolog.Logger
}

// Processor executes planner jobs against stored trips.
type Processor struct {
	config  Config
	planner Planner
	trips   itinerary.Repository
	logger  zerolog.Logger

	mu      sync.RWMutex
	metrics Metrics
}

// NewProcessor creates a job processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		config:  cfg.Config.withDefaults(),
		planner: cfg.Planner,
		trips:   cfg.Trips,
		logger:  cfg.Logger,
	}
}

// HandleMessage decodes and runs a job. Messages that can never succeed
// (malformed, unknown type, missing trip or day, unknown option) are acked;
// other failures are nacked for redelivery.
func (p *Processor) HandleMessage(ctx context.Context, data []byte) Disposition {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		p.logger.Error().Err(err).Msg("failed to parse job message")
		p.recordFailure()
		return Ack
	}

	log := p.logger.With().Str("job_type", job.Type).Str("trip_id", job.TripID).Logger()

	result, err := p.Process(ctx, job)
	if err != nil {
		if permanent(err) {
			log.Warn().Err(err).Msg("dropping job that cannot succeed")
			return Ack
		}
		log.Error().Err(err).Msg("job failed")
		return Nack
	}

	log.Info().
		Int("days_processed", result.DaysProcessed).
		Int("days_optimized", result.DaysOptimized).
		Dur("duration", result.Duration).
		Msg("job completed successfully")
	return Ack
}

func permanent(err error) bool {
	return errors.Is(err, ErrUnknownJobType) ||
		errors.Is(err, ErrInvalidJob) ||
		errors.Is(err, itinerary.ErrTripNotFound) ||
		errors.Is(err, itinerary.ErrDayNotFound) ||
		errors.Is(err, regeneration.ErrUnknownOption)
}

// Process runs one job under the configured timeout.
func (p *Processor) Process(ctx context.Context, job Job) (*Result, error) {
	if job.TripID == "" {
		p.recordFailure()
		return nil, fmt.Errorf("%w: trip_id is required", ErrInvalidJob)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	start := time.Now()
	var (
		result *Result
		err    error
	)
	switch job.Type {
	case JobOptimizeTrip:
		result, err = p.optimizeTrip(ctx, job.TripID)
	case JobRegenerateDay:
		result, err = p.regenerateDay(ctx, job)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownJobType, job.Type)
	}
	if err != nil {
		p.recordFailure()
		return nil, err
	}

	result.JobType = job.Type
	result.TripID = job.TripID
	result.Duration = time.Since(start)
	p.recordSuccess(result)
	return result, nil
}

type dayResult struct {
	index int
	day   itinerary.Day
}

// optimizeTrip optimizes every day of the trip with a fixed pool of
// goroutines and saves the trip once.
func (p *Processor) optimizeTrip(ctx context.Context, tripID string) (*Result, error) {
	trip, err := p.trips.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}

	indexes := make(chan int, len(trip.Days))
	results := make(chan dayResult, len(trip.Days))

	var wg sync.WaitGroup
	for range min(p.config.Concurrency, max(len(trip.Days), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				day := trip.Days[i]
				results <- dayResult{
					index: i,
					day:   p.planner.OptimizeRoutes(ctx, day, planner.OptimizeOptions{Hotel: trip.Hotel}),
				}
			}
		}()
	}

	for i := range trip.Days {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("optimizing trip %s: %w", tripID, err)
	}

	res := &Result{DaysProcessed: len(trip.Days)}
	updated := *trip
	updated.Days = make([]itinerary.Day, len(trip.Days))
	copy(updated.Days, trip.Days)
	for r := range results {
		updated.Days[r.index] = r.day
		if r.day.Optimization != nil && r.day.Optimization.Applied {
			res.DaysOptimized++
		}
	}

	if err := p.trips.Save(ctx, &updated); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Processor) regenerateDay(ctx context.Context, job Job) (*Result, error) {
	if job.OptionID == "" {
		return nil, fmt.Errorf("%w: option_id is required", ErrInvalidJob)
	}

	trip, err := p.trips.Get(ctx, job.TripID)
	if err != nil {
		return nil, err
	}

	regen, err := p.planner.RegenerateDay(ctx, trip, job.DayIndex, job.OptionID, nil)
	if err != nil {
		return nil, err
	}

	updated, err := trip.WithDay(job.DayIndex, regen.Day)
	if err != nil {
		return nil, err
	}
	if err := p.trips.Save(ctx, updated); err != nil {
		return nil, err
	}

	res := &Result{DaysProcessed: 1}
	if regen.Day.Optimization != nil && regen.Day.Optimization.Applied {
		res.DaysOptimized = 1
	}
	return res, nil
}

func (p *Processor) recordSuccess(r *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.JobsProcessed++
	p.metrics.DaysOptimized += int64(r.DaysOptimized)
	if r.JobType == JobRegenerateDay {
		p.metrics.DaysRegenerated++
	}
	p.metrics.LastJobAt = time.Now()
	p.metrics.LastJobDuration = r.Duration
}

func (p *Processor) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.JobsFailed++
}

// Metrics returns a copy of the current counters.
func (p *Processor) Metrics() Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

// MetricsSnapshot returns the counters as a JSON-friendly map.
func (p *Processor) MetricsSnapshot() map[string]any {
	m := p.Metrics()
	snapshot := map[string]any{
		"jobs_processed":   m.JobsProcessed,
		"jobs_failed":      m.JobsFailed,
		"days_optimized":   m.DaysOptimized,
		"days_regenerated": m.DaysRegenerated,
	}
	if !m.LastJobAt.IsZero() {
		snapshot["last_job_at"] = m.LastJobAt.Format(time.RFC3339)
		snapshot["last_job_duration_ms"] = m.LastJobDuration.Milliseconds()
	}
	return snapshot
}
