package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// StateStatus is a state's position in its processing lifecycle.
type StateStatus string

const (
	StatusPending     StateStatus = "pending"
	StatusFetching    StateStatus = "fetching"
	StatusFailed      StateStatus = "failed"
	StatusAggregating StateStatus = "aggregating"
	StatusDone        StateStatus = "done"
)

// StateResult is the output of one state.
type StateResult struct {
	Location     domain.Location
	Status       StateStatus
	Records      []domain.MonthlyRecord
	FailedChunks int
	Interrupted  bool
}

// Result is the output of an aggregation run, in zone table order.
type Result struct {
	States      []StateResult
	Interrupted bool
}

// Records returns every monthly record in zone table order, then date.
func (r Result) Records() []domain.MonthlyRecord {
	var out []domain.MonthlyRecord
	for _, s := range r.States {
		out = append(out, s.Records...)
	}
	return out
}

// Completed counts the states that reached StatusDone.
func (r Result) Completed() int {
	n := 0
	for _, s := range r.States {
		if s.Status == StatusDone {
			n++
		}
	}
	return n
}

// Aggregator fetches and reduces the daily data of every configured state.
type Aggregator struct {
	fetcher   *Fetcher
	session   *Session
	locations domain.Zones
	period    domain.DateRange
	params    []domain.Parameter
	workers   int
	completed atomic.Int64
}

// NewAggregator creates an Aggregator. workers bounds how many states are
// processed at once; chunks within a state are always sequential.
func NewAggregator(f *Fetcher, s *Session, locations domain.Zones, period domain.DateRange, workers int) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		fetcher:   f,
		session:   s,
		locations: locations,
		period:    period,
		params:    domain.ClimateParameters,
		workers:   workers,
	}
}

// Period returns the configured date range.
func (a *Aggregator) Period() domain.DateRange { return a.period }

// Session returns the run context.
func (a *Aggregator) Session() *Session { return a.session }

// Locations returns the configured states in table order.
func (a *Aggregator) Locations() domain.Zones { return a.locations }

// Run processes every state. Provider failures never abort the run; they end
// up in the failure log. Run returns an error only for an unusable period.
// When ctx ends, states in flight keep what they fetched and the remaining
// chunks are recorded as interrupted.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	if _, err := a.fetcher.Chunks(a.period); err != nil {
		return Result{}, fmt.Errorf("split period: %w", err)
	}

	a.session.logger.Info("aggregation started",
		"states", len(a.locations),
		"start", a.period.Start.Format(time.DateOnly),
		"end", a.period.End.Format(time.DateOnly),
		"workers", a.workers,
	)

	results := make([]StateResult, len(a.locations))
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, loc := range a.locations {
		g.Go(func() error {
			if i > 0 {
				// Cancellation is picked up by the fetch, which records the
				// state's chunks as interrupted.
				a.session.pauseBetweenStates(ctx)
			}
			results[i] = a.processState(ctx, loc)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{States: results, Interrupted: ctx.Err() != nil}
	a.session.logger.Info("aggregation finished",
		"states_completed", res.Completed(),
		"failed_chunks", a.session.failures.Len(),
		"interrupted", res.Interrupted,
	)
	return res, nil
}

// Progress is a point-in-time view of a run for the status endpoint.
type Progress struct {
	RunID           string `json:"run_id"`
	States          int    `json:"states"`
	StatesCompleted int    `json:"states_completed"`
	FailedChunks    int    `json:"failed_chunks"`
	Start           string `json:"start"`
	End             string `json:"end"`
}

// Progress reports how far the current run has come. Safe for concurrent use.
func (a *Aggregator) Progress() Progress {
	return Progress{
		RunID:           a.session.RunID,
		States:          len(a.locations),
		StatesCompleted: int(a.completed.Load()),
		FailedChunks:    a.session.failures.Len(),
		Start:           a.period.Start.Format(time.DateOnly),
		End:             a.period.End.Format(time.DateOnly),
	}
}

// CheckReadiness returns nil once at least one state has been aggregated.
func (a *Aggregator) CheckReadiness(_ context.Context) error {
	if a.completed.Load() == 0 {
		return errors.New("no state aggregated yet")
	}
	return nil
}

func (a *Aggregator) processState(ctx context.Context, loc domain.Location) StateResult {
	res := StateResult{Location: loc, Status: StatusPending}
	log := a.session.logger.With("state", loc.State, "zone", loc.Zone)

	seq, err := a.fetcher.FetchRange(ctx, a.session, loc, a.params, a.period)
	if err != nil {
		// Validated in Run.
		log.Error("split period", "error", err)
		return res
	}

	if ctx.Err() != nil {
		// Never started: the sequence only records interrupted chunks.
		for r := range seq {
			if r.Err != nil {
				res.FailedChunks++
			}
		}
		res.Interrupted = true
		return res
	}

	byMonth := make(map[time.Time][]domain.DailyObservation)
	for r := range seq {
		res.Status = StatusFetching
		log.Debug("state status", "status", res.Status, "chunk", r.Chunk.Index)
		if r.Err != nil {
			res.FailedChunks++
			res.Interrupted = res.Interrupted || r.Interrupted
			res.Status = StatusFailed
			log.Debug("state status", "status", res.Status, "chunk", r.Chunk.Index)
			continue
		}
		for _, d := range r.Days {
			m := domain.MonthStart(d.Date)
			byMonth[m] = append(byMonth[m], d)
		}
	}

	res.Status = StatusAggregating
	log.Debug("state status", "status", res.Status)
	res.Records = AggregateState(loc, a.period, byMonth)
	for _, rec := range res.Records {
		if rec.TempInverted() {
			log.Warn("minimum temperature above maximum, range left missing",
				"month", rec.Date.Format("2006-01"), "min", *rec.MinTempC, "max", *rec.MaxTempC)
		}
	}

	res.Status = StatusDone
	a.completed.Add(1)
	a.session.metrics.StatesCompleted.Inc()
	for _, t := range domain.Tables {
		a.session.metrics.RecordsEmitted.WithLabelValues(t.String()).Add(float64(len(res.Records)))
	}
	log.Info("state done", "records", len(res.Records), "failed_chunks", res.FailedChunks)
	return res
}

// AggregateState emits one record per month of period for loc, in date
// order, from daily observations grouped by month start. Months without
// data are present with missing metrics. Indices use a baseline built from
// the same records.
func AggregateState(loc domain.Location, period domain.DateRange, byMonth map[time.Time][]domain.DailyObservation) []domain.MonthlyRecord {
	months := domain.MonthsIn(period)
	records := make([]domain.MonthlyRecord, 0, len(months))
	for _, m := range months {
		records = append(records, domain.AggregateMonth(byMonth[m], loc, m.Year(), m.Month(), nil))
	}

	baseline := domain.BuildBaseline(records)
	for i := range records {
		baseline.Apply(&records[i])
	}
	return records
}
