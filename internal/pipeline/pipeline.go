package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/couchcryptid/climate-data-etl/internal/observability"
)

// CO2Fetcher returns the monthly CO2 record for a period.
type CO2Fetcher interface {
	FetchCO2(ctx context.Context, period domain.DateRange) ([]domain.CO2Record, error)
}

// Pipeline runs one acquisition: aggregate every state, fetch CO2, write the
// dataset to the loader.
type Pipeline struct {
	aggregator *Aggregator
	co2        CO2Fetcher
	loader     Loader
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline. co2 may be nil to skip the CO2 dataset.
func New(agg *Aggregator, co2 CO2Fetcher, loader Loader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		aggregator: agg,
		co2:        co2,
		loader:     loader,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once at least one state has been aggregated.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	return p.aggregator.CheckReadiness(ctx)
}

// Progress reports the aggregation progress of the current run.
func (p *Pipeline) Progress() Progress {
	return p.aggregator.Progress()
}

// Run executes the acquisition. An interrupt stops new provider requests;
// whatever was aggregated is still written, together with the failure log.
// The returned error is non-nil only for an unusable configuration or a
// failed sink write.
func (p *Pipeline) Run(ctx context.Context) (domain.Dataset, error) {
	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)

	res, err := p.aggregator.Run(ctx)
	if err != nil {
		return domain.Dataset{}, err
	}

	var co2 []domain.CO2Record
	var co2Err error
	if p.co2 != nil && ctx.Err() == nil {
		co2, co2Err = p.co2.FetchCO2(ctx, p.aggregator.Period())
		if co2Err != nil {
			p.logger.Error("co2 fetch failed", "error", co2Err)
		}
	}

	ds := p.dataset(res, co2, co2Err)

	// Sinks must finish even after an interrupt.
	if err := p.loader.Load(context.WithoutCancel(ctx), ds); err != nil {
		return ds, fmt.Errorf("write dataset: %w", err)
	}
	p.logger.Info("run complete",
		"run_id", ds.Report.RunID,
		"records", len(ds.Records),
		"failed_chunks", ds.Report.FailedChunks,
		"interrupted", ds.Report.Interrupted,
	)
	return ds, nil
}

func (p *Pipeline) dataset(res Result, co2 []domain.CO2Record, co2Err error) domain.Dataset {
	s := p.aggregator.Session()
	locs := p.aggregator.Locations()

	records := res.Records()
	failures := s.Failures().Entries()

	states := make([]string, len(locs))
	for i, l := range locs {
		states[i] = l.State
	}

	report := domain.RunReport{
		RunID:           s.RunID,
		GeneratedAt:     domain.Now(),
		Period:          p.aggregator.Period(),
		Zones:           locs.ZoneNames(),
		States:          states,
		StatesCompleted: res.Completed(),
		Tables:          domain.Summarize(records),
		FailedChunks:    len(failures),
		FailedStates:    domain.FailedStates(failures),
		Interrupted:     res.Interrupted,
		CO2Records:      len(co2),
	}
	if co2Err != nil {
		report.CO2Error = co2Err.Error()
	}

	return domain.Dataset{
		Records:  records,
		CO2:      co2,
		Failures: failures,
		Report:   report,
	}
}
