package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/couchcryptid/climate-data-etl/internal/observability"
	"github.com/hashicorp/go-multierror"
)

// Loader writes a run's dataset to one destination.
type Loader interface {
	Name() string
	Load(ctx context.Context, ds domain.Dataset) error
	Close() error
}

// MultiLoader fans a dataset out to several loaders. Every loader is tried;
// their errors are combined.
type MultiLoader struct {
	loaders []Loader
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewMultiLoader creates a MultiLoader over loaders, in order.
func NewMultiLoader(logger *slog.Logger, metrics *observability.Metrics, loaders ...Loader) *MultiLoader {
	return &MultiLoader{loaders: loaders, logger: logger, metrics: metrics}
}

func (m *MultiLoader) Name() string { return "multi" }

// Load writes ds to every loader.
func (m *MultiLoader) Load(ctx context.Context, ds domain.Dataset) error {
	var result *multierror.Error
	for _, l := range m.loaders {
		if err := l.Load(ctx, ds); err != nil {
			m.metrics.SinkWrites.WithLabelValues(l.Name(), "error").Inc()
			m.logger.Error("sink write failed", "sink", l.Name(), "error", err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", l.Name(), err))
			continue
		}
		m.metrics.SinkWrites.WithLabelValues(l.Name(), "success").Inc()
		m.logger.Info("sink written", "sink", l.Name(), "records", len(ds.Records))
	}
	return result.ErrorOrNil()
}

// Close closes every loader.
func (m *MultiLoader) Close() error {
	var result *multierror.Error
	for _, l := range m.loaders {
		if err := l.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", l.Name(), err))
		}
	}
	return result.ErrorOrNil()
}
