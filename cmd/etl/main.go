package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/climate-data-etl/internal/adapter/csvout"
	httpadapter "github.com/couchcryptid/climate-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-data-etl/internal/adapter/nasapower"
	"github.com/couchcryptid/climate-data-etl/internal/adapter/noaa"
	"github.com/couchcryptid/climate-data-etl/internal/adapter/parquetout"
	"github.com/couchcryptid/climate-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/climate-data-etl/internal/config"
	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/couchcryptid/climate-data-etl/internal/observability"
	"github.com/couchcryptid/climate-data-etl/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	zones, err := loadZones(cfg)
	if err != nil {
		return err
	}
	period, err := domain.NewDateRange(cfg.StartDate, cfg.EndDate)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	power := nasapower.NewClient(cfg.PowerBaseURL, cfg.RequestTimeout, metrics, logger)
	if cfg.SkipHealthCheck {
		logger.Warn("provider health check skipped")
	} else if err := power.HealthCheck(ctx); err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}

	session := pipeline.NewSession(cfg.RequestInterval, logger, metrics,
		pipeline.WithStateInterval(cfg.StateInterval))
	fetcher := pipeline.NewFetcher(power, pipeline.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       pipeline.LinearDelay(cfg.RetryDelay),
	}, cfg.ChunkYears)
	agg := pipeline.NewAggregator(fetcher, session, zones, period, cfg.Workers)

	var co2 pipeline.CO2Fetcher
	if cfg.CO2Enabled {
		co2 = noaa.NewClient(cfg.CO2URL, cfg.RequestTimeout, logger)
	}

	loader, err := buildLoader(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}()

	p := pipeline.New(agg, co2, loader, logger, metrics)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	logger.Info("run starting",
		"run_id", session.RunID,
		"states", len(zones),
		"period", period.String(),
		"chunk_years", cfg.ChunkYears,
		"output_dir", cfg.OutputDir,
	)

	ds, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if ds.Report.Interrupted {
		logger.Warn("run interrupted, partial dataset written", "states_completed", ds.Report.StatesCompleted)
	}
	if ds.Report.FailedChunks > 0 {
		logger.Warn("some chunks failed, see failure log",
			"failed_chunks", ds.Report.FailedChunks,
			"failed_states", ds.Report.FailedStates,
		)
	}
	return nil
}

func loadZones(cfg *config.Config) (domain.Zones, error) {
	zones := domain.DefaultZones()
	if cfg.ZonesFile != "" {
		data, err := os.ReadFile(cfg.ZonesFile)
		if err != nil {
			return nil, fmt.Errorf("read zones file: %w", err)
		}
		if zones, err = domain.ParseZones(data); err != nil {
			return nil, err
		}
	}
	return zones.Filter(cfg.States)
}

// buildLoader fans the dataset out to the CSV directory plus every optional
// sink that is configured.
func buildLoader(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.MultiLoader, error) {
	csvWriter, err := csvout.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		return nil, err
	}
	loaders := []pipeline.Loader{csvWriter}

	if cfg.ParquetEnabled {
		pw, err := parquetout.NewWriter(cfg.OutputDir, logger)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, pw)
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, store)
	}
	if len(cfg.KafkaBrokers) > 0 {
		loaders = append(loaders, kafkaadapter.NewWriter(cfg, logger))
	}

	names := make([]string, len(loaders))
	for i, l := range loaders {
		names[i] = l.Name()
	}
	logger.Info("sinks configured", "sinks", names)
	return pipeline.NewMultiLoader(logger, metrics, loaders...), nil
}
