// Package csvout writes a run's dataset as CSV files plus a plain-text
// summary report.
package csvout

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
)

// Output file names.
const (
	TemperatureFile = "temperature_data.csv"
	RainfallFile    = "rainfall_data.csv"
	HumidityFile    = "humidity_data.csv"
	CO2File         = "co2_data.csv"
	FailuresFile    = "failed_chunks.csv"
	SummaryFile     = "DOWNLOAD_SUMMARY.txt"
)

// TableFiles maps each monthly table to its file name.
var TableFiles = map[domain.Table]string{
	domain.TableTemperature: TemperatureFile,
	domain.TableRainfall:    RainfallFile,
	domain.TableHumidity:    HumidityFile,
}

// Writer writes datasets into a directory. Every file is written to a
// temporary name first and renamed into place.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

func (w *Writer) Name() string { return "csv" }

// Load writes the three monthly tables, the failure log and the summary. The
// CO2 table is written only when the dataset carries CO2 records.
func (w *Writer) Load(_ context.Context, ds domain.Dataset) error {
	for _, t := range domain.Tables {
		rows := make([][]string, 0, len(ds.Records))
		for _, r := range ds.Records {
			rows = append(rows, t.Row(r))
		}
		if err := w.writeCSV(TableFiles[t], t.Header(), rows); err != nil {
			return err
		}
	}

	if len(ds.CO2) > 0 {
		rows := make([][]string, 0, len(ds.CO2))
		for _, c := range ds.CO2 {
			rows = append(rows, c.Row())
		}
		if err := w.writeCSV(CO2File, domain.CO2Header, rows); err != nil {
			return err
		}
	}

	rows := make([][]string, 0, len(ds.Failures))
	for _, f := range ds.Failures {
		rows = append(rows, f.Row())
	}
	if err := w.writeCSV(FailuresFile, domain.FailureHeader, rows); err != nil {
		return err
	}

	return w.writeAtomic(SummaryFile, func(out io.Writer) error {
		return WriteSummary(out, ds.Report)
	})
}

func (w *Writer) Close() error { return nil }

func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	err := w.writeAtomic(name, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
	if err != nil {
		return err
	}
	w.logger.Debug("csv written", "file", name, "rows", len(rows))
	return nil
}

func (w *Writer) writeAtomic(name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
