// Package parquetout writes the monthly climate tables as Snappy-compressed
// Parquet files.
package parquetout

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// TableFiles maps each monthly table to its file name.
var TableFiles = map[domain.Table]string{
	domain.TableTemperature: "temperature_data.parquet",
	domain.TableRainfall:    "rainfall_data.parquet",
	domain.TableHumidity:    "humidity_data.parquet",
}

// Writer writes the three monthly tables into a directory.
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

func (w *Writer) Name() string { return "parquet" }

func (w *Writer) Close() error { return nil }

// Load writes one Parquet file per monthly table.
func (w *Writer) Load(_ context.Context, ds domain.Dataset) error {
	temps := make([]any, len(ds.Records))
	rains := make([]any, len(ds.Records))
	hums := make([]any, len(ds.Records))
	for i, r := range ds.Records {
		temps[i] = newTemperatureRow(r)
		rains[i] = newRainfallRow(r)
		hums[i] = newHumidityRow(r)
	}

	if err := w.writeTable(TableFiles[domain.TableTemperature], new(temperatureRow), temps); err != nil {
		return err
	}
	if err := w.writeTable(TableFiles[domain.TableRainfall], new(rainfallRow), rains); err != nil {
		return err
	}
	return w.writeTable(TableFiles[domain.TableHumidity], new(humidityRow), hums)
}

func (w *Writer) writeTable(name string, prototype any, rows []any) error {
	data, err := encode(prototype, rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp := filepath.Join(w.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	w.logger.Debug("parquet written", "file", name, "rows", len(rows), "bytes", len(data))
	return nil
}

func encode(prototype any, rows []any) (data []byte, err error) {
	var buf bytes.Buffer
	pw, err := writer.NewParquetWriterFromWriter(&buf, prototype, 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// Row types. Column names follow domain.Table; optional columns hold missing
// metrics as null.

type keyColumns struct {
	Date  string
	Year  int32
	Month int32
	Zone  string
	State string
}

type temperatureRow struct {
	Date           string   `parquet:"name=Date,type=BYTE_ARRAY,convertedtype=UTF8"`
	Year           int32    `parquet:"name=Year,type=INT32"`
	Month          int32    `parquet:"name=Month,type=INT32"`
	Zone           string   `parquet:"name=Geopolitical_Zone,type=BYTE_ARRAY,convertedtype=UTF8"`
	State          string   `parquet:"name=State,type=BYTE_ARRAY,convertedtype=UTF8"`
	AvgTempC       *float64 `parquet:"name=Avg_Temp_C,type=DOUBLE,repetitiontype=OPTIONAL"`
	MinTempC       *float64 `parquet:"name=Min_Temp_C,type=DOUBLE,repetitiontype=OPTIONAL"`
	MaxTempC       *float64 `parquet:"name=Max_Temp_C,type=DOUBLE,repetitiontype=OPTIONAL"`
	TempRangeC     *float64 `parquet:"name=Temp_Range_C,type=DOUBLE,repetitiontype=OPTIONAL"`
	HeatStressDays *int32   `parquet:"name=Heat_Stress_Days,type=INT32,repetitiontype=OPTIONAL"`
	ColdStressDays *int32   `parquet:"name=Cold_Stress_Days,type=INT32,repetitiontype=OPTIONAL"`
}

type rainfallRow struct {
	Date               string   `parquet:"name=Date,type=BYTE_ARRAY,convertedtype=UTF8"`
	Year               int32    `parquet:"name=Year,type=INT32"`
	Month              int32    `parquet:"name=Month,type=INT32"`
	Zone               string   `parquet:"name=Geopolitical_Zone,type=BYTE_ARRAY,convertedtype=UTF8"`
	State              string   `parquet:"name=State,type=BYTE_ARRAY,convertedtype=UTF8"`
	RainfallMM         *float64 `parquet:"name=Rainfall_mm,type=DOUBLE,repetitiontype=OPTIONAL"`
	RainyDays          *int32   `parquet:"name=Rainy_Days,type=INT32,repetitiontype=OPTIONAL"`
	MaxDailyRainfallMM *float64 `parquet:"name=Max_Daily_Rainfall_mm,type=DOUBLE,repetitiontype=OPTIONAL"`
	RainfallIntensity  *float64 `parquet:"name=Rainfall_Intensity,type=DOUBLE,repetitiontype=OPTIONAL"`
	DroughtIndex       *float64 `parquet:"name=Drought_Index,type=DOUBLE,repetitiontype=OPTIONAL"`
	FloodRiskIndex     *float64 `parquet:"name=Flood_Risk_Index,type=DOUBLE,repetitiontype=OPTIONAL"`
}

type humidityRow struct {
	Date           string   `parquet:"name=Date,type=BYTE_ARRAY,convertedtype=UTF8"`
	Year           int32    `parquet:"name=Year,type=INT32"`
	Month          int32    `parquet:"name=Month,type=INT32"`
	Zone           string   `parquet:"name=Geopolitical_Zone,type=BYTE_ARRAY,convertedtype=UTF8"`
	State          string   `parquet:"name=State,type=BYTE_ARRAY,convertedtype=UTF8"`
	AvgHumidityPct *float64 `parquet:"name=Avg_Humidity_Percent,type=DOUBLE,repetitiontype=OPTIONAL"`
	MinHumidityPct *float64 `parquet:"name=Min_Humidity_Percent,type=DOUBLE,repetitiontype=OPTIONAL"`
	MaxHumidityPct *float64 `parquet:"name=Max_Humidity_Percent,type=DOUBLE,repetitiontype=OPTIONAL"`
}

func keysOf(r domain.MonthlyRecord) keyColumns {
	return keyColumns{
		Date:  r.Date.Format(time.DateOnly),
		Year:  int32(r.Year()),
		Month: int32(r.Month()),
		Zone:  r.Zone,
		State: r.State,
	}
}

func newTemperatureRow(r domain.MonthlyRecord) *temperatureRow {
	k := keysOf(r)
	return &temperatureRow{
		Date: k.Date, Year: k.Year, Month: k.Month, Zone: k.Zone, State: k.State,
		AvgTempC:       r.AvgTempC,
		MinTempC:       r.MinTempC,
		MaxTempC:       r.MaxTempC,
		TempRangeC:     r.TempRangeC,
		HeatStressDays: int32p(r.HeatStressDays),
		ColdStressDays: int32p(r.ColdStressDays),
	}
}

func newRainfallRow(r domain.MonthlyRecord) *rainfallRow {
	k := keysOf(r)
	return &rainfallRow{
		Date: k.Date, Year: k.Year, Month: k.Month, Zone: k.Zone, State: k.State,
		RainfallMM:         r.RainfallMM,
		RainyDays:          int32p(r.RainyDays),
		MaxDailyRainfallMM: r.MaxDailyRainfallMM,
		RainfallIntensity:  r.RainfallIntensity,
		DroughtIndex:       r.DroughtIndex,
		FloodRiskIndex:     r.FloodRiskIndex,
	}
}

func newHumidityRow(r domain.MonthlyRecord) *humidityRow {
	k := keysOf(r)
	return &humidityRow{
		Date: k.Date, Year: k.Year, Month: k.Month, Zone: k.Zone, State: k.State,
		AvgHumidityPct: r.AvgHumidityPct,
		MinHumidityPct: r.MinHumidityPct,
		MaxHumidityPct: r.MaxHumidityPct,
	}
}

func int32p(p *int) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p)
	return &v
}
