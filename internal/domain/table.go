package domain

import (
	"strconv"
	"time"
)

// MissingValue is the rendering of a missing metric in output tables.
const MissingValue = "NA"

// Table identifies one of the three monthly output tables.
type Table int

const (
	TableTemperature Table = iota
	TableRainfall
	TableHumidity
)

// Tables lists the monthly tables in output order.
var Tables = []Table{TableTemperature, TableRainfall, TableHumidity}

func (t Table) String() string {
	switch t {
	case TableTemperature:
		return "temperature"
	case TableRainfall:
		return "rainfall"
	case TableHumidity:
		return "humidity"
	default:
		return "unknown"
	}
}

// ColumnKind is the value type held by a column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindFloat
)

// Column is a named table column.
type Column struct {
	Name string
	Kind ColumnKind
}

var keyColumns = []Column{
	{"Date", KindString},
	{"Year", KindInt},
	{"Month", KindInt},
	{"Geopolitical_Zone", KindString},
	{"State", KindString},
}

var metricColumns = map[Table][]Column{
	TableTemperature: {
		{"Avg_Temp_C", KindFloat},
		{"Min_Temp_C", KindFloat},
		{"Max_Temp_C", KindFloat},
		{"Temp_Range_C", KindFloat},
		{"Heat_Stress_Days", KindInt},
		{"Cold_Stress_Days", KindInt},
	},
	TableRainfall: {
		{"Rainfall_mm", KindFloat},
		{"Rainy_Days", KindInt},
		{"Max_Daily_Rainfall_mm", KindFloat},
		{"Rainfall_Intensity", KindFloat},
		{"Drought_Index", KindFloat},
		{"Flood_Risk_Index", KindFloat},
	},
	TableHumidity: {
		{"Avg_Humidity_Percent", KindFloat},
		{"Min_Humidity_Percent", KindFloat},
		{"Max_Humidity_Percent", KindFloat},
	},
}

// Columns returns the full, ordered column list of the table.
func (t Table) Columns() []Column {
	cols := make([]Column, 0, len(keyColumns)+len(metricColumns[t]))
	cols = append(cols, keyColumns...)
	return append(cols, metricColumns[t]...)
}

// Header returns the column names in order.
func (t Table) Header() []string {
	cols := t.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Values projects a record onto the table's columns. Missing metrics are
// returned as nil; present ones as string, int or float64 per column kind.
func (t Table) Values(r MonthlyRecord) []any {
	out := []any{r.Date.Format(time.DateOnly), r.Year(), r.Month(), r.Zone, r.State}
	switch t {
	case TableTemperature:
		out = append(out, f(r.AvgTempC), f(r.MinTempC), f(r.MaxTempC), f(r.TempRangeC),
			i(r.HeatStressDays), i(r.ColdStressDays))
	case TableRainfall:
		out = append(out, f(r.RainfallMM), i(r.RainyDays), f(r.MaxDailyRainfallMM),
			f(r.RainfallIntensity), f(r.DroughtIndex), f(r.FloodRiskIndex))
	case TableHumidity:
		out = append(out, f(r.AvgHumidityPct), f(r.MinHumidityPct), f(r.MaxHumidityPct))
	}
	return out
}

// Row renders a record as strings in column order.
func (t Table) Row(r MonthlyRecord) []string {
	vals := t.Values(r)
	row := make([]string, len(vals))
	for idx, v := range vals {
		row[idx] = FormatValue(v)
	}
	return row
}

// FormatValue renders a projected value, using [MissingValue] for nil.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return MissingValue
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return FormatFloat(x)
	default:
		return MissingValue
	}
}

// FormatFloat renders a float with the shortest exact representation.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func f(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func i(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
