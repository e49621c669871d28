// Command validate re-reads the CSV tables produced by a run and checks their
// integrity: schema, one row per state-month across all three tables,
// temperature and humidity ordering, the exact temperature range, index
// bounds, and the rainfall intensity identity.
//
// Every state must have a row for every month of the expected window. The
// window defaults to the earliest and latest month found in the tables; pass
// -start and -end to check against the requested period instead.
//
// Usage:
//
//	go run ./cmd/validate -dir project_data/raw_data/climate -start 1990-01-01 -end 2023-12-31
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/adapter/csvout"
	"github.com/couchcryptid/climate-data-etl/internal/domain"
)

const (
	rangeTolerance     = 1e-6
	intensityTolerance = 0.01
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "project_data/raw_data/climate", "directory containing the climate CSV tables")
	start := flag.String("start", "", "first day of the expected period (YYYY-MM-DD); default: earliest month in the tables")
	end := flag.String("end", "", "last day of the expected period (YYYY-MM-DD); default: latest month in the tables")
	flag.Parse()

	if *dir == "" || (*start == "") != (*end == "") {
		flag.Usage()
		os.Exit(1)
	}

	var window monthWindow
	if *start != "" {
		var err error
		if window, err = parseWindow(*start, *end); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
	}

	if code := run(*dir, window); code != 0 {
		os.Exit(code)
	}
}

// monthWindow is the inclusive range of month starts every state must cover.
// The zero value means the range is taken from the data.
type monthWindow struct {
	from, to time.Time
}

func parseWindow(start, end string) (monthWindow, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return monthWindow{}, fmt.Errorf("invalid -start %q: %w", start, err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return monthWindow{}, fmt.Errorf("invalid -end %q: %w", end, err)
	}
	if e.Before(s) {
		return monthWindow{}, fmt.Errorf("-end %s is before -start %s", end, start)
	}
	return monthWindow{from: domain.MonthStart(s), to: domain.MonthStart(e)}, nil
}

func run(dir string, window monthWindow) int {
	fmt.Println("=== Climate Data Integrity Validation ===")
	fmt.Println()

	tables, err := loadTables(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load tables: %v\n", err)
		return 1
	}
	failures, err := loadOptionalCSV(filepath.Join(dir, csvout.FailuresFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load failure log: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(tables, failures),
		validateCoverage(tables, window),
		validateTemperature(tables[domain.TableTemperature]),
		validateRainfall(tables[domain.TableRainfall]),
		validateHumidity(tables[domain.TableHumidity]),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d temperature, %d rainfall, %d humidity, %d failed chunks\n",
		len(tables[domain.TableTemperature].rows), len(tables[domain.TableRainfall].rows),
		len(tables[domain.TableHumidity].rows), len(failures.rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

// key identifies the state-month of a row.
func (r csvRow) key() string { return r.fields["State"] + "|" + r.fields["Date"] }

type csvFile struct {
	header []string
	rows   []csvRow
}

func loadTables(dir string) (map[domain.Table]csvFile, error) {
	out := make(map[domain.Table]csvFile, len(domain.Tables))
	for _, t := range domain.Tables {
		f, err := loadCSV(filepath.Join(dir, csvout.TableFiles[t]))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		out[t] = f
	}
	return out, nil
}

func loadOptionalCSV(path string) (csvFile, error) {
	f, err := loadCSV(path)
	if errors.Is(err, fs.ErrNotExist) {
		return csvFile{}, nil
	}
	return f, err
}

func loadCSV(path string) (csvFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return csvFile{}, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return csvFile{}, err
	}
	if len(all) == 0 {
		return csvFile{}, fmt.Errorf("no header in %s", path)
	}

	out := csvFile{header: all[0]}
	for i, row := range all[1:] {
		fields := make(map[string]string, len(out.header))
		for j, h := range out.header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		out.rows = append(out.rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return out, nil
}

// number parses a numeric field. ok is false for missing values; parse
// failures are reported to the phase.
func number(p *phase, t domain.Table, r csvRow, col string) (float64, bool) {
	s := r.fields[col]
	if s == domain.MissingValue {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.errorf("%s line %d: %s=%q is not a number", t, r.lineNum, col, s)
		return 0, false
	}
	return v, true
}

// ── Phase 1: Schema ──

func validateSchema(tables map[domain.Table]csvFile, failures csvFile) *phase {
	p := &phase{name: "Phase 1: Schema (headers)"}
	for _, t := range domain.Tables {
		if got := tables[t].header; !slices.Equal(got, t.Header()) {
			p.errorf("%s: header %v, want %v", t, got, t.Header())
		}
	}
	if failures.header != nil && !slices.Equal(failures.header, domain.FailureHeader) {
		p.errorf("failure log: header %v, want %v", failures.header, domain.FailureHeader)
	}
	return p
}

// ── Phase 2: Coverage ──
// One row per state-month with no gaps, the same keys in every table, and
// Year/Month consistent with Date.

func validateCoverage(tables map[domain.Table]csvFile, window monthWindow) *phase {
	p := &phase{name: "Phase 2: Coverage (one row per state-month)"}

	keys := make(map[domain.Table]map[string]bool, len(tables))
	for _, t := range domain.Tables {
		seen := make(map[string]bool)
		for _, r := range tables[t].rows {
			k := r.key()
			if seen[k] {
				p.errorf("%s line %d: duplicate row for %s", t, r.lineNum, k)
			}
			seen[k] = true
			checkDate(p, t, r)
		}
		keys[t] = seen
	}

	ref := keys[domain.TableTemperature]
	for _, t := range domain.Tables[1:] {
		for k := range ref {
			if !keys[t][k] {
				p.errorf("%s: missing row %s present in temperature", t, k)
			}
		}
		for k := range keys[t] {
			if !ref[k] {
				p.errorf("%s: row %s absent from temperature", t, k)
			}
		}
	}

	checkGaps(p, tables[domain.TableTemperature], window)
	return p
}

// checkGaps reports every state-month of the window that has no row, and
// rows that fall outside an explicit window.
func checkGaps(p *phase, f csvFile, window monthWindow) {
	months := make(map[string]map[time.Time]bool)
	var states []string
	infer := window.from.IsZero()
	for _, r := range f.rows {
		d, err := time.Parse(time.DateOnly, r.fields["Date"])
		if err != nil {
			continue // reported by checkDate
		}
		m := domain.MonthStart(d)
		state := r.fields["State"]
		if months[state] == nil {
			months[state] = make(map[time.Time]bool)
			states = append(states, state)
		}
		months[state][m] = true

		switch {
		case infer:
			if window.from.IsZero() || m.Before(window.from) {
				window.from = m
			}
			if m.After(window.to) {
				window.to = m
			}
		case m.Before(window.from) || m.After(window.to):
			p.errorf("%s: row outside %s..%s", r.key(),
				window.from.Format(time.DateOnly), window.to.Format(time.DateOnly))
		}
	}
	if window.from.IsZero() {
		return
	}

	slices.Sort(states)
	for _, state := range states {
		var missing []string
		for m := window.from; !m.After(window.to); m = m.AddDate(0, 1, 0) {
			if !months[state][m] {
				missing = append(missing, m.Format("2006-01"))
			}
		}
		if len(missing) > 0 {
			p.errorf("%s: %d months missing: %s", state, len(missing), strings.Join(missing, ", "))
		}
	}
}

func checkDate(p *phase, t domain.Table, r csvRow) {
	d, err := time.Parse(time.DateOnly, r.fields["Date"])
	if err != nil {
		p.errorf("%s line %d: invalid Date %q", t, r.lineNum, r.fields["Date"])
		return
	}
	if d.Day() != 1 {
		p.errorf("%s line %d: Date %s is not a month start", t, r.lineNum, r.fields["Date"])
	}
	if r.fields["Year"] != strconv.Itoa(d.Year()) || r.fields["Month"] != strconv.Itoa(int(d.Month())) {
		p.errorf("%s line %d: Year/Month %s/%s disagree with Date %s",
			t, r.lineNum, r.fields["Year"], r.fields["Month"], r.fields["Date"])
	}
}

// ── Phase 3: Temperature ──

func validateTemperature(f csvFile) *phase {
	p := &phase{name: "Phase 3: Temperature (ordering, range)"}
	t := domain.TableTemperature
	for _, r := range f.rows {
		avg, okAvg := number(p, t, r, "Avg_Temp_C")
		lo, okMin := number(p, t, r, "Min_Temp_C")
		hi, okMax := number(p, t, r, "Max_Temp_C")
		rng, okRange := number(p, t, r, "Temp_Range_C")

		if okAvg && okMax && hi < avg {
			p.errorf("%s: Max_Temp_C %g < Avg_Temp_C %g", r.key(), hi, avg)
		}
		if okAvg && okMin && avg < lo {
			p.errorf("%s: Avg_Temp_C %g < Min_Temp_C %g", r.key(), avg, lo)
		}
		if okMin && okMax && okRange && math.Abs(rng-(hi-lo)) > rangeTolerance {
			p.errorf("%s: Temp_Range_C %g != Max - Min %g", r.key(), rng, hi-lo)
		}
		checkDayCount(p, t, r, "Heat_Stress_Days")
		checkDayCount(p, t, r, "Cold_Stress_Days")
	}
	return p
}

// ── Phase 4: Rainfall ──

func validateRainfall(f csvFile) *phase {
	p := &phase{name: "Phase 4: Rainfall (indices, intensity)"}
	t := domain.TableRainfall
	for _, r := range f.rows {
		for _, col := range []string{"Drought_Index", "Flood_Risk_Index"} {
			if v, ok := number(p, t, r, col); ok && (v < 0 || v > 1) {
				p.errorf("%s: %s %g outside [0, 1]", r.key(), col, v)
			}
		}

		total, okTotal := number(p, t, r, "Rainfall_mm")
		days, okDays := number(p, t, r, "Rainy_Days")
		intensity, okIntensity := number(p, t, r, "Rainfall_Intensity")
		if okTotal && total < 0 {
			p.errorf("%s: negative Rainfall_mm %g", r.key(), total)
		}
		if okTotal && okDays && okIntensity {
			want := 0.0
			if days > 0 {
				want = total / days
			}
			if math.Abs(intensity-want) > intensityTolerance {
				p.errorf("%s: Rainfall_Intensity %g, want %g (%g mm / %g days)", r.key(), intensity, want, total, days)
			}
		}
		checkDayCount(p, t, r, "Rainy_Days")
	}
	return p
}

// ── Phase 5: Humidity ──

func validateHumidity(f csvFile) *phase {
	p := &phase{name: "Phase 5: Humidity (ordering, bounds)"}
	t := domain.TableHumidity
	for _, r := range f.rows {
		avg, okAvg := number(p, t, r, "Avg_Humidity_Percent")
		lo, okMin := number(p, t, r, "Min_Humidity_Percent")
		hi, okMax := number(p, t, r, "Max_Humidity_Percent")
		if okAvg && okMin && okMax && (lo > avg || avg > hi) {
			p.errorf("%s: humidity not ordered: min %g avg %g max %g", r.key(), lo, avg, hi)
		}
		if okMin && lo < 0 {
			p.errorf("%s: Min_Humidity_Percent %g below 0", r.key(), lo)
		}
		if okMax && hi > 100 {
			p.errorf("%s: Max_Humidity_Percent %g above 100", r.key(), hi)
		}
	}
	return p
}

// checkDayCount verifies a day counter lies within the row's month.
func checkDayCount(p *phase, t domain.Table, r csvRow, col string) {
	v, ok := number(p, t, r, col)
	if !ok {
		return
	}
	d, err := time.Parse(time.DateOnly, r.fields["Date"])
	if err != nil {
		return
	}
	limit := d.AddDate(0, 1, -1).Day()
	if v < 0 || v > float64(limit) || v != math.Trunc(v) {
		p.errorf("%s: %s %g not a day count in [0, %d]", r.key(), col, v, limit)
	}
}
