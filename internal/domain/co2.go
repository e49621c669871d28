package domain

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// CO2Record is one month of Mauna Loa atmospheric CO2.
type CO2Record struct {
	Year       int
	Month      int
	PPM        float64
	GrowthRate *float64 // ppm per year; nil for the first year
}

// CO2Header is the column list of the CO2 table.
var CO2Header = []string{"Year", "Month", "CO2_ppm", "CO2_Growth_Rate_ppm_per_year"}

// Row renders the record in [CO2Header] order.
func (c CO2Record) Row() []string {
	growth := MissingValue
	if c.GrowthRate != nil {
		growth = FormatFloat(*c.GrowthRate)
	}
	return []string{strconv.Itoa(c.Year), strconv.Itoa(c.Month), FormatFloat(c.PPM), growth}
}

// ParseCO2Text reads NOAA's co2_mm_mlo.txt layout, keeping months whose year
// lies in [fromYear, toYear]. Comment lines and months NOAA marks missing
// (negative average) are skipped. Lines that do not parse are passed to
// onSkip, which may be nil, and otherwise ignored; only a read failure is an
// error. Records come back sorted by year and month with growth rates filled
// in.
func ParseCO2Text(r io.Reader, fromYear, toYear int, onSkip func(line int, err error)) ([]CO2Record, error) {
	var out []CO2Record
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseCO2Line(line)
		if err != nil {
			if onSkip != nil {
				onSkip(lineNum, err)
			}
			continue
		}
		if rec.Year < fromYear || rec.Year > toYear || rec.PPM < 0 {
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read co2: %w", err)
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Year != out[b].Year {
			return out[a].Year < out[b].Year
		}
		return out[a].Month < out[b].Month
	})
	CO2GrowthRates(out)
	return out, nil
}

func parseCO2Line(line string) (CO2Record, error) {
	parts := strings.Fields(line)
	if len(parts) < 4 {
		return CO2Record{}, fmt.Errorf("expected at least 4 columns, got %d", len(parts))
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return CO2Record{}, fmt.Errorf("year: %w", err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return CO2Record{}, fmt.Errorf("invalid month %q", parts[1])
	}
	ppm, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return CO2Record{}, fmt.Errorf("average: %w", err)
	}
	return CO2Record{Year: year, Month: month, PPM: ppm}, nil
}

// CO2GrowthRates sets each record's growth rate to the difference from the
// same calendar month one year earlier, when that month is present.
func CO2GrowthRates(records []CO2Record) {
	type ym struct{ y, m int }
	byMonth := make(map[ym]float64, len(records))
	for _, c := range records {
		byMonth[ym{c.Year, c.Month}] = c.PPM
	}
	for idx := range records {
		c := &records[idx]
		c.GrowthRate = nil
		if prev, ok := byMonth[ym{c.Year - 1, c.Month}]; ok {
			c.GrowthRate = ptr(round(c.PPM-prev, 2))
		}
	}
}
