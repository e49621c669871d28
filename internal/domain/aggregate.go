package domain

import (
	"math"
	"time"
)

// Stress and rainfall thresholds.
const (
	HeatStressThresholdC = 35.0
	ColdStressThresholdC = 15.0
	HeavyRainfallMM      = 50.0

	// Below this climatological rainfall a month is considered dry season
	// and carries no drought stress.
	dryBaselineMM = 1.0
)

// MonthlyRecord is one (state, month) row shared by the temperature, rainfall
// and humidity tables. Nil metrics are missing.
type MonthlyRecord struct {
	Date  time.Time
	Zone  string
	State string

	AvgTempC       *float64
	MinTempC       *float64
	MaxTempC       *float64
	TempRangeC     *float64
	HeatStressDays *int
	ColdStressDays *int

	RainfallMM         *float64
	RainyDays          *int
	MaxDailyRainfallMM *float64
	RainfallIntensity  *float64
	DroughtIndex       *float64
	FloodRiskIndex     *float64

	AvgHumidityPct *float64
	MinHumidityPct *float64
	MaxHumidityPct *float64

	// DaysObserved counts the input days that fell inside the month.
	DaysObserved int
}

// TempInverted reports whether the month's minimum temperature exceeds its
// maximum, which leaves Temp_Range_C missing.
func (r MonthlyRecord) TempInverted() bool {
	return r.MaxTempC != nil && r.MinTempC != nil && *r.MaxTempC < *r.MinTempC
}

// Year returns the calendar year of the record's month.
func (r MonthlyRecord) Year() int { return r.Date.Year() }

// Month returns the calendar month number (1-12).
func (r MonthlyRecord) Month() int { return int(r.Date.Month()) }

// Complete reports whether every temperature metric is present.
func (r MonthlyRecord) Complete() bool {
	return r.AvgTempC != nil && r.MinTempC != nil && r.MaxTempC != nil
}

// AggregateMonth reduces the days of one state that fall in the given month to
// a MonthlyRecord. Days outside the month are ignored. A month without any
// observation still yields a record with every metric missing. The drought
// and flood indices are filled in only when baseline holds an entry for the
// state and calendar month; see [Baseline.Apply].
func AggregateMonth(days []DailyObservation, loc Location, year int, month time.Month, baseline Baseline) MonthlyRecord {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	rec := MonthlyRecord{Date: start, Zone: loc.Zone, State: loc.State}

	var (
		avgT, maxT, minT, rain, hum series
		heat, cold, rainy           int
	)
	for _, d := range days {
		if !MonthStart(d.Date).Equal(start) {
			continue
		}
		rec.DaysObserved++

		if v, ok := d.Value(ParamTempAvg); ok {
			avgT.add(v)
		}
		if v, ok := d.Value(ParamTempMax); ok {
			maxT.add(v)
			if v > HeatStressThresholdC {
				heat++
			}
		}
		if v, ok := d.Value(ParamTempMin); ok {
			minT.add(v)
			if v < ColdStressThresholdC {
				cold++
			}
		}
		if v, ok := d.Value(ParamPrecipitation); ok {
			rain.add(v)
			if v > 0 {
				rainy++
			}
		}
		if v, ok := d.Value(ParamHumidity); ok {
			hum.add(v)
		}
	}

	if avgT.n > 0 {
		rec.AvgTempC = ptr(round(avgT.mean(), 2))
	}
	if maxT.n > 0 {
		rec.MaxTempC = ptr(round(maxT.max, 2))
		rec.HeatStressDays = ptr(heat)
	}
	if minT.n > 0 {
		rec.MinTempC = ptr(round(minT.min, 2))
		rec.ColdStressDays = ptr(cold)
	}
	if rec.MaxTempC != nil && rec.MinTempC != nil && *rec.MaxTempC >= *rec.MinTempC {
		// Extrema come from separate daily series. When they cross, the range
		// stays missing so Temp_Range_C always equals Max - Min as written.
		rec.TempRangeC = ptr(round(*rec.MaxTempC-*rec.MinTempC, 2))
	}

	if rain.n > 0 {
		total := round(rain.sum, 1)
		rec.RainfallMM = ptr(total)
		rec.RainyDays = ptr(rainy)
		rec.MaxDailyRainfallMM = ptr(round(rain.max, 1))
		intensity := 0.0
		if rainy > 0 {
			intensity = round(total/float64(rainy), 2)
		}
		rec.RainfallIntensity = ptr(intensity)
	}

	if hum.n > 0 {
		rec.AvgHumidityPct = ptr(round(hum.mean(), 2))
		rec.MinHumidityPct = ptr(round(hum.min, 2))
		rec.MaxHumidityPct = ptr(round(hum.max, 2))
	}

	baseline.Apply(&rec)
	return rec
}

// Baseline holds the climatological mean monthly rainfall per state and
// calendar month.
type Baseline map[baselineKey]float64

type baselineKey struct {
	state string
	month time.Month
}

// BuildBaseline averages the monthly rainfall totals of each (state, calendar
// month) over every year that has a value.
func BuildBaseline(records []MonthlyRecord) Baseline {
	type acc struct {
		sum float64
		n   int
	}
	sums := make(map[baselineKey]*acc)
	for _, r := range records {
		if r.RainfallMM == nil {
			continue
		}
		k := baselineKey{state: r.State, month: r.Date.Month()}
		a, ok := sums[k]
		if !ok {
			a = &acc{}
			sums[k] = a
		}
		a.sum += *r.RainfallMM
		a.n++
	}

	b := make(Baseline, len(sums))
	for k, a := range sums {
		b[k] = a.sum / float64(a.n)
	}
	return b
}

// Expected returns the baseline rainfall for a state and calendar month.
func (b Baseline) Expected(state string, month time.Month) (float64, bool) {
	v, ok := b[baselineKey{state: state, month: month}]
	return v, ok
}

// Apply sets the drought and flood indices of rec from its rainfall and the
// baseline. Without rainfall or a baseline entry both indices stay missing.
func (b Baseline) Apply(rec *MonthlyRecord) {
	rec.DroughtIndex, rec.FloodRiskIndex = nil, nil
	if rec.RainfallMM == nil || rec.MaxDailyRainfallMM == nil {
		return
	}
	expected, ok := b.Expected(rec.State, rec.Date.Month())
	if !ok {
		return
	}
	rec.DroughtIndex = ptr(round(DroughtIndex(*rec.RainfallMM, expected), 3))
	rec.FloodRiskIndex = ptr(round(FloodRiskIndex(*rec.RainfallMM, *rec.MaxDailyRainfallMM, expected), 3))
}

// DroughtIndex is 1 - rainfall/expected clamped to [0,1]. It decreases
// monotonically with rainfall. Months whose expected rainfall is below 1 mm
// are dry season and score 0.
func DroughtIndex(rainfallMM, expectedMM float64) float64 {
	if expectedMM < dryBaselineMM {
		return 0
	}
	return clamp01(1 - rainfallMM/expectedMM)
}

// FloodRiskIndex blends the heaviest day against the heavy-rainfall
// threshold with the monthly total against twice the expected total. It
// increases monotonically with both inputs and is clamped to [0,1].
func FloodRiskIndex(rainfallMM, maxDailyMM, expectedMM float64) float64 {
	daily := math.Min(maxDailyMM/HeavyRainfallMM, 1)
	total := math.Min(rainfallMM/(2*math.Max(expectedMM, dryBaselineMM)), 1)
	return clamp01(0.5*daily + 0.5*total)
}

type series struct {
	n             int
	sum, min, max float64
}

func (s *series) add(v float64) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if s.n == 0 || v > s.max {
		s.max = v
	}
	s.sum += v
	s.n++
}

func (s *series) mean() float64 { return s.sum / float64(s.n) }

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // normalize -0
	}
	return r
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func ptr[T any](v T) *T { return &v }
