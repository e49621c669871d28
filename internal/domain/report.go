package domain

import (
	"sort"
	"time"
)

// ColumnRange is the observed value range of one numeric column.
type ColumnRange struct {
	Column string
	Min    float64
	Max    float64
	Count  int
}

// TableSummary describes one output table of a run.
type TableSummary struct {
	Table       Table
	Rows        int
	MissingRows int // rows with every metric missing
	Ranges      []ColumnRange
}

// RunReport is the human-readable account of a run.
type RunReport struct {
	RunID           string
	GeneratedAt     time.Time
	Period          DateRange
	Zones           []string
	States          []string
	StatesCompleted int
	Tables          []TableSummary
	FailedChunks    int
	FailedStates    []string
	Interrupted     bool
	CO2Records      int
	CO2Error        string
}

// Dataset is everything a run hands to its sinks.
type Dataset struct {
	Records  []MonthlyRecord
	CO2      []CO2Record
	Failures []Failure
	Report   RunReport
}

// Summarize computes per-table row counts and numeric column ranges.
func Summarize(records []MonthlyRecord) []TableSummary {
	out := make([]TableSummary, 0, len(Tables))
	for _, t := range Tables {
		cols := t.Columns()
		ranges := make([]ColumnRange, 0, len(cols))
		for _, c := range cols[len(keyColumns):] {
			ranges = append(ranges, ColumnRange{Column: c.Name})
		}

		s := TableSummary{Table: t, Rows: len(records)}
		for _, r := range records {
			vals := t.Values(r)[len(keyColumns):]
			missing := true
			for idx, v := range vals {
				x, ok := numeric(v)
				if !ok {
					continue
				}
				missing = false
				cr := &ranges[idx]
				if cr.Count == 0 || x < cr.Min {
					cr.Min = x
				}
				if cr.Count == 0 || x > cr.Max {
					cr.Max = x
				}
				cr.Count++
			}
			if missing {
				s.MissingRows++
			}
		}
		s.Ranges = ranges
		out = append(out, s)
	}
	return out
}

// FailedStates returns the distinct states present in failures, sorted.
func FailedStates(failures []Failure) []string {
	seen := make(map[string]bool)
	var states []string
	for _, f := range failures {
		if !seen[f.State] {
			seen[f.State] = true
			states = append(states, f.State)
		}
	}
	sort.Strings(states)
	return states
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
