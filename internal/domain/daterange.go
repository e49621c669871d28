package domain

import (
	"fmt"
	"time"
)

// DayLayout is the provider's compact date format.
const DayLayout = "20060102"

// DateRange is an inclusive range of calendar days in UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both ends to UTC midnight and rejects an end before
// the start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDay(start), End: truncateDay(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return r, nil
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of days in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + ".." + r.End.Format(time.DateOnly)
}

// Chunk is one provider request window. Index is 1-based.
type Chunk struct {
	Index int
	Range DateRange
}

// SplitRange cuts r into consecutive sub-ranges of at most chunkYears calendar
// years. The chunks cover r exactly, without gaps or overlap; the last one may
// be shorter.
func SplitRange(r DateRange, chunkYears int) ([]Chunk, error) {
	if chunkYears < 1 {
		return nil, fmt.Errorf("%w: chunk size %d years", ErrInvalidRange, chunkYears)
	}
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}

	var chunks []Chunk
	for cur := r.Start; !cur.After(r.End); {
		end := cur.AddDate(chunkYears, 0, -1)
		if end.After(r.End) {
			end = r.End
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks) + 1,
			Range: DateRange{Start: cur, End: end},
		})
		cur = end.AddDate(0, 0, 1)
	}
	return chunks, nil
}

// MonthsIn returns the first day of every calendar month the range touches.
func MonthsIn(r DateRange) []time.Time {
	var months []time.Time
	for m := MonthStart(r.Start); !m.After(r.End); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// MonthStart returns midnight UTC on the first of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
